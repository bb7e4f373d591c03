package concurrent

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type squared struct {
	id  int
	val int
}

func TestWorkerPoolRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	results := Run[int, squared](4, items, func(job Job[int]) squared {
		return squared{id: job.ID, val: job.JobItem * job.JobItem}
	})
	assert.Len(t, results, 100)

	sort.Slice(results, func(i, j int) bool { return results[i].id < results[j].id })
	for i, r := range results {
		assert.Equal(t, i, r.id)
		assert.Equal(t, i*i, r.val)
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	defer goleak.VerifyNone(t)

	results := Run[string, string](0, []string{}, func(job Job[string]) string { return job.JobItem })
	assert.Empty(t, results)
}
