package concurrent

import (
	"sync"
)

type Job[T any] struct {
	ID      int
	JobItem T
}

type JobFunc[T any, G any] func(job Job[T]) G

// WorkerPool runs a fixed number of workers over a buffered job queue. Results are delivered
// in completion order; callers that need input order should carry the job ID in G.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan Job[T]
	results    chan G
	wg         sync.WaitGroup
}

func NewWorkerPool[T any, G any](numWorkers, numJobs int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numJobs < 0 {
		numJobs = 0
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job[T], numJobs),
		results:    make(chan G, numJobs),
	}
}

func (wp *WorkerPool[T, G]) Start(fn JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(fn)
	}
}

func (wp *WorkerPool[T, G]) worker(fn JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- fn(job)
	}
}

func (wp *WorkerPool[T, G]) AddJob(id int, item T) {
	wp.jobQueue <- Job[T]{ID: id, JobItem: item}
}

// Close stops accepting jobs. Workers drain what is already queued.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

// Wait blocks until every worker exits, then closes the results channel.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) CollectResults() <-chan G {
	return wp.results
}

// Run is the common add-all, close, wait sequence. The results channel is buffered to
// len(items) so workers never block on it.
func Run[T any, G any](numWorkers int, items []T, fn JobFunc[T, G]) []G {
	wp := NewWorkerPool[T, G](numWorkers, len(items))
	wp.Start(fn)
	for i, item := range items {
		wp.AddJob(i, item)
	}
	wp.Close()
	wp.Wait()

	out := make([]G, 0, len(items))
	for r := range wp.CollectResults() {
		out = append(out, r)
	}
	return out
}
