package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// TTLCache is a capacity and ttl bounded cache. Every entry costs 1, so capacity is the maximum
// number of entries. Sets are buffered, call Wait before reading a value just written.
type TTLCache[V any] struct {
	c        *ristretto.Cache[string, V]
	ttl      time.Duration
	capacity int64
}

type Stats struct {
	Capacity int64         `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
	Hits     uint64        `json:"hits"`
	Misses   uint64        `json:"misses"`
	Added    uint64        `json:"added"`
	Evicted  uint64        `json:"evicted"`
	HitRatio float64       `json:"hitRatio"`
}

func NewTTLCache[V any](capacity int64, ttl time.Duration) (*TTLCache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        capacity * 10,
		MaxCost:            capacity,
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &TTLCache[V]{c: c, ttl: ttl, capacity: capacity}, nil
}

func (t *TTLCache[V]) Get(key string) (V, bool) {
	return t.c.Get(key)
}

// Set stores value for the cache ttl. It returns false when the admission policy dropped the
// entry.
func (t *TTLCache[V]) Set(key string, value V) bool {
	return t.SetWithTTL(key, value, t.ttl)
}

func (t *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) bool {
	return t.c.SetWithTTL(key, value, 1, ttl)
}

func (t *TTLCache[V]) Del(key string) {
	t.c.Del(key)
}

func (t *TTLCache[V]) Clear() {
	t.c.Clear()
}

func (t *TTLCache[V]) Wait() {
	t.c.Wait()
}

func (t *TTLCache[V]) Close() {
	t.c.Close()
}

func (t *TTLCache[V]) TTL() time.Duration {
	return t.ttl
}

func (t *TTLCache[V]) Stats() Stats {
	m := t.c.Metrics
	return Stats{
		Capacity: t.capacity,
		TTL:      t.ttl,
		Hits:     m.Hits(),
		Misses:   m.Misses(),
		Added:    m.KeysAdded(),
		Evicted:  m.KeysEvicted(),
		HitRatio: m.Ratio(),
	}
}

// RouteKey identifies a planning result. version is the network snapshot version, so results
// computed on a replaced network are never served.
func RouteKey(version uint64, start, goal, heuristic string) string {
	return fmt.Sprintf("route:%d:%s:%s:%s", version, heuristic, start, goal)
}
