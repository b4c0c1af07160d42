package guard

import "sync"

const defaultShardCount = 32

// shardedMap spreads per-caller state over independently locked buckets so
// requests from unrelated callers do not contend on one mutex.
type shardedMap[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
}

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

func newShardedMap[K comparable, V any](n int, hash func(K) uint64) *shardedMap[K, V] {
	if n <= 0 {
		n = defaultShardCount
	}
	sm := &shardedMap[K, V]{shards: make([]*shard[K, V], n), hash: hash}
	for i := range sm.shards {
		sm.shards[i] = &shard[K, V]{m: make(map[K]V)}
	}
	return sm
}

// hashUserID uses Fibonacci hashing so sequential ids do not land in
// neighbouring buckets.
func hashUserID(id int64) uint64 {
	return uint64(id) * 11400714819323198485
}

func (sm *shardedMap[K, V]) shardFor(key K) *shard[K, V] {
	return sm.shards[sm.hash(key)%uint64(len(sm.shards))]
}

// with runs fn on key's shard while holding its lock. fn may read, create,
// replace or delete entries of that shard's map.
func (sm *shardedMap[K, V]) with(key K, fn func(m map[K]V)) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.m)
}

// sweep visits shards one at a time and deletes entries for which evict is true.
// It returns the number of entries removed.
func (sm *shardedMap[K, V]) sweep(evict func(key K, v V) bool) int {
	removed := 0
	for _, s := range sm.shards {
		s.mu.Lock()
		for k, v := range s.m {
			if evict(k, v) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// size counts entries across shards.
func (sm *shardedMap[K, V]) size() int {
	n := 0
	for _, s := range sm.shards {
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}
