package ratelimit

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const shardCount = 32

// Store maps identity keys to window counters. Keys are sharded by hash so
// different identities never contend on a shared lock; a single identity's
// admissions are serialized by its counter. At most one live counter exists
// per key at any time.
type Store struct {
	limit  int
	window time.Duration
	shards [shardCount]shard

	logger *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
}

// NewStore creates a counter store. When cleanupInterval is positive, a
// background janitor evicts counters whose windows have fully drained.
func NewStore(limit int, window, cleanupInterval time.Duration, logger *slog.Logger) *Store {
	s := &Store{
		limit:  limit,
		window: window,
		logger: logger,
		done:   make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].counters = make(map[string]*windowCounter)
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

// Admit attempts one admission for the identity at the given instant. A
// counter evicted between lookup and lock is retried against a fresh one, so
// idle eviction never loses in-flight accounting.
func (s *Store) Admit(identity string, now time.Time) admitResult {
	sh := &s.shards[shardIndex(identity)]
	for {
		c := sh.getOrCreate(identity)
		if res, ok := c.tryAdmit(now, s.window, s.limit); ok {
			return res
		}
	}
}

// Len returns the number of live counters across all shards.
func (s *Store) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.counters)
		sh.mu.Unlock()
	}
	return total
}

// Close stops the janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			if evicted := s.evictIdle(now); evicted > 0 && s.logger != nil {
				s.logger.Debug("evicted idle rate limit counters", "count", evicted)
			}
		}
	}
}

// evictIdle removes counters whose logs have fully drained. Each removed
// counter is marked evicted under its own lock before leaving the map, so a
// concurrent Admit holding a stale reference observes the flag and retries.
func (s *Store) evictIdle(now time.Time) int {
	evicted := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, c := range sh.counters {
			if c.expire(now, s.window) {
				delete(sh.counters, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

func (sh *shard) getOrCreate(identity string) *windowCounter {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[identity]
	if !ok {
		c = &windowCounter{}
		sh.counters[identity] = c
	}
	return c
}

func shardIndex(identity string) int {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return int(h.Sum32() % shardCount)
}
