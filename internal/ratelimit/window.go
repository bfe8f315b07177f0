package ratelimit

import (
	"sync"
	"time"
)

// windowCounter is the per-identity sliding window log: admission timestamps
// in non-decreasing order. Expired entries are trimmed from the head, so each
// timestamp is inspected at most twice over its lifetime.
type windowCounter struct {
	mu         sync.Mutex
	timestamps []time.Time

	// evicted is set by the janitor under mu after the counter has been
	// removed from its shard. A caller holding a stale reference must
	// re-fetch from the store rather than record admissions nobody can see.
	evicted bool
}

// admitResult captures the counter state at decision time.
type admitResult struct {
	admitted bool
	count    int       // admissions in the window after the decision
	oldest   time.Time // zero when the window is empty
}

// tryAdmit trims expired timestamps, then admits the request if the window
// holds fewer than limit admissions. A rejection never mutates the log. The
// second return value is false when the counter has been evicted; the caller
// must retry against a fresh counter.
func (c *windowCounter) tryAdmit(now time.Time, window time.Duration, limit int) (admitResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.evicted {
		return admitResult{}, false
	}

	c.trim(now, window)

	if len(c.timestamps) >= limit {
		res := admitResult{admitted: false, count: len(c.timestamps)}
		if len(c.timestamps) > 0 {
			res.oldest = c.timestamps[0]
		}
		return res, true
	}

	c.timestamps = append(c.timestamps, now)
	return admitResult{
		admitted: true,
		count:    len(c.timestamps),
		oldest:   c.timestamps[0],
	}, true
}

// trim drops every leading timestamp older than now minus window. Caller
// holds mu.
func (c *windowCounter) trim(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(c.timestamps) && c.timestamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(c.timestamps, c.timestamps[i:])
	c.timestamps = c.timestamps[:n]
}

// expire trims the log and, when empty, marks the counter evicted so stale
// references retry. Returns true when the counter should be removed from its
// shard. Caller must not hold mu.
func (c *windowCounter) expire(now time.Time, window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trim(now, window)
	if len(c.timestamps) > 0 {
		return false
	}
	c.evicted = true
	return true
}
