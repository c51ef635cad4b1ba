package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements a sliding window limiter for single-process
// deployments.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	cleanup  time.Time
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string][]time.Time),
		cleanup:  time.Now(),
		now:      time.Now,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, rule Rule) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	windowStart := now.Add(-rule.Window)

	if now.Sub(s.cleanup) > time.Minute {
		for k, times := range s.requests {
			// windows differ per action; keep anything inside a day
			filtered := filterTimes(times, now.Add(-24*time.Hour))
			if len(filtered) == 0 {
				delete(s.requests, k)
			} else {
				s.requests[k] = filtered
			}
		}
		s.cleanup = now
	}

	times := filterTimes(s.requests[key], windowStart)

	if len(times) >= rule.Limit {
		s.requests[key] = times
		return false, times[0].Add(rule.Window).Sub(now), nil
	}

	s.requests[key] = append(times, now)
	return true, 0, nil
}

func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}
