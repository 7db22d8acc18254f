// Copyright 2025 The Crest Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// shardCount spreads keys over independently locked maps.
const shardCount = 32

type shard[E any] struct {
	mu      sync.Mutex
	entries map[string]*E
}

// shards is a fixed set of locked maps indexed by key hash.
type shards[E any] [shardCount]shard[E]

func (s *shards[E]) get(key string) *shard[E] {
	return &s[xxhash.Sum64String(key)%shardCount]
}

// sweeper removes idle entries at most once per interval, piggybacking on
// calls instead of running a goroutine.
type sweeper struct {
	interval time.Duration
	ttl      time.Duration

	mu   sync.Mutex
	last time.Time
}

// due reports whether a sweep should run at now and records it.
func (sw *sweeper) due(now time.Time) bool {
	if sw.interval <= 0 {
		return false
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.last.IsZero() {
		sw.last = now
		return false
	}
	if now.Sub(sw.last) < sw.interval {
		return false
	}
	sw.last = now
	return true
}

type tokenBucketEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// StoreOption configures an in-memory store.
type StoreOption func(*sweeper)

// WithSweep sets how often idle entries are looked for and how long an
// entry may stay idle. A non-positive interval disables sweeping.
func WithSweep(interval, ttl time.Duration) StoreOption {
	return func(sw *sweeper) {
		sw.interval = interval
		sw.ttl = ttl
	}
}

// InMemoryTokenBucketStore keeps token buckets in process memory.
// It is the default store of [New].
type InMemoryTokenBucketStore struct {
	rate    float64
	burst   float64
	buckets shards[tokenBucketEntry]
	sweep   sweeper
}

// NewInMemoryTokenBucketStore creates a store refilling rate tokens per
// second up to burst.
//
// Example:
//
//	store := ratelimit.NewInMemoryTokenBucketStore(100, 20)
//	r.Use(ratelimit.New(ratelimit.WithStore(store), ratelimit.WithBurst(20)))
func NewInMemoryTokenBucketStore(rate, burst int, opts ...StoreOption) *InMemoryTokenBucketStore {
	s := &InMemoryTokenBucketStore{
		rate:  float64(max(rate, 1)),
		burst: float64(max(burst, 1)),
		sweep: sweeper{interval: time.Minute, ttl: time.Hour},
	}
	for _, opt := range opts {
		opt(&s.sweep)
	}
	for i := range s.buckets {
		s.buckets[i].entries = make(map[string]*tokenBucketEntry)
	}
	return s
}

// Allow implements [TokenBucketStore].
func (s *InMemoryTokenBucketStore) Allow(key string, now time.Time) (allowed bool, remaining, resetSeconds int) {
	if s.sweep.due(now) {
		s.evict(now)
	}

	sh := s.buckets.get(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		e = &tokenBucketEntry{tokens: s.burst, lastUpdate: now}
		sh.entries[key] = e
	}

	if elapsed := now.Sub(e.lastUpdate).Seconds(); elapsed > 0 {
		e.tokens = min(s.burst, e.tokens+elapsed*s.rate)
	}
	e.lastUpdate = now

	if e.tokens >= 1 {
		e.tokens--
		return true, int(e.tokens), 1
	}

	wait := (1 - e.tokens) / s.rate
	return false, 0, max(1, int(wait+0.999))
}

// Len returns the number of tracked keys.
func (s *InMemoryTokenBucketStore) Len() int {
	n := 0
	for i := range s.buckets {
		sh := &s.buckets[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

func (s *InMemoryTokenBucketStore) evict(now time.Time) {
	cutoff := now.Add(-s.sweep.ttl)
	for i := range s.buckets {
		sh := &s.buckets[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.lastUpdate.Before(cutoff) {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
}

// WindowStore keeps sliding window counters.
type WindowStore interface {
	// GetCounts returns the current and previous window counts and the
	// current window start as unix seconds.
	GetCounts(ctx context.Context, key string, window time.Duration, now time.Time) (curr, prev int, windowStart int64, err error)
	// Incr counts one request in the current window.
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) error
}

type windowEntry struct {
	current     int
	previous    int
	windowStart int64
}

// roll shifts counts when start begins a new window.
func (e *windowEntry) roll(start int64, window time.Duration) {
	if e.windowStart >= start {
		return
	}
	if start-e.windowStart == int64(window.Seconds()) {
		e.previous = e.current
	} else {
		// More than one window passed.
		e.previous = 0
	}
	e.current = 0
	e.windowStart = start
}

// InMemoryStore keeps sliding window counters in process memory.
type InMemoryStore struct {
	windows shards[windowEntry]
	sweep   sweeper
}

// NewInMemoryStore creates a sliding window store.
func NewInMemoryStore(opts ...StoreOption) *InMemoryStore {
	s := &InMemoryStore{sweep: sweeper{interval: 5 * time.Minute, ttl: 2 * time.Hour}}
	for _, opt := range opts {
		opt(&s.sweep)
	}
	for i := range s.windows {
		s.windows[i].entries = make(map[string]*windowEntry)
	}
	return s
}

// GetCounts implements [WindowStore].
func (s *InMemoryStore) GetCounts(_ context.Context, key string, window time.Duration, now time.Time) (int, int, int64, error) {
	if s.sweep.due(now) {
		s.evict(now)
	}
	start := now.Truncate(window).Unix()

	sh := s.windows.get(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return 0, 0, start, nil
	}
	e.roll(start, window)
	return e.current, e.previous, e.windowStart, nil
}

// Incr implements [WindowStore].
func (s *InMemoryStore) Incr(_ context.Context, key string, window time.Duration, now time.Time) error {
	start := now.Truncate(window).Unix()

	sh := s.windows.get(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		e = &windowEntry{windowStart: start}
		sh.entries[key] = e
	}
	e.roll(start, window)
	e.current++
	return nil
}

func (s *InMemoryStore) evict(now time.Time) {
	cutoff := now.Add(-s.sweep.ttl).Unix()
	for i := range s.windows {
		sh := &s.windows[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.windowStart < cutoff {
				delete(sh.entries, key)
			}
		}
		sh.mu.Unlock()
	}
}
