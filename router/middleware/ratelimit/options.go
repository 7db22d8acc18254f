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

// Package ratelimit limits request rates with token buckets or sliding
// windows kept in pluggable stores.
package ratelimit

import (
	"log/slog"
	"time"

	"crest.dev/router"
)

// Option configures the rate limit middleware.
type Option func(*config)

type config struct {
	logger            *slog.Logger
	requestsPerSecond int
	burst             int
	keyFunc           KeyFunc
	onExceeded        func(*router.Request, *router.Response, Meta)
	headers           bool
	reportOnly        bool
	cleanupInterval   time.Duration
	limiterTTL        time.Duration
	store             TokenBucketStore
	windowStore       WindowStore
	now               func() time.Time
}

func defaultConfig() *config {
	return &config{
		logger:            slog.Default(),
		requestsPerSecond: 100,
		burst:             20,
		keyFunc:           clientIPKey,
		headers:           true,
		cleanupInterval:   time.Minute,
		limiterTTL:        5 * time.Minute,
		now:               time.Now,
	}
}

func clientIPKey(req *router.Request) string {
	return "ip:" + req.ClientIP()
}

// WithRequestsPerSecond sets the token refill rate. Default: 100.
func WithRequestsPerSecond(rps int) Option {
	return func(cfg *config) {
		if rps > 0 {
			cfg.requestsPerSecond = rps
		}
	}
}

// WithBurst sets how many requests may be made at once. Default: 20.
func WithBurst(burst int) Option {
	return func(cfg *config) {
		if burst > 0 {
			cfg.burst = burst
		}
	}
}

// WithKeyFunc sets how requests are grouped. Default: by client IP.
//
// Example:
//
//	ratelimit.New(
//	    ratelimit.WithKeyFunc(func(req *router.Request) string {
//	        return "key:" + req.Header.Get("X-API-Key")
//	    }),
//	)
func WithKeyFunc(fn KeyFunc) Option {
	return func(cfg *config) {
		if fn != nil {
			cfg.keyFunc = fn
		}
	}
}

// WithHandler replaces the default 429 response. The pipeline stops after
// the handler runs.
//
// Example:
//
//	ratelimit.New(
//	    ratelimit.WithHandler(func(req *router.Request, res *router.Response, m ratelimit.Meta) {
//	        res.Text(http.StatusTooManyRequests, "slow down")
//	    }),
//	)
func WithHandler(fn func(*router.Request, *router.Response, Meta)) Option {
	return func(cfg *config) {
		cfg.onExceeded = fn
	}
}

// WithReportOnly lets requests over the limit through while still setting
// the RateLimit-* headers and logging. Useful to size limits.
func WithReportOnly() Option {
	return func(cfg *config) {
		cfg.reportOnly = true
	}
}

// WithoutHeaders disables the RateLimit-* response headers.
func WithoutHeaders() Option {
	return func(cfg *config) {
		cfg.headers = false
	}
}

// WithCleanupInterval sets how often idle buckets are swept. Default: 1 minute.
func WithCleanupInterval(interval time.Duration) Option {
	return func(cfg *config) {
		if interval > 0 {
			cfg.cleanupInterval = interval
		}
	}
}

// WithLimiterTTL sets how long an idle bucket is kept. Default: 5 minutes.
func WithLimiterTTL(ttl time.Duration) Option {
	return func(cfg *config) {
		if ttl > 0 {
			cfg.limiterTTL = ttl
		}
	}
}

// WithStore sets the token bucket store. The store's own rate and burst
// apply; WithBurst still sets the advertised RateLimit-Limit.
func WithStore(store TokenBucketStore) Option {
	return func(cfg *config) {
		cfg.store = store
	}
}

// WithWindowStore sets the sliding window store.
func WithWindowStore(store WindowStore) Option {
	return func(cfg *config) {
		cfg.windowStore = store
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// withClock replaces time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}
