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
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "ratelimit"

// KeyFunc derives the rate limit key for a request (per IP, per user, per route).
type KeyFunc func(*router.Request) string

// Meta describes a rejected request for callbacks and logging.
type Meta struct {
	Limit        int           // Requests per window (burst for token buckets)
	Remaining    int           // Remaining requests in the current window
	ResetSeconds int           // Seconds until more requests are allowed
	Window       time.Duration // Window duration
	Key          string        // Rate limit key, e.g. "ip:192.168.1.1"
	Route        string        // Matched route template
	Method       string        // HTTP method
	ClientIP     string        // Client address
}

// TokenBucketStore keeps token buckets. Implement it to share limits
// between instances.
type TokenBucketStore interface {
	// Allow takes a token for key. It returns whether the request is
	// allowed, the tokens left and the seconds until the next token.
	Allow(key string, now time.Time) (allowed bool, remaining int, resetSeconds int)
}

// New returns a token bucket rate limiter.
// Defaults: 100 requests per second, burst of 20, keyed by client IP.
//
// Example:
//
//	r.Use(ratelimit.New(
//	    ratelimit.WithRequestsPerSecond(50),
//	    ratelimit.WithBurst(10),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryTokenBucketStore(cfg.requestsPerSecond, cfg.burst,
			WithSweep(cfg.cleanupInterval, cfg.limiterTTL))
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			key := cfg.keyFunc(req)
			allowed, remaining, resetSeconds := store.Allow(key, cfg.now())

			if cfg.headers {
				h := res.Header()
				h.Set("RateLimit-Limit", strconv.Itoa(cfg.burst))
				h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
				h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))
			}
			if allowed {
				return router.Continue
			}
			return cfg.reject(req, res, Meta{
				Limit:        cfg.burst,
				ResetSeconds: resetSeconds,
				Window:       time.Second,
				Key:          key,
			})
		},
	})
}

// NewSlidingWindow returns a sliding window rate limiter allowing limit
// requests per window. The estimate weighs the previous window by how much
// of it still overlaps the sliding window.
//
// Example:
//
//	r.Declare(ratelimit.NewSlidingWindow(time.Minute, 30,
//	    ratelimit.WithKeyFunc(func(req *router.Request) string {
//	        return "user:" + basicauth.Username(req)
//	    }),
//	))
func NewSlidingWindow(window time.Duration, limit int, opts ...Option) *router.Middleware {
	if window < time.Second || limit <= 0 {
		panic("ratelimit: window must be at least one second and limit positive")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	store := cfg.windowStore
	if store == nil {
		store = NewInMemoryStore()
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		Before: func(req *router.Request, res *router.Response, _ *none) router.Flow {
			key := cfg.keyFunc(req)
			now := cfg.now()
			ctx := req.Context()

			curr, prev, windowStart, err := store.GetCounts(ctx, key, window, now)
			if err != nil {
				// Fail open.
				cfg.logger.Warn("rate limit store error", "error", err, "key", key)
				return router.Continue
			}

			elapsed := min(now.Sub(time.Unix(windowStart, 0)), window)
			prevWeight := max(0.0, 1.0-float64(elapsed)/float64(window))
			usage := float64(curr) + float64(prev)*prevWeight

			remaining := max(0, int(float64(limit)-usage)-1)
			resetSeconds := max(0, int(windowStart+int64(window.Seconds())-now.Unix()))

			if cfg.headers {
				h := res.Header()
				h.Set("RateLimit-Limit", fmt.Sprintf("%d;w=%d", limit, int(window.Seconds())))
				h.Set("RateLimit-Remaining", strconv.Itoa(remaining))
				h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))
			}

			if int(usage) >= limit {
				return cfg.reject(req, res, Meta{
					Limit:        limit,
					ResetSeconds: resetSeconds,
					Window:       window,
					Key:          key,
				})
			}
			if err := store.Incr(ctx, key, window, now); err != nil {
				cfg.logger.Warn("rate limit store error", "error", err, "key", key)
			}
			return router.Continue
		},
	})
}

type none struct{}

// reject handles a request over the limit.
func (cfg *config) reject(req *router.Request, res *router.Response, meta Meta) router.Flow {
	meta.Route = req.RoutePattern()
	meta.Method = req.RawMethod
	meta.ClientIP = req.ClientIP()

	cfg.logger.Debug("rate limit exceeded",
		"key", meta.Key,
		"route", meta.Route,
		"reset_seconds", meta.ResetSeconds,
	)

	if cfg.onExceeded != nil {
		// The handler owns the response.
		cfg.onExceeded(req, res, meta)
		return router.Stop
	}
	if cfg.reportOnly {
		return router.Continue
	}
	res.Header().Set("Retry-After", strconv.Itoa(max(meta.ResetSeconds, 1)))
	res.Text(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
	return router.Stop
}
