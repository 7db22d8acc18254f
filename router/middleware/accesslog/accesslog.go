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

package accesslog

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"

	"crest.dev/router"
	"crest.dev/router/middleware"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "accesslog"

// state is the per-request slice.
type state struct {
	start time.Time
	skip  bool
}

// New creates an access log middleware with structured logging.
//
// The logger must be provided via WithLogger. Without one the middleware
// records nothing.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	r := router.MustNew()
//	r.Use(accesslog.New(
//		accesslog.WithLogger(logger),
//		accesslog.WithExcludePaths("/health", "/metrics"),
//		accesslog.WithSlowThreshold(500 * time.Millisecond),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[state]{
		Before: func(req *router.Request, _ *router.Response, s *state) router.Flow {
			s.skip = cfg.excluded(req.Path)
			s.start = time.Now()
			return router.Continue
		},
		After: func(req *router.Request, res *router.Response, s *state) {
			if s.skip || cfg.logger == nil {
				return
			}
			cfg.log(req, res, time.Since(s.start))
		},
	})
}

func (cfg *config) excluded(path string) bool {
	if cfg.excludePaths[path] {
		return true
	}
	for _, prefix := range cfg.excludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (cfg *config) log(req *router.Request, res *router.Response, duration time.Duration) {
	status := res.Status()
	if req.Err() != nil && !res.Ended() {
		// The error handler has not run yet; it answers 500.
		status = 500
	}

	isError := status >= 400
	isSlow := cfg.slowThreshold > 0 && duration >= cfg.slowThreshold

	if !isError && !isSlow {
		if cfg.logErrorsOnly {
			return
		}
		if cfg.sampleRate < 1.0 && !sampleByHash(middleware.RequestID(req.Context()), cfg.sampleRate) {
			return
		}
	}

	fields := []any{
		"method", req.RawMethod,
		"path", req.Path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"bytes_sent", res.Size(),
		"user_agent", req.Header.Get("User-Agent"),
		"client_ip", req.ClientIP(),
		"host", req.Host,
		"route", route(req),
	}
	if id := middleware.RequestID(req.Context()); id != "" {
		fields = append(fields, "request_id", id)
	}
	if isSlow {
		fields = append(fields, "slow", true)
	}
	if err := req.Err(); err != nil {
		fields = append(fields, "error", err.Error())
	}

	switch {
	case status >= 500:
		cfg.logger.ErrorContext(req.Context(), "access", fields...)
	case status >= 400, isSlow:
		cfg.logger.WarnContext(req.Context(), "access", fields...)
	default:
		cfg.logger.InfoContext(req.Context(), "access", fields...)
	}
}

// route returns the matched template or a bounded sentinel.
func route(req *router.Request) string {
	if p := req.RoutePattern(); p != "" {
		return p
	}
	if req.Outcome() == router.MethodNotAllowed {
		return router.PatternMethodNotAllowed
	}
	return router.PatternNotFound
}

// sampleByHash provides deterministic sampling based on a hash of the ID.
// Same request ID always makes the same sampling decision across all replicas.
func sampleByHash(id string, rate float64) bool {
	if id == "" {
		return true
	}
	h := sha256.Sum256([]byte(id))
	hashValue := binary.BigEndian.Uint64(h[:8])
	threshold := uint64(rate * float64(^uint64(0)))
	return hashValue <= threshold
}
