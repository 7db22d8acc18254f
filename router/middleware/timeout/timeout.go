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

// Package timeout puts a deadline on request handling.
//
// The deadline is attached to the request context. Handlers must watch
// req.Context() in long operations: the deadline cancels the context, it
// does not interrupt running code. When the deadline passes before the
// handler returns, the response is replaced by a timeout response.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "timeout"

// deadline is the per-request slice.
type deadline struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a middleware that cancels the request context after d.
//
// Example:
//
//	r.Use(timeout.New(5*time.Second,
//	    timeout.WithSkipPrefix("/stream"),
//	))
//
//	r.GET("/slow", router.Handle0(func(req *router.Request, res *router.Response) error {
//	    select {
//	    case <-time.After(2 * time.Second):
//	        res.Text(http.StatusOK, "done")
//	        return nil
//	    case <-req.Context().Done():
//	        return req.Context().Err()
//	    }
//	}))
func New(d time.Duration, opts ...Option) *router.Middleware {
	if d <= 0 {
		panic("timeout: duration must be positive")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[deadline]{
		Before: func(req *router.Request, _ *router.Response, s *deadline) router.Flow {
			if cfg.shouldSkip(req) {
				return router.Continue
			}
			s.ctx, s.cancel = context.WithTimeout(req.Context(), d)
			req.WithContext(s.ctx)
			return router.Continue
		},
		After: func(req *router.Request, res *router.Response, s *deadline) {
			if s.cancel == nil {
				return
			}
			defer s.cancel()

			if !errors.Is(s.ctx.Err(), context.DeadlineExceeded) || res.Upgrading() {
				return
			}
			if cfg.logger != nil {
				cfg.logger.WarnContext(req.Context(), "request timeout",
					"method", req.RawMethod,
					"path", req.Path,
					"timeout", d.String(),
				)
			}
			res.Header().Del("Content-Encoding")
			cfg.handler(req, res, d)
			res.End()
		},
	})
}

func defaultHandler(req *router.Request, res *router.Response, timeout time.Duration) {
	_ = res.JSON(http.StatusRequestTimeout, map[string]any{
		"error":   "Request timeout",
		"code":    "TIMEOUT",
		"timeout": timeout.String(),
		"path":    req.Path,
	})
}

func (cfg *config) shouldSkip(req *router.Request) bool {
	path := req.Path
	if cfg.skipPaths[path] {
		return true
	}
	for _, prefix := range cfg.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, suffix := range cfg.skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return cfg.skipFunc != nil && cfg.skipFunc(req)
}
