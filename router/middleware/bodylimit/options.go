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

package bodylimit

import "crest.dev/router"

// Option configures the bodylimit middleware.
type Option func(*config)

type config struct {
	limit        int64
	errorHandler func(req *router.Request, res *router.Response, limit int64)

	// Map lookup, checked on every request.
	skipPaths map[string]bool
}

func defaultConfig() *config {
	return &config{
		limit:        2 << 20,
		errorHandler: defaultErrorHandler,
		skipPaths:    make(map[string]bool),
	}
}

// WithLimit sets the maximum body size in bytes. Default: 2MB.
// It panics if size is not positive.
func WithLimit(size int64) Option {
	return func(cfg *config) {
		if size <= 0 {
			panic("body limit must be positive")
		}
		cfg.limit = size
	}
}

// WithErrorHandler replaces the default 413 JSON response.
//
// Example:
//
//	bodylimit.New(
//	    bodylimit.WithErrorHandler(func(req *router.Request, res *router.Response, limit int64) {
//	        res.Text(http.StatusRequestEntityTooLarge, "too large")
//	    }),
//	)
func WithErrorHandler(handler func(req *router.Request, res *router.Response, limit int64)) Option {
	return func(cfg *config) {
		cfg.errorHandler = handler
	}
}

// WithSkipPaths exempts exact paths from the limit.
func WithSkipPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, path := range paths {
			cfg.skipPaths[path] = true
		}
	}
}
