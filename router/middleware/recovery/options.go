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

// Package recovery answers requests whose handler or middleware panicked.
package recovery

import "crest.dev/router"

// Option configures the recovery middleware.
type Option func(*config)

type config struct {
	stackTrace bool
	stackSize  int
	logger     func(req *router.Request, v any, stack []byte)
	handler    func(req *router.Request, res *router.Response, v any)
}

func defaultConfig() *config {
	return &config{
		stackTrace: true,
		stackSize:  4 << 10,
		logger:     defaultLogger,
		handler:    defaultHandler,
	}
}

// WithStackTrace enables or disables passing the stack to the logger.
// Default: true.
func WithStackTrace(enabled bool) Option {
	return func(cfg *config) {
		cfg.stackTrace = enabled
	}
}

// WithStackSize caps the logged stack in bytes; 0 means no cap.
// Default: 4KB.
func WithStackSize(size int) Option {
	return func(cfg *config) {
		cfg.stackSize = size
	}
}

// WithLogger replaces the panic logger. nil disables logging.
//
// Example:
//
//	recovery.New(recovery.WithLogger(func(req *router.Request, v any, stack []byte) {
//	    logger.Error("panic recovered", "panic", v, "stack", string(stack))
//	}))
func WithLogger(logger func(req *router.Request, v any, stack []byte)) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithHandler replaces the default 500 JSON response.
func WithHandler(handler func(req *router.Request, res *router.Response, v any)) Option {
	return func(cfg *config) {
		if handler != nil {
			cfg.handler = handler
		}
	}
}
