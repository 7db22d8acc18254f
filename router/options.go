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

package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Option configures a [Router].
type Option func(*Router)

// WithLogger sets the logger used for registration and request failures.
// A nil logger discards output.
//
// Example:
//
//	r := router.MustNew(router.WithLogger(slog.Default()))
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithDiagnostics sets a diagnostic handler for the router.
//
// Diagnostic events are optional informational events about registration
// and request handling. The router behaves the same whether they are
// collected or not.
//
// Example with logging:
//
//	handler := router.DiagnosticHandlerFunc(func(e router.DiagnosticEvent) {
//	    slog.Warn(e.Message, "kind", e.Kind, "fields", e.Fields)
//	})
//	r := router.MustNew(router.WithDiagnostics(handler))
func WithDiagnostics(handler DiagnosticHandler) Option {
	return func(r *Router) {
		r.diagnostics = handler
	}
}

// WithObservability installs lifecycle hooks around [Router.ServeHTTP].
// Several recorders can be combined with [CombineRecorders].
func WithObservability(rec ObservabilityRecorder) Option {
	return func(r *Router) {
		r.observability = rec
	}
}

// WithErrorHandler replaces the handler that turns a failed request into a
// response. It runs after every after phase, and only if the response has
// not been ended.
func WithErrorHandler(h ErrorHandler) Option {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithH2C enables HTTP/2 Cleartext support in [Router.Serve].
//
// ⚠️ SECURITY WARNING: Only use in development or behind a trusted load balancer.
// DO NOT enable on public-facing servers without TLS.
func WithH2C(enable bool) Option {
	return func(r *Router) {
		r.enableH2C = enable
	}
}

// WithServerTimeouts configures HTTP server timeouts used by [Router.Serve].
//
// Defaults (if not set):
//
//	ReadHeaderTimeout: 5s  - Time to read request headers
//	ReadTimeout:       15s - Time to read entire request
//	WriteTimeout:      30s - Time to write response
//	IdleTimeout:       60s - Keep-alive idle time
//
// All four must be positive or [New] fails with [ErrServerTimeoutInvalid].
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(r *Router) {
		r.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}

// WithWebSocketUpgrader sets the upgrader used for WebSocket rules.
func WithWebSocketUpgrader(u *websocket.Upgrader) Option {
	return func(r *Router) {
		r.upgrader = u
	}
}

// WithCheckOrigin sets the origin check of the default WebSocket upgrader.
// Without it, gorilla's same-origin check applies.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(r *Router) {
		if r.upgrader == nil {
			r.upgrader = &websocket.Upgrader{}
		}
		u := *r.upgrader
		u.CheckOrigin = fn
		r.upgrader = &u
	}
}

type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

// defaultServerTimeouts returns default timeout configuration.
func defaultServerTimeouts() *serverTimeouts {
	return &serverTimeouts{
		readHeader: 5 * time.Second,
		read:       15 * time.Second,
		write:      30 * time.Second,
		idle:       60 * time.Second,
	}
}
