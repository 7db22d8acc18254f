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

package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crest.dev/router"
)

// Name is the middleware name used with [router.WithMiddleware].
const Name = "recovery"

type none struct{}

// New returns a middleware that turns panics into a 500 response.
//
// The pipeline already converts panics from before phases, handlers and
// after phases into [router.PanicError]; this middleware picks the error up
// in its after phase, records it on the active span, logs it and writes the
// response. Register it early: only panics from middleware entered after it
// and from the handler are seen.
//
// Example:
//
//	r.Use(recovery.New(
//	    recovery.WithStackSize(8 << 10),
//	    recovery.WithHandler(func(req *router.Request, res *router.Response, v any) {
//	        res.Text(http.StatusInternalServerError, "oops")
//	    }),
//	))
func New(opts ...Option) *router.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return router.NewMiddleware(Name, router.Hooks[none]{
		After: func(req *router.Request, res *router.Response, _ *none) {
			var pe *router.PanicError
			if res.Ended() || !errors.As(req.Err(), &pe) {
				return
			}

			markSpan(trace.SpanFromContext(req.Context()), pe.Value)

			var stack []byte
			if cfg.stackTrace {
				stack = pe.Stack
				if cfg.stackSize > 0 && len(stack) > cfg.stackSize {
					stack = stack[:cfg.stackSize]
				}
			}
			if cfg.logger != nil {
				cfg.logger(req, pe.Value, stack)
			}

			res.Header().Del("Content-Encoding")
			cfg.handler(req, res, pe.Value)
			res.End()
		},
	})
}

// markSpan flags span as failed by an escaped exception.
func markSpan(span trace.Span, v any) {
	if !span.SpanContext().IsValid() {
		return
	}
	span.SetStatus(codes.Error, "panic recovered")
	span.SetAttributes(
		attribute.Bool("exception.escaped", true),
		attribute.String("exception.type", fmt.Sprintf("%T", v)),
		attribute.String("exception.message", fmt.Sprint(v)),
	)
	if err, ok := v.(error); ok {
		span.RecordError(err)
	}
}

func defaultLogger(req *router.Request, v any, stack []byte) {
	slog.Default().ErrorContext(req.Context(), "panic recovered",
		"method", req.RawMethod,
		"path", req.Path,
		"panic", v,
		"stack", string(stack),
	)
}

func defaultHandler(_ *router.Request, res *router.Response, _ any) {
	_ = res.JSON(http.StatusInternalServerError, map[string]any{
		"error": "Internal server error",
		"code":  "INTERNAL_ERROR",
	})
}
