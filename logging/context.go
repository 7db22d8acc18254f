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

package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"crest.dev/router/middleware"
)

const (
	fieldTraceID   = "trace_id"
	fieldSpanID    = "span_id"
	fieldRequestID = "request_id"
)

// ContextLogger logs with the correlation ids found in a context: the
// OpenTelemetry trace and span of the active span, and the request id set
// by the requestid middleware.
//
// A ContextLogger is cheap to build and is usually created per request.
type ContextLogger struct {
	logger    *slog.Logger
	ctx       context.Context
	traceID   string
	spanID    string
	requestID string
}

// NewContextLogger binds logger to ctx. A nil logger falls back to
// [slog.Default].
func NewContextLogger(ctx context.Context, logger *Logger) *ContextLogger {
	var sl *slog.Logger
	if logger != nil {
		sl = logger.Logger()
	}
	return FromContext(ctx, sl)
}

// FromContext is [NewContextLogger] for a plain [*slog.Logger].
func FromContext(ctx context.Context, sl *slog.Logger) *ContextLogger {
	if sl == nil {
		sl = slog.Default()
	}
	cl := &ContextLogger{ctx: ctx}

	var attrs []any
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		cl.traceID = sc.TraceID().String()
		cl.spanID = sc.SpanID().String()
		attrs = append(attrs, fieldTraceID, cl.traceID, fieldSpanID, cl.spanID)
	}
	if id := middleware.RequestID(ctx); id != "" {
		cl.requestID = id
		attrs = append(attrs, fieldRequestID, id)
	}
	if len(attrs) > 0 {
		sl = sl.With(attrs...)
	}
	cl.logger = sl
	return cl
}

// Logger returns the enriched [*slog.Logger].
func (cl *ContextLogger) Logger() *slog.Logger { return cl.logger }

// TraceID returns the trace id, or "".
func (cl *ContextLogger) TraceID() string { return cl.traceID }

// SpanID returns the span id, or "".
func (cl *ContextLogger) SpanID() string { return cl.spanID }

// RequestID returns the request id, or "".
func (cl *ContextLogger) RequestID() string { return cl.requestID }

// With returns a [*slog.Logger] with additional attributes.
func (cl *ContextLogger) With(args ...any) *slog.Logger {
	return cl.logger.With(args...)
}

func (cl *ContextLogger) Debug(msg string, args ...any) {
	cl.logger.DebugContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Info(msg string, args ...any) {
	cl.logger.InfoContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Warn(msg string, args ...any) {
	cl.logger.WarnContext(cl.ctx, msg, args...)
}

func (cl *ContextLogger) Error(msg string, args ...any) {
	cl.logger.ErrorContext(cl.ctx, msg, args...)
}
