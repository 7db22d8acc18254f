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

package tracing

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"crest.dev/router"
)

var _ router.ObservabilityRecorder = (*Tracer)(nil)

type spanState struct {
	span   trace.Span
	method string
}

// OnRequestStart continues the caller's trace from the request headers and
// starts a server span. The returned context carries the span, so handlers
// and loggers see its ids.
func (t *Tracer) OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any) {
	if t.shuttingDown.Load() || t.excluded(req.URL.Path) {
		return ctx, nil
	}
	ctx = t.Extract(ctx, req.Header)

	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	attrs := make([]attribute.KeyValue, 0, 6+len(t.recordHeaders))
	attrs = append(attrs,
		semconv.HTTPMethod(req.Method),
		semconv.HTTPTarget(req.URL.RequestURI()),
		semconv.HTTPScheme(scheme),
		semconv.NetHostName(req.Host),
		semconv.HTTPUserAgent(req.UserAgent()),
	)
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		attrs = append(attrs, semconv.HTTPClientIP(host))
	}
	for _, h := range t.recordHeaders {
		if v := req.Header.Get(h); v != "" {
			attrs = append(attrs, attribute.String("http.request.header."+strings.ToLower(h), v))
		}
	}

	ctx, span := t.tracer.Start(ctx, req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	if !span.IsRecording() {
		span.End()
		return ctx, nil
	}
	return ctx, &spanState{span: span, method: req.Method}
}

// WrapResponseWriter tracks the status code.
func (t *Tracer) WrapResponseWriter(w http.ResponseWriter, _ any) http.ResponseWriter {
	if _, ok := w.(router.ResponseInfo); ok {
		return w
	}
	return &responseWriter{ResponseWriter: w}
}

// OnRequestEnd names the span after the route, records the status and ends
// it. 5xx responses mark the span as failed.
func (t *Tracer) OnRequestEnd(_ context.Context, state any, w http.ResponseWriter, routePattern string) {
	st, ok := state.(*spanState)
	if !ok {
		return
	}
	status := http.StatusOK
	if info, ok := w.(router.ResponseInfo); ok {
		status = info.StatusCode()
	}

	if routePattern != router.PatternNotFound && routePattern != router.PatternMethodNotAllowed {
		st.span.SetName(st.method + " " + routePattern)
		st.span.SetAttributes(semconv.HTTPRoute(routePattern))
	}
	st.span.SetAttributes(semconv.HTTPStatusCode(status))
	if status >= http.StatusInternalServerError {
		st.span.SetStatus(codes.Error, http.StatusText(status))
	}
	st.span.End()
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

func (rw *responseWriter) StatusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) Size() int64 { return rw.size }

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("tracing: underlying writer does not support hijacking")
	}
	conn, buf, err := h.Hijack()
	if err == nil && !rw.wroteHeader {
		rw.status = http.StatusSwitchingProtocols
		rw.wroteHeader = true
	}
	return conn, buf, err
}
