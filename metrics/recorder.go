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

package metrics

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"crest.dev/router"
)

var _ router.ObservabilityRecorder = (*Recorder)(nil)

// requestState is the per-request state handed back by OnRequestStart.
type requestState struct {
	start  time.Time
	method string
	attrs  []attribute.KeyValue
}

func (r *Recorder) initInstruments() error {
	r.meter = r.meterProvider.Meter(meterName)

	var err error
	if r.requestDuration, err = r.meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(r.durationBuckets...),
	); err != nil {
		return fmt.Errorf("create request duration histogram: %w", err)
	}
	if r.requestCount, err = r.meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return fmt.Errorf("create request counter: %w", err)
	}
	if r.activeRequests, err = r.meter.Int64UpDownCounter("http_requests_active",
		metric.WithDescription("Number of in-flight HTTP requests"),
	); err != nil {
		return fmt.Errorf("create active requests counter: %w", err)
	}
	if r.requestSize, err = r.meter.Int64Histogram("http_request_size_bytes",
		metric.WithDescription("Size of HTTP request bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(r.sizeBuckets...),
	); err != nil {
		return fmt.Errorf("create request size histogram: %w", err)
	}
	if r.responseSize, err = r.meter.Int64Histogram("http_response_size_bytes",
		metric.WithDescription("Size of HTTP response bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(r.sizeBuckets...),
	); err != nil {
		return fmt.Errorf("create response size histogram: %w", err)
	}
	if r.errorCount, err = r.meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of HTTP responses with status >= 400"),
	); err != nil {
		return fmt.Errorf("create error counter: %w", err)
	}
	if r.customFailures, err = r.meter.Int64Counter("custom_metric_failures_total",
		metric.WithDescription("Custom metric creation failures"),
	); err != nil {
		return fmt.Errorf("create custom failure counter: %w", err)
	}
	return nil
}

// OnRequestStart counts the request as active. Excluded paths return a nil
// state and are not recorded.
func (r *Recorder) OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any) {
	if r.shuttingDown.Load() || r.filter.excluded(req.URL.Path) {
		return ctx, nil
	}
	st := &requestState{
		start:  time.Now(),
		method: req.Method,
		attrs:  append(make([]attribute.KeyValue, 0, 6), r.baseAttrs...),
	}
	st.attrs = append(st.attrs, attribute.String("http.method", req.Method))
	r.activeRequests.Add(ctx, 1, metric.WithAttributes(st.attrs...))
	if req.ContentLength > 0 {
		r.requestSize.Record(ctx, req.ContentLength, metric.WithAttributes(st.attrs...))
	}
	return ctx, st
}

// WrapResponseWriter tracks status and size.
func (r *Recorder) WrapResponseWriter(w http.ResponseWriter, _ any) http.ResponseWriter {
	if _, ok := w.(router.ResponseInfo); ok {
		return w
	}
	return &responseWriter{ResponseWriter: w}
}

// OnRequestEnd records duration, count, size and errors labeled with the
// route pattern.
func (r *Recorder) OnRequestEnd(ctx context.Context, state any, w http.ResponseWriter, routePattern string) {
	st, ok := state.(*requestState)
	if !ok {
		return
	}
	r.activeRequests.Add(ctx, -1, metric.WithAttributes(st.attrs...))

	status, size := http.StatusOK, int64(0)
	if info, ok := w.(router.ResponseInfo); ok {
		status, size = info.StatusCode(), info.Size()
	}
	attrs := metric.WithAttributes(append(st.attrs,
		attribute.Int("http.status_code", status),
		attribute.String("http.status_class", statusClass(status)),
		attribute.String("http.route", routePattern),
	)...)

	r.requestDuration.Record(ctx, time.Since(st.start).Seconds(), attrs)
	r.requestCount.Add(ctx, 1, attrs)
	if status >= http.StatusBadRequest {
		r.errorCount.Add(ctx, 1, attrs)
	}
	if size > 0 {
		r.responseSize.Record(ctx, size, attrs)
	}
}

func statusClass(code int) string {
	switch code / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	default:
		return "unknown"
	}
}

// responseWriter records the status and body size written through it.
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

// Hijack supports WebSocket upgrades; a hijacked connection is recorded as
// 101 Switching Protocols.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("metrics: underlying writer does not support hijacking")
	}
	conn, buf, err := h.Hijack()
	if err == nil && !rw.wroteHeader {
		rw.status = http.StatusSwitchingProtocols
		rw.wroteHeader = true
	}
	return conn, buf, err
}
