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

//go:build !integration

package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"crest.dev/router"
)

func newTestRouter(t *testing.T, opts ...Option) (*router.Router, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tr := MustNew(append([]Option{WithSpanProcessor(sr), WithServiceName("orders")}, opts...)...)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })

	r := router.MustNew(router.WithObservability(tr))
	r.GET("/orders/<int>", router.Handle1(func(_ *router.Request, res *router.Response, id int64) error {
		res.Text(http.StatusOK, "order")
		return nil
	}))
	r.GET("/boom", router.Handle0(func(_ *router.Request, res *router.Response) error {
		res.Text(http.StatusInternalServerError, "boom")
		return nil
	}))
	r.GET("/health", router.Handle0(func(_ *router.Request, res *router.Response) error {
		res.Text(http.StatusOK, "ok")
		return nil
	}))
	return r, sr
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracer_SpanNamedByRoute(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/orders/42?expand=items", nil)
	req.Header.Set("User-Agent", "crest-test")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /orders/<int>", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, codes.Unset, span.Status().Code)

	route, ok := attr(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/orders/<int>", route.AsString())
	status, ok := attr(span, "http.status_code")
	require.True(t, ok)
	assert.EqualValues(t, http.StatusOK, status.AsInt64())
	target, ok := attr(span, "http.target")
	require.True(t, ok)
	assert.Equal(t, "/orders/42?expand=items", target.AsString())
	ua, ok := attr(span, "http.user_agent")
	require.True(t, ok)
	assert.Equal(t, "crest-test", ua.AsString())
}

func TestTracer_ServerErrorMarksSpan(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracer_UnmatchedKeepsMethodName(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing/path", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/health", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		_, ok := attr(span, "http.route")
		assert.False(t, ok)
	}
	assert.Equal(t, "GET", spans[0].Name())
	assert.Equal(t, "POST", spans[1].Name())
	status, _ := attr(spans[1], "http.status_code")
	assert.EqualValues(t, http.StatusMethodNotAllowed, status.AsInt64())
}

func TestTracer_ContinuesIncomingTrace(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
	assert.True(t, spans[0].Parent().IsRemote())
}

func TestTracer_HandlerSeesSpan(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tr := MustNew(WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })

	var seen string
	r := router.MustNew(router.WithObservability(tr))
	r.GET("/", router.Handle0(func(req *router.Request, res *router.Response) error {
		seen = TraceID(req.Context())
		_, child := tr.StartSpan(req.Context(), "load")
		child.End()
		res.Text(http.StatusOK, "ok")
		return nil
	}))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, spans[0].SpanContext().TraceID().String())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestTracer_Exclusions(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t, WithExcludePaths("/health"), WithExcludePrefixes("/orders/9"))
	for _, p := range []string{"/health", "/orders/99", "/orders/1"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	spans := sr.Ended()
	require.Len(t, spans, 1)
	target, _ := attr(spans[0], "http.target")
	assert.Equal(t, "/orders/1", target.AsString())
}

func TestTracer_RecordsHeadersButNotCredentials(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t, WithHeaders("x-tenant", "Authorization"))
	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set("X-Tenant", "acme")
	req.Header.Set("Authorization", "Bearer secret")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	tenant, ok := attr(spans[0], "http.request.header.x-tenant")
	require.True(t, ok)
	assert.Equal(t, "acme", tenant.AsString())
	_, ok = attr(spans[0], "http.request.header.authorization")
	assert.False(t, ok)
}

func TestTracer_ZeroSampleRate(t *testing.T) {
	t.Parallel()

	r, sr := newTestRouter(t, WithSampleRate(0))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Empty(t, sr.Ended())
}

func TestTracer_StdoutExport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := MustNew(WithStdout(&buf), WithServiceName("orders"))
	assert.Equal(t, StdoutProvider, tr.Provider())

	r := router.MustNew(router.WithObservability(tr))
	r.GET("/", router.Handle0(func(_ *router.Request, res *router.Response) error {
		res.Text(http.StatusOK, "ok")
		return nil
	}))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "GET /"`)
	assert.Contains(t, buf.String(), "orders")
}

func TestTracer_CustomProvider(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tr := MustNew(WithTracerProvider(tp))
	assert.Same(t, tp, tr.TracerProvider())
	require.NoError(t, tr.Shutdown(context.Background()))

	_, span := tp.Tracer("t").Start(context.Background(), "still-open")
	span.End()
	assert.Len(t, sr.Ended(), 1)
}

func TestTracer_InjectExtract(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tr := MustNew(WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })

	ctx, span := tr.StartSpan(context.Background(), "client")
	defer span.End()

	h := http.Header{}
	tr.Inject(ctx, h)
	assert.NotEmpty(t, h.Get("traceparent"))

	got := trace.SpanContextFromContext(tr.Extract(context.Background(), h))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestNew_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"two providers", []Option{WithStdout(nil), WithOTLP("http://localhost:4318")}, "only one provider"},
		{"sample rate", []Option{WithSampleRate(1.5)}, "sample rate"},
		{"empty service", []Option{WithServiceName("")}, "service name"},
		{"nil provider", []Option{WithTracerProvider(nil)}, "tracer provider cannot be nil"},
		{"nil propagator", []Option{WithPropagator(nil)}, "propagator cannot be nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSplitEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		host     string
		insecure bool
	}{
		{"http://collector:4318", "collector:4318", true},
		{"https://collector:4318/v1/traces", "collector:4318", false},
		{"collector:4317", "collector:4317", false},
	}
	for _, tt := range tests {
		host, insecure := splitEndpoint(tt.in)
		assert.Equal(t, tt.host, host, tt.in)
		assert.Equal(t, tt.insecure, insecure, tt.in)
	}
}
