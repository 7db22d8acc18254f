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
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a [Tracer].
type Option func(*Tracer)

// WithNoop keeps spans in process. This is the default.
func WithNoop() Option {
	return func(t *Tracer) {
		t.kind = NoopProvider
		t.kindSetCount++
	}
}

// WithStdout prints spans to w, or stdout when w is nil.
func WithStdout(w io.Writer) Option {
	return func(t *Tracer) {
		t.kind = StdoutProvider
		t.stdout = w
		t.kindSetCount++
	}
}

// WithOTLP exports over OTLP/HTTP to endpoint ("http://localhost:4318").
func WithOTLP(endpoint string) Option {
	return func(t *Tracer) {
		t.kind = OTLPProvider
		t.endpoint = endpoint
		t.kindSetCount++
	}
}

// WithOTLPGRPC exports over OTLP/gRPC to endpoint ("localhost:4317").
func WithOTLPGRPC(endpoint string) Option {
	return func(t *Tracer) {
		t.kind = OTLPGRPCProvider
		t.endpoint = endpoint
		t.kindSetCount++
	}
}

// WithInsecure disables TLS for OTLP exporters.
func WithInsecure() Option {
	return func(t *Tracer) { t.insecure = true }
}

// WithTracerProvider records on a caller-owned provider. [Tracer.Shutdown]
// does not stop it.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracer) {
		t.provider = tp
		t.customProvider = true
	}
}

// WithSpanProcessor attaches a processor to the SDK provider, such as a
// tracetest.SpanRecorder.
func WithSpanProcessor(p sdktrace.SpanProcessor) Option {
	return func(t *Tracer) { t.processors = append(t.processors, p) }
}

// WithGlobalTracerProvider registers the provider and propagator with the
// otel package.
func WithGlobalTracerProvider() Option {
	return func(t *Tracer) { t.registerGlobal = true }
}

// WithPropagator overrides the W3C trace context and baggage propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Tracer) {
		if p == nil {
			t.validationErrs = append(t.validationErrs, fmt.Errorf("propagator cannot be nil"))
			return
		}
		t.propagator = p
	}
}

// WithSampleRate samples new traces with probability rate in [0, 1].
// Requests carrying a sampled parent are always traced.
func WithSampleRate(rate float64) Option {
	return func(t *Tracer) { t.sampleRate = rate }
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(t *Tracer) { t.serviceName = name }
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(t *Tracer) { t.serviceVersion = version }
}

// WithExcludePaths skips tracing for the exact paths.
func WithExcludePaths(paths ...string) Option {
	return func(t *Tracer) {
		for _, p := range paths {
			t.excludePaths[p] = true
		}
	}
}

// WithExcludePrefixes skips tracing for paths starting with a prefix.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(t *Tracer) { t.excludePrefixes = append(t.excludePrefixes, prefixes...) }
}

// WithHeaders records the named request headers as span attributes.
// Credentials headers are never recorded.
func WithHeaders(headers ...string) Option {
	return func(t *Tracer) {
		for _, h := range headers {
			h = http.CanonicalHeaderKey(h)
			if sensitiveHeaders[h] {
				continue
			}
			t.recordHeaders = append(t.recordHeaders, h)
		}
	}
}

// WithLogger receives operational messages. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Cookie":              true,
	"Set-Cookie":          true,
	"X-Api-Key":           true,
	"X-Auth-Token":        true,
	"Proxy-Authorization": true,
}
