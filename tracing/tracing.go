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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "crest.dev/tracing"

// Provider selects where spans are exported.
type Provider string

const (
	// NoopProvider records spans in memory only; useful with span processors
	// attached through [WithSpanProcessor].
	NoopProvider Provider = "noop"
	// StdoutProvider prints spans, for development.
	StdoutProvider Provider = "stdout"
	// OTLPProvider exports over OTLP/HTTP.
	OTLPProvider Provider = "otlp"
	// OTLPGRPCProvider exports over OTLP/gRPC.
	OTLPGRPCProvider Provider = "otlp-grpc"
)

// Tracer creates server spans for router requests. It implements
// router.ObservabilityRecorder and is safe for concurrent use.
type Tracer struct {
	tracer      trace.Tracer
	provider    trace.TracerProvider
	sdkProvider *sdktrace.TracerProvider
	propagator  propagation.TextMapPropagator
	logger      *slog.Logger

	kind           Provider
	kindSetCount   int
	endpoint       string
	insecure       bool
	stdout         io.Writer
	processors     []sdktrace.SpanProcessor
	customProvider bool
	registerGlobal bool
	sampleRate     float64

	serviceName    string
	serviceVersion string

	excludePaths    map[string]bool
	excludePrefixes []string
	recordHeaders   []string

	validationErrs []error
	started        atomic.Bool
	shuttingDown   atomic.Bool
}

// New builds a Tracer. Noop and stdout providers are ready immediately;
// OTLP providers export once [Tracer.Start] has run.
func New(opts ...Option) (*Tracer, error) {
	t := &Tracer{
		kind:           NoopProvider,
		serviceName:    "crest",
		serviceVersion: "dev",
		sampleRate:     1,
		logger:         slog.New(slog.DiscardHandler),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		excludePaths: map[string]bool{},
	}
	t.tracer = noop.NewTracerProvider().Tracer(tracerName)
	for _, opt := range opts {
		opt(t)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("tracing: invalid configuration: %w", err)
	}

	switch {
	case t.customProvider:
		t.useProvider(t.provider)
		t.started.Store(true)
	case t.kind == NoopProvider || t.kind == StdoutProvider:
		if err := t.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is [New] that panics on error.
func MustNew(opts ...Option) *Tracer {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tracer) validate() error {
	errs := errors.Join(t.validationErrs...)
	if t.kindSetCount > 1 {
		errs = errors.Join(errs, errors.New("only one provider option may be used"))
	}
	if t.serviceName == "" {
		errs = errors.Join(errs, errors.New("service name cannot be empty"))
	}
	if t.sampleRate < 0 || t.sampleRate > 1 {
		errs = errors.Join(errs, fmt.Errorf("sample rate must be within [0, 1], got %v", t.sampleRate))
	}
	if t.customProvider && t.provider == nil {
		errs = errors.Join(errs, errors.New("tracer provider cannot be nil"))
	}
	switch t.kind {
	case NoopProvider, StdoutProvider, OTLPProvider, OTLPGRPCProvider:
	default:
		errs = errors.Join(errs, fmt.Errorf("unsupported provider %q", t.kind))
	}
	return errs
}

// Start creates the exporter and provider. It is idempotent and must run
// before the tracer serves requests.
func (t *Tracer) Start(ctx context.Context) error {
	if t.started.Load() {
		return nil
	}
	tp, err := t.newSDKProvider(ctx)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if !t.started.CompareAndSwap(false, true) {
		return tp.Shutdown(ctx)
	}
	t.sdkProvider = tp
	t.useProvider(tp)
	t.logger.Debug("tracing provider initialized", "provider", t.kind, "service", t.serviceName)
	return nil
}

// Shutdown flushes and stops the SDK provider. A provider passed with
// [WithTracerProvider] is left to its owner.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.shuttingDown.CompareAndSwap(false, true) || t.sdkProvider == nil {
		return nil
	}
	if err := t.sdkProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracing: shutdown: %w", err)
	}
	return nil
}

// ForceFlush exports all ended spans.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.sdkProvider == nil {
		return nil
	}
	return t.sdkProvider.ForceFlush(ctx)
}

// Provider returns the configured export provider.
func (t *Tracer) Provider() Provider { return t.kind }

// TracerProvider returns the provider spans are created from.
func (t *Tracer) TracerProvider() trace.TracerProvider {
	if t.provider == nil {
		return noop.NewTracerProvider()
	}
	return t.provider
}

// StartSpan starts a child span of the span in ctx.
//
//	ctx, span := tr.StartSpan(ctx, "load order")
//	defer span.End()
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Inject writes the span context of ctx into h.
func (t *Tracer) Inject(ctx context.Context, h http.Header) {
	t.propagator.Inject(ctx, propagation.HeaderCarrier(h))
}

// Extract returns ctx carrying the remote span context found in h.
func (t *Tracer) Extract(ctx context.Context, h http.Header) context.Context {
	return t.propagator.Extract(ctx, propagation.HeaderCarrier(h))
}

// TraceID returns the trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

func (t *Tracer) useProvider(tp trace.TracerProvider) {
	t.provider = tp
	t.tracer = tp.Tracer(tracerName)
}

func (t *Tracer) excluded(path string) bool {
	if t.excludePaths[path] {
		return true
	}
	for _, p := range t.excludePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
