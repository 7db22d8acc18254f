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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "crest.dev/metrics"

var (
	// DefaultDurationBuckets are the request duration boundaries in seconds.
	DefaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

	// DefaultSizeBuckets are the body size boundaries in bytes.
	DefaultSizeBuckets = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
)

// Provider selects where metrics are exported.
type Provider string

const (
	// PrometheusProvider exposes a scrape endpoint through [Recorder.Handler].
	PrometheusProvider Provider = "prometheus"
	// OTLPProvider pushes to an OTLP/HTTP collector.
	OTLPProvider Provider = "otlp"
	// StdoutProvider prints periodic snapshots, for development.
	StdoutProvider Provider = "stdout"
)

// Recorder records HTTP server metrics for a router. It implements
// router.ObservabilityRecorder and is safe for concurrent use.
type Recorder struct {
	meter         metric.Meter
	meterProvider metric.MeterProvider
	sdkProvider   *sdkmetric.MeterProvider
	promRegistry  *promclient.Registry
	promHandler   http.Handler
	logger        *slog.Logger

	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	requestSize     metric.Int64Histogram
	responseSize    metric.Int64Histogram
	errorCount      metric.Int64Counter
	customFailures  metric.Int64Counter

	customMu         sync.RWMutex
	customCounters   map[string]metric.Int64Counter
	customHistograms map[string]metric.Float64Histogram
	customGauges     map[string]metric.Float64Gauge
	maxCustomMetrics int

	provider         Provider
	providerSetCount int
	otlpEndpoint     string
	exportInterval   time.Duration
	stdoutOpts       []stdoutmetric.Option
	readers          []sdkmetric.Reader
	customProvider   bool
	registerGlobal   bool
	durationBuckets  []float64
	sizeBuckets      []float64
	filter           *pathFilter
	validationErrs   []error

	serviceName    string
	serviceVersion string
	baseAttrs      []attribute.KeyValue

	shuttingDown atomic.Bool
	failures     atomic.Int64
}

// New builds a Recorder. The default provider is Prometheus.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		provider:         PrometheusProvider,
		serviceName:      "crest",
		serviceVersion:   "dev",
		exportInterval:   30 * time.Second,
		maxCustomMetrics: 1000,
		durationBuckets:  DefaultDurationBuckets,
		sizeBuckets:      DefaultSizeBuckets,
		logger:           slog.New(slog.DiscardHandler),
		filter:           newPathFilter(),
		customCounters:   map[string]metric.Int64Counter{},
		customHistograms: map[string]metric.Float64Histogram{},
		customGauges:     map[string]metric.Float64Gauge{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("metrics: invalid configuration: %w", err)
	}
	r.baseAttrs = []attribute.KeyValue{
		attribute.String("service.name", r.serviceName),
		attribute.String("service.version", r.serviceVersion),
	}
	if err := r.initProvider(); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return r, nil
}

// MustNew is [New] that panics on error.
func MustNew(opts ...Option) *Recorder {
	r, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Recorder) validate() error {
	errs := errors.Join(r.validationErrs...)
	if r.providerSetCount > 1 {
		errs = errors.Join(errs, errors.New("only one of WithPrometheus, WithOTLP or WithStdout may be used"))
	}
	if r.serviceName == "" {
		errs = errors.Join(errs, errors.New("service name cannot be empty"))
	}
	if r.maxCustomMetrics < 1 {
		errs = errors.Join(errs, fmt.Errorf("max custom metrics must be at least 1, got %d", r.maxCustomMetrics))
	}
	switch r.provider {
	case PrometheusProvider, StdoutProvider:
	case OTLPProvider:
		if r.otlpEndpoint == "" {
			r.logger.Warn("OTLP endpoint not set, using default", "endpoint", "http://localhost:4318")
			r.otlpEndpoint = "http://localhost:4318"
		}
	default:
		errs = errors.Join(errs, fmt.Errorf("unsupported provider %q", r.provider))
	}
	return errs
}

// Provider returns the configured export provider.
func (r *Recorder) Provider() Provider { return r.provider }

// MeterProvider returns the provider instruments are created from.
func (r *Recorder) MeterProvider() metric.MeterProvider { return r.meterProvider }

// Handler returns the Prometheus scrape handler. It fails for other
// providers.
func (r *Recorder) Handler() (http.Handler, error) {
	if r.promHandler == nil {
		return nil, fmt.Errorf("metrics: handler only available with the prometheus provider, have %s", r.provider)
	}
	return r.promHandler, nil
}

// ForceFlush exports pending data for push providers.
func (r *Recorder) ForceFlush(ctx context.Context) error {
	if r.sdkProvider == nil {
		return nil
	}
	return r.sdkProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the SDK provider. A provider passed with
// [WithMeterProvider] is left to its owner. Only the first call has effect.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if !r.shuttingDown.CompareAndSwap(false, true) || r.sdkProvider == nil {
		return nil
	}
	if err := r.sdkProvider.ForceFlush(ctx); err != nil {
		r.logger.Warn("metrics flush failed", "error", err)
	}
	if err := r.sdkProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
