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
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Option configures a [Recorder].
type Option func(*Recorder)

// WithPrometheus exports through a Prometheus registry served by
// [Recorder.Handler]. This is the default.
func WithPrometheus() Option {
	return func(r *Recorder) {
		r.provider = PrometheusProvider
		r.providerSetCount++
	}
}

// WithOTLP pushes to an OTLP/HTTP collector such as
// "http://localhost:4318".
func WithOTLP(endpoint string) Option {
	return func(r *Recorder) {
		r.provider = OTLPProvider
		r.otlpEndpoint = endpoint
		r.providerSetCount++
	}
}

// WithStdout prints snapshots to w, or stdout when w is nil.
func WithStdout(w io.Writer) Option {
	return func(r *Recorder) {
		r.provider = StdoutProvider
		r.providerSetCount++
		if w != nil {
			r.stdoutOpts = append(r.stdoutOpts, stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		}
	}
}

// WithMeterProvider records on a caller-owned provider. [Recorder.Shutdown]
// does not stop it.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(r *Recorder) {
		r.meterProvider = mp
		r.customProvider = true
	}
}

// WithReader attaches an extra SDK reader, such as a manual reader in tests.
func WithReader(rd sdkmetric.Reader) Option {
	return func(r *Recorder) {
		r.readers = append(r.readers, rd)
	}
}

// WithGlobalMeterProvider registers the provider with otel.SetMeterProvider.
func WithGlobalMeterProvider() Option {
	return func(r *Recorder) { r.registerGlobal = true }
}

// WithServiceName sets the service.name attribute.
func WithServiceName(name string) Option {
	return func(r *Recorder) { r.serviceName = name }
}

// WithServiceVersion sets the service.version attribute.
func WithServiceVersion(version string) Option {
	return func(r *Recorder) { r.serviceVersion = version }
}

// WithExportInterval sets the push interval for OTLP and stdout.
func WithExportInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d <= 0 {
			r.validationErrs = append(r.validationErrs, fmt.Errorf("export interval must be positive, got %s", d))
			return
		}
		r.exportInterval = d
	}
}

// WithDurationBuckets overrides [DefaultDurationBuckets].
func WithDurationBuckets(buckets ...float64) Option {
	return func(r *Recorder) { r.durationBuckets = buckets }
}

// WithSizeBuckets overrides [DefaultSizeBuckets].
func WithSizeBuckets(buckets ...float64) Option {
	return func(r *Recorder) { r.sizeBuckets = buckets }
}

// WithMaxCustomMetrics bounds the number of custom instruments. Default 1000.
func WithMaxCustomMetrics(n int) Option {
	return func(r *Recorder) { r.maxCustomMetrics = n }
}

// WithExcludePaths skips requests for the exact paths.
func WithExcludePaths(paths ...string) Option {
	return func(r *Recorder) { r.filter.addPaths(paths...) }
}

// WithExcludePrefixes skips requests whose path starts with a prefix.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(r *Recorder) { r.filter.addPrefixes(prefixes...) }
}

// WithExcludePatterns skips requests whose path matches a regular
// expression.
func WithExcludePatterns(patterns ...string) Option {
	return func(r *Recorder) {
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				r.validationErrs = append(r.validationErrs, fmt.Errorf("exclude pattern %q: %w", p, err))
				continue
			}
			r.filter.addPatterns(re)
		}
	}
}

// WithLogger receives operational messages. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}
