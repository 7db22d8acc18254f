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
	"fmt"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func (r *Recorder) initProvider() error {
	if r.customProvider {
		if r.meterProvider == nil {
			return fmt.Errorf("custom meter provider is nil")
		}
		return r.initInstruments()
	}

	readers := r.readers
	switch r.provider {
	case PrometheusProvider:
		r.promRegistry = promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(r.promRegistry))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		readers = append(readers, exporter)
		r.promHandler = promhttp.HandlerFor(r.promRegistry, promhttp.HandlerOpts{})
	case OTLPProvider:
		exporter, err := otlpmetrichttp.New(context.Background(), otlpOptions(r.otlpEndpoint)...)
		if err != nil {
			return fmt.Errorf("create otlp exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval)))
	case StdoutProvider:
		exporter, err := stdoutmetric.New(r.stdoutOpts...)
		if err != nil {
			return fmt.Errorf("create stdout exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval)))
	}

	opts := make([]sdkmetric.Option, 0, len(readers))
	for _, rd := range readers {
		opts = append(opts, sdkmetric.WithReader(rd))
	}
	r.sdkProvider = sdkmetric.NewMeterProvider(opts...)
	r.meterProvider = r.sdkProvider
	if r.registerGlobal {
		otel.SetMeterProvider(r.sdkProvider)
	}
	r.logger.Debug("metrics provider initialized", "provider", r.provider)
	return r.initInstruments()
}

// otlpOptions turns "http://collector:4318/v1/metrics" into exporter
// options; a plain http scheme disables TLS.
func otlpOptions(endpoint string) []otlpmetrichttp.Option {
	if endpoint == "" {
		return nil
	}
	insecure := strings.HasPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if i := strings.IndexByte(endpoint, '/'); i != -1 {
		endpoint = endpoint[:i]
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return opts
}
