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
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func (t *Tracer) newSDKProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(t.serviceName),
			semconv.ServiceVersion(t.serviceVersion),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.sampleRate))),
	}
	for _, p := range t.processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch t.kind {
	case StdoutProvider:
		sopts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if t.stdout != nil {
			sopts = append(sopts, stdouttrace.WithWriter(t.stdout))
		}
		exporter, err = stdouttrace.New(sopts...)
	case OTLPProvider:
		host, insecure := splitEndpoint(t.endpoint)
		hopts := []otlptracehttp.Option{}
		if host != "" {
			hopts = append(hopts, otlptracehttp.WithEndpoint(host))
		}
		if insecure || t.insecure {
			hopts = append(hopts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, hopts...)
	case OTLPGRPCProvider:
		host, insecure := splitEndpoint(t.endpoint)
		gopts := []otlptracegrpc.Option{}
		if host != "" {
			gopts = append(gopts, otlptracegrpc.WithEndpoint(host))
		}
		if insecure || t.insecure {
			gopts = append(gopts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, gopts...)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", t.kind, err)
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	if t.registerGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(t.propagator)
	}
	return tp, nil
}

// splitEndpoint strips the scheme and path from endpoint. A plain http
// scheme reports insecure.
func splitEndpoint(endpoint string) (host string, insecure bool) {
	insecure = strings.HasPrefix(endpoint, "http://")
	host = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if i := strings.IndexByte(host, '/'); i != -1 {
		host = host[:i]
	}
	return host, insecure
}
