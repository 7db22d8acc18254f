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

// Package tracing records a server span per request through
// [crest.dev/router.ObservabilityRecorder].
//
// Spans continue the caller's W3C trace context, are named "METHOD route"
// once a rule matched, and export to stdout, OTLP over HTTP or OTLP over
// gRPC:
//
//	tr := tracing.MustNew(
//	    tracing.WithOTLP("http://localhost:4318"),
//	    tracing.WithServiceName("orders"),
//	    tracing.WithSampleRate(0.1),
//	)
//	if err := tr.Start(ctx); err != nil {
//	    return err
//	}
//	defer tr.Shutdown(context.Background())
//
//	r := router.MustNew(router.WithObservability(tr))
//
// Unmatched requests keep the bare method as the span name so that
// scanners cannot blow up span cardinality.
package tracing
