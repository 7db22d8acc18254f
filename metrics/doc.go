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

// Package metrics records HTTP server metrics with OpenTelemetry.
//
// A [Recorder] plugs into the router as an observability recorder and
// exports through Prometheus (default), OTLP/HTTP or stdout:
//
//	rec := metrics.MustNew(metrics.WithServiceName("orders"))
//	r := router.MustNew(router.WithObservability(rec))
//	h, _ := rec.Handler()
//	r.GET("/metrics", router.WrapHTTP(h))
//
// Requests are labeled with the matched route template rather than the raw
// path, and unmatched requests with router.PatternNotFound or
// router.PatternMethodNotAllowed, keeping label cardinality bounded.
//
// Custom instruments are created on first use with [Recorder.AddCounter],
// [Recorder.RecordHistogram] and [Recorder.SetGauge].
package metrics
