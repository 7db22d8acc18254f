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
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var metricNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

const maxMetricNameLength = 255

// Prefixes reserved for built-in instruments.
var reservedPrefixes = []string{"__", "http_", "router_"}

type limitError struct {
	name    string
	limit   int
	current int
}

func (e *limitError) Error() string {
	return fmt.Sprintf("metrics limit reached: cannot create %q (current: %d, limit: %d)", e.name, e.current, e.limit)
}

func validateMetricName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("metric name cannot be empty")
	case len(name) > maxMetricNameLength:
		return fmt.Errorf("metric name too long: %d characters (max %d)", len(name), maxMetricNameLength)
	case !metricNameRegex.MatchString(name):
		return fmt.Errorf("invalid metric name %q", name)
	}
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return fmt.Errorf("metric name %q uses reserved prefix %q", name, prefix)
		}
	}
	return nil
}

// RecordHistogram records value on the named histogram, creating it on
// first use.
func (r *Recorder) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error {
	h, err := getOrCreate(r, r.customHistograms, name, func(m metric.Meter) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name)
	})
	if err != nil {
		r.recordFailure(ctx)
		return fmt.Errorf("record histogram %q: %w", name, err)
	}
	h.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// IncrementCounter adds one to the named counter.
func (r *Recorder) IncrementCounter(ctx context.Context, name string, attrs ...attribute.KeyValue) error {
	return r.AddCounter(ctx, name, 1, attrs...)
}

// AddCounter adds value to the named counter, creating it on first use.
func (r *Recorder) AddCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) error {
	c, err := getOrCreate(r, r.customCounters, name, func(m metric.Meter) (metric.Int64Counter, error) {
		return m.Int64Counter(name)
	})
	if err != nil {
		r.recordFailure(ctx)
		return fmt.Errorf("add counter %q: %w", name, err)
	}
	c.Add(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// SetGauge records the current value of the named gauge.
func (r *Recorder) SetGauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error {
	g, err := getOrCreate(r, r.customGauges, name, func(m metric.Meter) (metric.Float64Gauge, error) {
		return m.Float64Gauge(name)
	})
	if err != nil {
		r.recordFailure(ctx)
		return fmt.Errorf("set gauge %q: %w", name, err)
	}
	g.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// CustomMetricFailures returns how many custom metric calls failed.
func (r *Recorder) CustomMetricFailures() int64 { return r.failures.Load() }

func (r *Recorder) recordFailure(ctx context.Context) {
	r.failures.Add(1)
	r.customFailures.Add(ctx, 1)
}

func (r *Recorder) customCount() int {
	return len(r.customCounters) + len(r.customHistograms) + len(r.customGauges)
}

func getOrCreate[T any](r *Recorder, m map[string]T, name string, create func(metric.Meter) (T, error)) (T, error) {
	r.customMu.RLock()
	inst, ok := m[name]
	r.customMu.RUnlock()
	if ok {
		return inst, nil
	}

	var zero T
	if err := validateMetricName(name); err != nil {
		return zero, err
	}

	r.customMu.Lock()
	defer r.customMu.Unlock()
	if inst, ok = m[name]; ok {
		return inst, nil
	}
	if n := r.customCount(); n >= r.maxCustomMetrics {
		return zero, &limitError{name: name, limit: r.maxCustomMetrics, current: n}
	}
	inst, err := create(r.meter)
	if err != nil {
		return zero, err
	}
	m[name] = inst
	return inst, nil
}
