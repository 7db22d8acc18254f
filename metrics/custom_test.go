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

package metrics

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCustomMetrics(t *testing.T) {
	t.Parallel()

	rd := sdkmetric.NewManualReader()
	rec := MustNew(WithReader(rd))
	ctx := context.Background()

	require.NoError(t, rec.AddCounter(ctx, "orders_created", 2, attribute.String("region", "eu")))
	require.NoError(t, rec.IncrementCounter(ctx, "orders_created", attribute.String("region", "eu")))
	require.NoError(t, rec.RecordHistogram(ctx, "checkout.latency", 0.3))
	require.NoError(t, rec.SetGauge(ctx, "queue-depth", 12))

	got := collect(t, rd)
	assert.Equal(t, int64(3), counterTotal(t, got["orders_created"]))
	_, ok := got["checkout.latency"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
	gauge, ok := got["queue-depth"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.InDelta(t, 12.0, gauge.DataPoints[0].Value, 1e-9)
}

func TestCustomMetrics_Rejected(t *testing.T) {
	t.Parallel()

	rec := MustNew(WithReader(sdkmetric.NewManualReader()), WithMaxCustomMetrics(1))
	ctx := context.Background()

	for _, name := range []string{"", "9lives", "http_custom", "__internal", "has space"} {
		assert.Error(t, rec.IncrementCounter(ctx, name), name)
	}

	require.NoError(t, rec.IncrementCounter(ctx, "first"))
	err := rec.SetGauge(ctx, "second", 1)
	var limit *limitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 1, limit.limit)

	assert.Equal(t, int64(6), rec.CustomMetricFailures())
}

func TestCustomMetrics_Concurrent(t *testing.T) {
	t.Parallel()

	rd := sdkmetric.NewManualReader()
	rec := MustNew(WithReader(rd))

	var wg sync.WaitGroup
	for range 32 {
		wg.Go(func() {
			_ = rec.IncrementCounter(context.Background(), "jobs_done")
		})
	}
	wg.Wait()

	assert.Equal(t, int64(32), counterTotal(t, collect(t, rd)["jobs_done"]))
}
