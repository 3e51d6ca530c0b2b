// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jllopis/autoagent/pkg/errors"
)

func newTestMetrics(t *testing.T) (*AgentMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	m, err := NewAgentMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestAgentMetricsCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTurn(ctx, false)
	m.RecordTurn(ctx, true)
	m.RecordToolExecution(ctx, "web_search", "success")
	m.RecordError(ctx, errors.New(errors.CodeBlocked, "blocked", nil), "tools")
	m.RecordError(ctx, fmt.Errorf("foreign"), "agent")
	m.RecordError(ctx, nil, "agent")
	m.RecordDegraded(ctx)
	m.RecordCleanup(ctx, "conversation", 3)
	m.RecordCleanup(ctx, "fact", 0)

	tests := []struct {
		name string
		want int64
	}{
		{"autoagent.turns.total", 2},
		{"autoagent.tool.executions", 1},
		{"autoagent.errors.total", 2},
		{"autoagent.responses.degraded", 1},
		{"autoagent.memory.cleanup.removed", 3},
	}
	for _, tc := range tests {
		if got := sumOf(t, reader, tc.name); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *AgentMetrics
	ctx := context.Background()
	m.RecordTurn(ctx, false)
	m.RecordToolExecution(ctx, "x", "error")
	m.RecordError(ctx, fmt.Errorf("x"), "agent")
	m.RecordDegraded(ctx)
	m.RecordCleanup(ctx, "fact", 1)
	m.RecordCircuitBreakerState(ctx, "llm", "open")
}
