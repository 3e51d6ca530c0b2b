// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/autoagent/pkg/errors"
)

const meterName = "autoagent"

// AgentMetrics holds the counters the orchestrator exports. A nil
// *AgentMetrics is valid and records nothing.
type AgentMetrics struct {
	turns           metric.Int64Counter
	toolExecutions  metric.Int64Counter
	errorCounter    metric.Int64Counter
	degraded        metric.Int64Counter
	cleanupRemovals metric.Int64Counter
	breakerState    metric.Int64Gauge
}

// NewAgentMetrics creates the counters on the global meter provider.
func NewAgentMetrics() (*AgentMetrics, error) {
	meter := otel.Meter(meterName)

	turns, err := meter.Int64Counter(
		"autoagent.turns.total",
		metric.WithDescription("Turns processed"),
	)
	if err != nil {
		return nil, err
	}

	toolExecutions, err := meter.Int64Counter(
		"autoagent.tool.executions",
		metric.WithDescription("Tool executions by tool and outcome"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"autoagent.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	degraded, err := meter.Int64Counter(
		"autoagent.responses.degraded",
		metric.WithDescription("Turns answered with the degraded response"),
	)
	if err != nil {
		return nil, err
	}

	cleanupRemovals, err := meter.Int64Counter(
		"autoagent.memory.cleanup.removed",
		metric.WithDescription("Memory records removed by retention cleanup"),
	)
	if err != nil {
		return nil, err
	}

	breakerState, err := meter.Int64Gauge(
		"autoagent.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		turns:           turns,
		toolExecutions:  toolExecutions,
		errorCounter:    errorCounter,
		degraded:        degraded,
		cleanupRemovals: cleanupRemovals,
		breakerState:    breakerState,
	}, nil
}

// RecordTurn counts a processed turn.
func (m *AgentMetrics) RecordTurn(ctx context.Context, conversational bool) {
	if m == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrConversational, conversational)))
}

// RecordToolExecution counts a tool run by outcome.
func (m *AgentMetrics) RecordToolExecution(ctx context.Context, tool, outcome string) {
	if m == nil {
		return
	}
	m.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrToolName, tool),
		attribute.String(AttrToolOutcome, outcome),
	))
}

// RecordError counts err under its code for component.
func (m *AgentMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	recoverable := "unknown"
	if errors.IsAgentError(err) {
		recoverable = errors.AsAgentError(err).RecoverableString()
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
		attribute.String(AttrComponent, component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordDegraded counts a degraded response.
func (m *AgentMetrics) RecordDegraded(ctx context.Context) {
	if m == nil {
		return
	}
	m.degraded.Add(ctx, 1)
}

// RecordCleanup counts records removed from collection.
func (m *AgentMetrics) RecordCleanup(ctx context.Context, collection string, removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.cleanupRemovals.Add(ctx, int64(removed), metric.WithAttributes(
		attribute.String(AttrMemoryCollection, collection),
	))
}

// RecordCircuitBreakerState records a breaker state by name: "open",
// "half-open" or "closed".
func (m *AgentMetrics) RecordCircuitBreakerState(ctx context.Context, component, state string) {
	if m == nil {
		return
	}
	var v int64
	switch state {
	case "half-open":
		v = 1
	case "closed":
		v = 2
	}
	m.breakerState.Record(ctx, v, metric.WithAttributes(attribute.String(AttrComponent, component)))
}
