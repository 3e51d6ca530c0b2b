// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"time"

	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/resilience"
	"github.com/jllopis/autoagent/pkg/tools"
)

// Stats summarizes the session.
type Stats struct {
	Turns              int               `json:"turns" yaml:"turns"`
	DegradedResponses  int               `json:"degraded_responses" yaml:"degraded_responses"`
	ConversationLength int               `json:"conversation_length" yaml:"conversation_length"`
	Tools              int               `json:"tools" yaml:"tools"`
	ToolExecutions     int               `json:"tool_executions" yaml:"tool_executions"`
	LLMStatus          resilience.Status `json:"llm_status" yaml:"llm_status"`
	CircuitBreaker     string            `json:"circuit_breaker" yaml:"circuit_breaker"`
	Uptime             string            `json:"uptime" yaml:"uptime"`
	LastTurn           *time.Time        `json:"last_turn,omitempty" yaml:"last_turn,omitempty"`
	Memory             *memory.Stats     `json:"memory,omitempty" yaml:"memory,omitempty"`
	MemoryError        string            `json:"memory_error,omitempty" yaml:"memory_error,omitempty"`
	ToolHistoryError   string            `json:"tool_history_error,omitempty" yaml:"tool_history_error,omitempty"`
}

// Stats reports counters for the session, the memory store and tool usage.
// Backend failures are reported in the result, not returned.
func (o *Orchestrator) Stats(ctx context.Context) Stats {
	o.mu.Lock()
	st := Stats{
		Turns:              o.turns,
		DegradedResponses:  o.degraded,
		ConversationLength: len(o.history),
		Uptime:             time.Since(o.startedAt).Round(time.Second).String(),
	}
	if !o.lastTurn.IsZero() {
		last := o.lastTurn
		st.LastTurn = &last
	}
	o.mu.Unlock()

	st.Tools = o.registry.Len()
	st.LLMStatus = o.degrader.Status()
	st.CircuitBreaker = string(o.breaker.State())

	if h := o.registry.History(); h != nil {
		usage, err := h.List(ctx, tools.HistoryFilter{})
		if err != nil {
			st.ToolHistoryError = err.Error()
		}
		st.ToolExecutions = len(usage)
	}

	if o.memory != nil {
		ms, err := o.memory.Stats(ctx)
		if err != nil {
			st.MemoryError = err.Error()
		} else {
			st.Memory = &ms
		}
	}
	return st
}
