// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"sync"
	"time"
)

// Outcome of a tool execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeBlocked Outcome = "blocked"
)

// maxRecordedInput bounds the input kept in history entries.
const maxRecordedInput = 100

// Usage records one tool execution.
type Usage struct {
	Tool      string        `json:"tool"`
	Input     string        `json:"input"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// HistoryFilter limits history queries.
type HistoryFilter struct {
	Tool    string
	Outcome Outcome
	Limit   int
}

// History persists tool usage.
type History interface {
	Record(ctx context.Context, usage Usage) error
	List(ctx context.Context, filter HistoryFilter) ([]Usage, error)
}

// MemoryHistory keeps usage in memory.
type MemoryHistory struct {
	mu    sync.Mutex
	usage []Usage
}

// NewMemoryHistory returns an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// Record appends a usage entry.
func (h *MemoryHistory) Record(_ context.Context, usage Usage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.usage = append(h.usage, usage)
	return nil
}

// List returns matching entries, oldest first.
func (h *MemoryHistory) List(_ context.Context, filter HistoryFilter) ([]Usage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Usage, 0, len(h.usage))
	for _, u := range h.usage {
		if !filter.matches(u) {
			continue
		}
		out = append(out, u)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (f HistoryFilter) matches(u Usage) bool {
	if f.Tool != "" && u.Tool != f.Tool {
		return false
	}
	if f.Outcome != "" && u.Outcome != f.Outcome {
		return false
	}
	return true
}
