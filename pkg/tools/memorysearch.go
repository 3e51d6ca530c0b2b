// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/autoagent/pkg/memory"
)

const (
	MemorySearchToolName = "memory_search"

	noRelevantMemories = "No relevant memories found"
	memorySearchK      = 5
	memorySnippetLen   = 200
)

// MemoryQuerier is the part of memory.Store the search tool needs.
type MemoryQuerier interface {
	Query(ctx context.Context, text string, k int, collection memory.Collection) ([]memory.Match, error)
}

// MemorySearchTool searches learned facts.
type MemorySearchTool struct {
	store  MemoryQuerier
	logger *slog.Logger
}

// NewMemorySearchTool creates the memory_search tool over store.
func NewMemorySearchTool(store MemoryQuerier) *MemorySearchTool {
	return &MemorySearchTool{store: store, logger: slog.Default()}
}

func (t *MemorySearchTool) Descriptor() Descriptor {
	return Descriptor{
		Name:        MemorySearchToolName,
		Description: "Search facts the agent has learned",
		Capability:  CapabilitySafe,
	}
}

func (t *MemorySearchTool) Validate(string) error { return nil }

func (t *MemorySearchTool) Invoke(ctx context.Context, input string) (Result, error) {
	if t.store == nil {
		return Result{Output: noRelevantMemories}, nil
	}
	matches, err := t.store.Query(ctx, Argument(input, MemorySearchToolName), memorySearchK, memory.CollectionFact)
	if err != nil {
		t.logger.Warn("memory search failed", slog.String("error", err.Error()))
		return Result{Output: noRelevantMemories}, nil
	}
	if len(matches) == 0 {
		return Result{Output: noRelevantMemories}, nil
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("• %s... (Relevance: %.2f)", truncateRunes(m.Record.Text, memorySnippetLen), m.Score)
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}
