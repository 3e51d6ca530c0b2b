// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestTurnAttributes(t *testing.T) {
	m := attrMap(TurnAttributes("turn-1", true, false))
	if m[AttrTurnID].AsString() != "turn-1" {
		t.Errorf("expected turn id")
	}
	if !m[AttrConversational].AsBool() || m[AttrShouldContinue].AsBool() {
		t.Errorf("unexpected flags %v", m)
	}
}

func TestMemoryAttributes(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		retrieved int
		wantScore bool
		wantKeys  int
	}{
		{"empty", "", 0, false, 1},
		{"with results", "chromem", 2, true, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			attrs := MemoryAttributes(tc.backend, tc.retrieved, 0.5)
			if len(attrs) != tc.wantKeys {
				t.Fatalf("expected %d attributes, got %d", tc.wantKeys, len(attrs))
			}
			_, ok := attrMap(attrs)[AttrMemoryBestScore]
			if ok != tc.wantScore {
				t.Fatalf("expected best score present=%v", tc.wantScore)
			}
		})
	}
}

func TestToolAttributesTruncatesInput(t *testing.T) {
	long := strings.Repeat("é", 20)
	m := attrMap(ToolAttributes("web_search", long, "success", 5))
	if got := m[AttrToolInput].AsString(); got != "ééééé..." {
		t.Fatalf("unexpected truncated input %q", got)
	}
	if m[AttrToolOutcome].AsString() != "success" {
		t.Fatalf("expected outcome")
	}

	m = attrMap(ToolAttributes("file_read", "", "error", 0))
	if _, ok := m[AttrToolInput]; ok {
		t.Fatalf("empty input should be omitted")
	}
}

func TestToolsetAttributes(t *testing.T) {
	m := attrMap(ToolsetAttributes([]string{"web_search", "wikipedia"}))
	if m[AttrToolsCount].AsInt64() != 2 || len(m[AttrToolsNames].AsStringSlice()) != 2 {
		t.Fatalf("unexpected toolset attributes %v", m)
	}
	if len(ToolsetAttributes(nil)) != 1 {
		t.Fatalf("expected only the count for an empty toolset")
	}
}

func TestLLMUsageAttributes(t *testing.T) {
	if len(LLMUsageAttributes(0, 0)) != 0 {
		t.Fatalf("expected no attributes for zero usage")
	}
	m := attrMap(LLMUsageAttributes(10, 5))
	if m[AttrLLMTokensTotal].AsInt64() != 15 {
		t.Fatalf("expected total tokens 15, got %v", m[AttrLLMTokensTotal])
	}
	m = attrMap(LLMAttributes("llama3.2", 3))
	if m[AttrLLMModel].AsString() != "llama3.2" || m[AttrLLMMessages].AsInt64() != 3 {
		t.Fatalf("unexpected llm attributes %v", m)
	}
}
