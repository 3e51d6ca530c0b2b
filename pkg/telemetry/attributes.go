// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration, trace-aware logging
// and the agent's counters.
package telemetry

import (
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for agent telemetry.
const (
	// Turn attributes
	AttrTurnID         = "autoagent.turn.id"
	AttrTurnPhase      = "autoagent.turn.phase"
	AttrConversational = "autoagent.turn.conversational"
	AttrShouldContinue = "autoagent.turn.should_continue"
	AttrDegraded       = "autoagent.turn.degraded"

	// Memory attributes
	AttrMemoryBackend    = "autoagent.memory.backend"
	AttrMemoryCollection = "autoagent.memory.collection"
	AttrMemoryRetrieved  = "autoagent.memory.retrieved_count"
	AttrMemoryBestScore  = "autoagent.memory.best_score"
	AttrMemoryRemoved    = "autoagent.memory.removed"

	// Tool attributes
	AttrToolName    = "autoagent.tool.name"
	AttrToolInput   = "autoagent.tool.input"
	AttrToolOutcome = "autoagent.tool.outcome"
	AttrToolsCount  = "autoagent.tools.count"
	AttrToolsNames  = "autoagent.tools.names"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"

	// Error attributes
	AttrErrorCode = "error.code"
	AttrComponent = "component"
)

// TurnAttributes returns common attributes for turn spans.
func TurnAttributes(turnID string, conversational, shouldContinue bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTurnID, turnID),
		attribute.Bool(AttrConversational, conversational),
		attribute.Bool(AttrShouldContinue, shouldContinue),
	}
}

// MemoryAttributes returns attributes for a memory lookup.
func MemoryAttributes(backend string, retrieved int, bestScore float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrMemoryRetrieved, retrieved),
	}
	if backend != "" {
		attrs = append(attrs, attribute.String(AttrMemoryBackend, backend))
	}
	if retrieved > 0 {
		attrs = append(attrs, attribute.Float64(AttrMemoryBestScore, bestScore))
	}
	return attrs
}

// ToolAttributes returns attributes for a tool execution. The input is
// truncated to maxLen characters (500 when maxLen is not positive).
func ToolAttributes(name, input, outcome string, maxLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolOutcome, outcome),
	}
	if input != "" {
		attrs = append(attrs, attribute.String(AttrToolInput, truncate(input, maxLen)))
	}
	return attrs
}

// ToolsetAttributes returns attributes describing the matched tools.
func ToolsetAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrToolsCount, len(names)),
	}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrToolsNames, names))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	return attrs
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 500
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
