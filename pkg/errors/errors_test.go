// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("deadline exceeded")
	ae := New(CodeTimeout, "command timed out", cause)

	if ae.Code != CodeTimeout {
		t.Errorf("expected CodeTimeout, got %v", ae.Code)
	}
	if ae.Message != "command timed out" {
		t.Errorf("unexpected message %q", ae.Message)
	}
	if !errors.Is(ae, cause) {
		t.Errorf("expected errors.Is to reach the cause")
	}
}

func TestWithContextAndRecoverable(t *testing.T) {
	ae := New(CodeToolFailure, "tool failed", nil).
		WithContext("tool", "web_search").
		WithRecoverable(true)

	if ae.Context["tool"] != "web_search" {
		t.Errorf("expected context tool to be web_search")
	}
	if !ae.Recoverable {
		t.Errorf("expected recoverable")
	}
	if ae.RecoverableString() != "true" {
		t.Errorf("expected recoverable string true")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		ae       *AgentError
		expected string
	}{
		{
			name:     "with cause",
			ae:       New(CodeTimeout, "operation timed out", errors.New("deadline exceeded")),
			expected: "[TIMEOUT] operation timed out: deadline exceeded",
		},
		{
			name:     "without cause",
			ae:       New(CodeNotFound, "tool not found", nil),
			expected: "[NOT_FOUND] tool not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ae.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestIsComparesCodes(t *testing.T) {
	err := fmt.Errorf("executing: %w", New(CodeBlocked, "command execution is disabled", nil))
	if !errors.Is(err, New(CodeBlocked, "", nil)) {
		t.Fatalf("expected wrapped blocked error to match by code")
	}
	if errors.Is(err, New(CodeTimeout, "", nil)) {
		t.Fatalf("did not expect timeout to match")
	}
	if !HasCode(err, CodeBlocked) {
		t.Fatalf("expected HasCode to find blocked")
	}
}

func TestHasCodeNested(t *testing.T) {
	inner := New(CodeTimeout, "sandbox timed out", nil)
	outer := New(CodeToolFailure, "code evaluation failed", inner)
	if !HasCode(outer, CodeTimeout) {
		t.Fatalf("expected nested timeout code")
	}
	if HasCode(errors.New("plain"), CodeTimeout) {
		t.Fatalf("plain error must not carry a code")
	}
}

func TestAsAgentError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "already AgentError", err: New(CodeToolFailure, "failed", nil), expected: CodeToolFailure},
		{name: "wrapped AgentError", err: fmt.Errorf("x: %w", New(CodeStorage, "write", nil)), expected: CodeStorage},
		{name: "generic error", err: errors.New("generic error"), expected: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{New(CodeBlocked, "command execution is disabled", nil), "blocked: command execution is disabled"},
		{New(CodeTimeout, "", errors.New("1s elapsed")), "timed out: 1s elapsed"},
		{errors.New("boom"), "boom"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	ae := New(CodeToolFailure, "tool failed", errors.New("network error")).
		WithContext("tool", "wikipedia").
		WithRecoverable(true)

	data, err := json.Marshal(ae)
	if err != nil {
		t.Fatalf("unexpected error marshaling: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unexpected error unmarshaling: %v", err)
	}
	if result["code"] != "TOOL_FAILURE" {
		t.Errorf("expected code TOOL_FAILURE, got %v", result["code"])
	}
	if result["error"] != "network error" {
		t.Errorf("expected cause in json, got %v", result["error"])
	}
	if result["recoverable"] != true {
		t.Errorf("expected recoverable true")
	}
}

func TestIsAgentError(t *testing.T) {
	if IsAgentError(nil) {
		t.Errorf("nil is not an agent error")
	}
	if IsAgentError(errors.New("plain")) {
		t.Errorf("plain errors are not agent errors")
	}
	wrapped := fmt.Errorf("outer: %w", New(CodeStorage, "write failed", nil))
	if !IsAgentError(wrapped) {
		t.Errorf("expected wrapped agent error to be detected")
	}
}
