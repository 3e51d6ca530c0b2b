// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed error taxonomy shared by the agent core.
// Everything below the orchestrator reports failures as *AgentError so the
// turn loop can turn them into result strings or a degraded response.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies agent errors for logging, metrics and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an unexpected internal failure.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeConfiguration indicates invalid or missing configuration. Fatal at startup.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"

	// CodeInvalidInput indicates the input was rejected by validation.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeBlocked indicates a capability is disabled or the input matched a policy rule.
	CodeBlocked ErrorCode = "BLOCKED"

	// CodePermissionDenied indicates a path outside the allowed directories.
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// CodeTooLarge indicates a file exceeds the configured size limit.
	CodeTooLarge ErrorCode = "TOO_LARGE"

	// CodeTimeout indicates an operation exceeded its wall-clock limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNotFound indicates a tool or record was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeDuplicate indicates a tool name is already registered.
	CodeDuplicate ErrorCode = "DUPLICATE"

	// CodeToolFailure indicates a tool ran but failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeBackendUnavailable indicates the language-model or embedding backend is down.
	CodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"

	// CodeStorage indicates a memory read or write failed.
	CodeStorage ErrorCode = "STORAGE_ERROR"

	// CodeDimensionMismatch indicates an embedding of the wrong length.
	CodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
)

// AgentError is a typed error with context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type AgentError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *AgentError with the same code.
// This lets callers write errors.Is(err, errors.New(CodeBlocked, "", nil)).
func (e *AgentError) Is(target error) bool {
	t, ok := target.(*AgentError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *AgentError) MarshalJSON() ([]byte, error) {
	out := struct {
		Message     string                 `json:"message"`
		Code        string                 `json:"code"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Message:     e.Message,
		Code:        string(e.Code),
		Context:     e.Context,
		Recoverable: e.Recoverable,
	}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

// New creates a new AgentError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *AgentError {
	return &AgentError{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates an AgentError without a cause using a format string.
func Newf(code ErrorCode, format string, args ...any) *AgentError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *AgentError) WithContext(key string, value interface{}) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *AgentError) WithRecoverable(recoverable bool) *AgentError {
	e.Recoverable = recoverable
	return e
}

// AsAgentError attempts to convert an error to an AgentError.
// Returns the first AgentError in the chain, or wraps err as internal.
func AsAgentError(err error) *AgentError {
	if err == nil {
		return nil
	}
	var ae *AgentError
	if stderrors.As(err, &ae) {
		return ae
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsAgentError reports whether err has an AgentError in its chain.
func IsAgentError(err error) bool {
	var ae *AgentError
	return stderrors.As(err, &ae)
}

// CodeOf returns the code of the first AgentError in the chain, or
// CodeInternal for foreign errors. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsAgentError(err).Code
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	var ae *AgentError
	for err != nil {
		if stderrors.As(err, &ae) {
			if ae.Code == code {
				return true
			}
			err = ae.Err
			continue
		}
		return false
	}
	return false
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *AgentError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// Describe renders err for a human reader without the code prefix. Tool
// failures are reported to the language model in this form.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var ae *AgentError
	if !stderrors.As(err, &ae) {
		return err.Error()
	}
	label := codeLabel(ae.Code)
	switch {
	case ae.Message != "" && ae.Err != nil:
		return fmt.Sprintf("%s: %s: %v", label, ae.Message, ae.Err)
	case ae.Message != "":
		return fmt.Sprintf("%s: %s", label, ae.Message)
	case ae.Err != nil:
		return fmt.Sprintf("%s: %v", label, ae.Err)
	default:
		return label
	}
}

func codeLabel(code ErrorCode) string {
	switch code {
	case CodeBlocked:
		return "blocked"
	case CodePermissionDenied:
		return "permission denied"
	case CodeTooLarge:
		return "too large"
	case CodeTimeout:
		return "timed out"
	case CodeNotFound:
		return "not found"
	case CodeInvalidInput:
		return "invalid input"
	case CodeBackendUnavailable:
		return "backend unavailable"
	case CodeStorage:
		return "storage error"
	case CodeDimensionMismatch:
		return "dimension mismatch"
	case CodeConfiguration:
		return "configuration error"
	case CodeDuplicate:
		return "duplicate"
	case CodeToolFailure:
		return "tool failure"
	default:
		return "error"
	}
}
