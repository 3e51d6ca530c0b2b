// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools provides the capabilities the agent can invoke and the
// registry that executes them under the security policy.
package tools

import (
	"context"
	"strings"

	"github.com/jllopis/autoagent/pkg/security"
)

// Capability classifies how dangerous a tool is.
type Capability string

const (
	CapabilitySafe       Capability = "safe"
	CapabilityRestricted Capability = "restricted"
)

// Descriptor describes a registered tool.
type Descriptor struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Capability   Capability    `json:"capability" yaml:"capability"`
	RequiresFlag security.Flag `json:"requires_flag,omitempty" yaml:"requires_flag,omitempty"`
}

// Result is the textual output of a tool.
type Result struct {
	Output string
}

// Tool is implemented by every capability the registry can run.
type Tool interface {
	Descriptor() Descriptor
	// Validate rejects input before any side effect happens.
	Validate(input string) error
	Invoke(ctx context.Context, input string) (Result, error)
}

// Phrase returns the human form of a tool name: separators become spaces
// and letters are lower-cased. "system_command" becomes "system command".
func Phrase(name string) string {
	r := strings.NewReplacer("_", " ", "-", " ", ".", " ")
	return strings.ToLower(r.Replace(name))
}

// Mentions reports whether task refers to the tool called name.
func Mentions(task, name string) bool {
	phrase := Phrase(name)
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(task), phrase)
}

// Argument returns the text following the tool name or its phrase in
// input, or the whole trimmed input when neither is present or nothing
// follows it.
func Argument(input, name string) string {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	// Offsets are only comparable when lower-casing kept the byte length.
	if name == "" || len(lower) != len(trimmed) {
		return trimmed
	}
	for _, marker := range []string{strings.ToLower(name), Phrase(name)} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(trimmed[idx+len(marker):])
		rest = strings.TrimSpace(strings.TrimLeft(rest, ":=,"))
		if rest != "" {
			return rest
		}
	}
	return trimmed
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
