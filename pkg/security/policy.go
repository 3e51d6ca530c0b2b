// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package security holds the immutable per-session policy that gates the
// agent's dangerous capabilities.
package security

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
)

// Flag names a capability switch of the policy.
type Flag string

const (
	FlagCommandExecution Flag = "enable_command_execution"
	FlagCodeEvaluation   Flag = "enable_python_exec"
)

// ActionType describes the kind of action being evaluated.
type ActionType string

const (
	ActionTool    ActionType = "tool"
	ActionCommand ActionType = "command"
	ActionFile    ActionType = "file"
)

// Action describes a decision target for policy evaluation.
type Action struct {
	Type   ActionType
	Name   string
	Flag   Flag   // capability the action depends on, optional
	Target string // command line or path, depending on Type
}

// Decision captures the outcome of a policy evaluation.
type Decision struct {
	Allowed bool
	Reason  string
	Rule    string
}

// Options are the raw inputs of a Policy.
type Options struct {
	EnableCommandExecution bool
	EnableCodeEvaluation   bool
	AllowedFilePaths       []string
	BlockedCommands        []string
	MaxFileSizeBytes       int64
	ExecTimeout            time.Duration
}

// Policy is safe for concurrent use; it has no setters.
type Policy struct {
	commandExecution bool
	codeEvaluation   bool
	allowedPaths     []string
	blocked          []string
	maxFileSize      int64
	execTimeout      time.Duration
}

// New validates opts and canonicalizes the allowed directories.
func New(opts Options) (*Policy, error) {
	if opts.MaxFileSizeBytes <= 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "max file size must be positive, got %d", opts.MaxFileSizeBytes)
	}
	if opts.ExecTimeout <= 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "exec timeout must be positive, got %s", opts.ExecTimeout)
	}

	p := &Policy{
		commandExecution: opts.EnableCommandExecution,
		codeEvaluation:   opts.EnableCodeEvaluation,
		maxFileSize:      opts.MaxFileSizeBytes,
		execTimeout:      opts.ExecTimeout,
	}

	seen := make(map[string]bool)
	for _, raw := range opts.AllowedFilePaths {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		canonical, err := canonicalDir(raw)
		if err != nil {
			return nil, errors.New(errors.CodeConfiguration, "invalid allowed file path", err).
				WithContext("path", raw)
		}
		if !seen[canonical] {
			seen[canonical] = true
			p.allowedPaths = append(p.allowedPaths, canonical)
		}
	}

	for _, b := range opts.BlockedCommands {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			p.blocked = append(p.blocked, b)
		}
	}
	return p, nil
}

// FromConfig builds a Policy from the security section.
func FromConfig(cfg config.SecurityConfig) (*Policy, error) {
	return New(Options{
		EnableCommandExecution: cfg.EnableCommandExecution,
		EnableCodeEvaluation:   cfg.EnablePythonExec,
		AllowedFilePaths:       cfg.AllowedFilePaths,
		BlockedCommands:        cfg.BlockedCommands,
		MaxFileSizeBytes:       cfg.MaxFileSizeBytes,
		ExecTimeout:            time.Duration(cfg.ExecTimeoutSeconds) * time.Second,
	})
}

func canonicalDir(raw string) (string, error) {
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", errors.Newf(errors.CodeConfiguration, "%s is not a directory", resolved)
	}
	return resolved, nil
}

// Enabled reports whether the capability flag is switched on. Unknown
// flags are never enabled.
func (p *Policy) Enabled(flag Flag) bool {
	switch flag {
	case FlagCommandExecution:
		return p.commandExecution
	case FlagCodeEvaluation:
		return p.codeEvaluation
	default:
		return false
	}
}

// AllowedFilePaths returns a copy of the canonical allowed directories.
func (p *Policy) AllowedFilePaths() []string {
	return append([]string(nil), p.allowedPaths...)
}

// BlockedCommands returns a copy of the lower-cased blocked substrings.
func (p *Policy) BlockedCommands() []string {
	return append([]string(nil), p.blocked...)
}

func (p *Policy) MaxFileSizeBytes() int64     { return p.maxFileSize }
func (p *Policy) ExecTimeout() time.Duration { return p.execTimeout }

// Evaluate checks an action against the policy.
func (p *Policy) Evaluate(_ context.Context, action Action) Decision {
	if action.Flag != "" && !p.Enabled(action.Flag) {
		return Decision{Reason: capabilityReason(action.Flag), Rule: string(action.Flag)}
	}
	switch action.Type {
	case ActionCommand:
		if pattern, hit := p.blockedPattern(action.Target); hit {
			return Decision{Reason: "command blocked for safety reasons", Rule: "blocked:" + pattern}
		}
	case ActionFile:
		if _, err := p.ResolvePath(action.Target); err != nil {
			return Decision{Reason: errors.Describe(err), Rule: "allowed_file_paths"}
		}
	}
	return Decision{Allowed: true}
}

func capabilityReason(flag Flag) string {
	switch flag {
	case FlagCommandExecution:
		return "command execution is disabled for security reasons"
	case FlagCodeEvaluation:
		return "code evaluation is disabled for security reasons"
	default:
		return "capability " + string(flag) + " is not available"
	}
}

// CheckCommand returns a CodeBlocked error when command execution is off or
// the command contains a blocked substring, ignoring case and surrounding
// whitespace.
func (p *Policy) CheckCommand(command string) error {
	if !p.commandExecution {
		return errors.New(errors.CodeBlocked, capabilityReason(FlagCommandExecution), nil)
	}
	if pattern, hit := p.blockedPattern(command); hit {
		return errors.New(errors.CodeBlocked, "command blocked for safety reasons", nil).
			WithContext("pattern", pattern)
	}
	return nil
}

func (p *Policy) blockedPattern(command string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(command))
	for _, b := range p.blocked {
		if strings.Contains(normalized, b) {
			return b, true
		}
	}
	return "", false
}

// ResolvePath returns the canonical form of path when it is equal to, or a
// descendant of, an allowed directory. Symlinks are resolved before the
// check, so links pointing outside the allowed tree are rejected.
func (p *Policy) ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New(errors.CodeInvalidInput, "empty path", nil)
	}
	canonical, err := canonicalPath(path)
	if err != nil {
		return "", errors.New(errors.CodePermissionDenied, "cannot resolve path", err).
			WithContext("path", path)
	}
	for _, root := range p.allowedPaths {
		if within(root, canonical) {
			return canonical, nil
		}
	}
	return "", errors.Newf(errors.CodePermissionDenied, "access to %s is not allowed", canonical)
}

// canonicalPath makes path absolute, removes dot segments and resolves
// symlinks of the longest existing prefix. Components that do not exist
// yet are appended unchanged.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	existing := abs
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			parts := append([]string{resolved}, rest...)
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
