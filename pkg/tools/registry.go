// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/security"
)

// Registry holds tools in registration order and executes them under the
// security policy.
type Registry struct {
	mu      sync.RWMutex
	tools   []Tool
	index   map[string]int
	policy  *security.Policy
	history History
	logger  *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHistory records every execution in h.
func WithHistory(h History) RegistryOption {
	return func(r *Registry) {
		r.history = h
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry. A nil policy denies every tool
// that requires a capability flag.
func NewRegistry(policy *security.Policy, opts ...RegistryOption) *Registry {
	r := &Registry{
		index:   make(map[string]int),
		policy:  policy,
		history: NewMemoryHistory(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New(errors.CodeInvalidInput, "tool is nil", nil)
	}
	name := tool.Descriptor().Name
	if name == "" {
		return errors.New(errors.CodeInvalidInput, "tool name is empty", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.index[name]; exists {
		return errors.Newf(errors.CodeDuplicate, "tool %q already registered", name)
	}
	r.index[name] = len(r.tools)
	r.tools = append(r.tools, tool)
	return nil
}

// List returns the descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Descriptor()
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Match returns, in registration order, the tools whose phrase appears in
// task ignoring case.
func (r *Registry) Match(task string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		if Mentions(task, t.Descriptor().Name) {
			out = append(out, t)
		}
	}
	return out
}

// History returns the usage history of the registry.
func (r *Registry) History() History {
	return r.history
}

// Execute runs the named tool with input.
func (r *Registry) Execute(ctx context.Context, name, input string) (Result, error) {
	r.mu.RLock()
	idx, ok := r.index[name]
	var tool Tool
	if ok {
		tool = r.tools[idx]
	}
	r.mu.RUnlock()
	if !ok {
		return Result{}, errors.Newf(errors.CodeNotFound, "tool %q not found", name)
	}

	start := time.Now()
	res, err := r.execute(ctx, tool, input)
	r.record(ctx, name, input, start, err)
	return res, err
}

func (r *Registry) execute(ctx context.Context, tool Tool, input string) (Result, error) {
	desc := tool.Descriptor()
	if desc.RequiresFlag != "" {
		if r.policy == nil {
			return Result{}, errors.Newf(errors.CodeBlocked, "%s requires %s", desc.Name, desc.RequiresFlag)
		}
		decision := r.policy.Evaluate(ctx, security.Action{
			Type: security.ActionTool,
			Name: desc.Name,
			Flag: desc.RequiresFlag,
		})
		if !decision.Allowed {
			return Result{}, errors.New(errors.CodeBlocked, decision.Reason, nil).
				WithContext("rule", decision.Rule)
		}
	}
	if err := tool.Validate(input); err != nil {
		if !errors.IsAgentError(err) {
			err = errors.New(errors.CodeInvalidInput, "invalid tool input", err)
		}
		return Result{}, err
	}
	res, err := tool.Invoke(ctx, input)
	if err != nil && !errors.IsAgentError(err) {
		err = errors.New(errors.CodeToolFailure, desc.Name+" failed", err)
	}
	return res, err
}

func (r *Registry) record(ctx context.Context, name, input string, start time.Time, err error) {
	usage := Usage{
		Tool:      name,
		Input:     truncateRunes(input, maxRecordedInput),
		Outcome:   OutcomeSuccess,
		Duration:  time.Since(start),
		Timestamp: start,
	}
	switch {
	case err == nil:
	case errors.HasCode(err, errors.CodeBlocked):
		usage.Outcome = OutcomeBlocked
		usage.Error = errors.Describe(err)
		r.logger.Warn("tool blocked", slog.String("tool", name), slog.String("reason", usage.Error))
	default:
		usage.Outcome = OutcomeError
		usage.Error = errors.Describe(err)
		r.logger.Error("tool failed", slog.String("tool", name), slog.String("error", usage.Error))
	}
	if r.history == nil {
		return
	}
	if herr := r.history.Record(ctx, usage); herr != nil {
		r.logger.Warn("record tool usage failed", slog.String("tool", name), slog.String("error", herr.Error()))
	}
}
