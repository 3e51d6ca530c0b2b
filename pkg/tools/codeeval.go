// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"strings"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/sandbox"
	"github.com/jllopis/autoagent/pkg/security"
)

const CodeToolName = "python_repl"

// CodeTool evaluates small programs in the sandbox.
type CodeTool struct {
	policy    *security.Policy
	evaluator sandbox.Evaluator
}

// NewCodeTool creates the python_repl tool. A nil evaluator runs programs
// in-process.
func NewCodeTool(policy *security.Policy, evaluator sandbox.Evaluator) *CodeTool {
	if evaluator == nil {
		evaluator = sandbox.NewInterpreter()
	}
	return &CodeTool{policy: policy, evaluator: evaluator}
}

func (t *CodeTool) Descriptor() Descriptor {
	return Descriptor{
		Name:         CodeToolName,
		Description:  "Evaluate a small program in a restricted sandbox; set `result` to return a value",
		Capability:   CapabilityRestricted,
		RequiresFlag: security.FlagCodeEvaluation,
	}
}

func (t *CodeTool) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New(errors.CodeInvalidInput, "empty program", nil)
	}
	return nil
}

func (t *CodeTool) Invoke(ctx context.Context, input string) (Result, error) {
	if t.policy == nil || !t.policy.Enabled(security.FlagCodeEvaluation) {
		return Result{}, errors.New(errors.CodeBlocked, "code evaluation is disabled for security reasons", nil)
	}
	out, err := t.evaluator.Eval(ctx, programFrom(input), t.policy.ExecTimeout())
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out}, nil
}

// programFrom extracts the program from a task: the first fenced block
// when there is one, otherwise the text after the tool phrase.
func programFrom(input string) string {
	if _, after, ok := strings.Cut(input, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		// Drop an info string such as ```python.
		if first, rest, found := strings.Cut(body, "\n"); found && !strings.ContainsAny(strings.TrimSpace(first), " =()") {
			body = rest
		}
		return strings.TrimSpace(body)
	}
	return Argument(input, CodeToolName)
}
