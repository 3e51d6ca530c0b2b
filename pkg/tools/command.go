// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/security"
)

const (
	CommandToolName        = "system_command"
	defaultCommandOutput   = 1000
	commandSuccessfulReply = "Command executed successfully"
)

// CommandTool runs a single program without a shell.
type CommandTool struct {
	policy      *security.Policy
	outputLimit int
	command     func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// CommandOption configures a CommandTool.
type CommandOption func(*CommandTool)

// WithOutputLimit caps the characters of combined output returned.
func WithOutputLimit(n int) CommandOption {
	return func(t *CommandTool) {
		if n > 0 {
			t.outputLimit = n
		}
	}
}

// NewCommandTool creates the system_command tool.
func NewCommandTool(policy *security.Policy, opts ...CommandOption) *CommandTool {
	t := &CommandTool{
		policy:      policy,
		outputLimit: defaultCommandOutput,
		command:     exec.CommandContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *CommandTool) Descriptor() Descriptor {
	return Descriptor{
		Name:         CommandToolName,
		Description:  "Execute a system command (restricted, requires enable_command_execution)",
		Capability:   CapabilityRestricted,
		RequiresFlag: security.FlagCommandExecution,
	}
}

func (t *CommandTool) Validate(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New(errors.CodeInvalidInput, "empty command", nil)
	}
	return nil
}

// Invoke checks the raw input against the policy before parsing it, so a
// blocked or disabled command never reaches process creation.
func (t *CommandTool) Invoke(ctx context.Context, input string) (Result, error) {
	if t.policy == nil {
		return Result{}, errors.New(errors.CodeBlocked, "command execution is disabled for security reasons", nil)
	}
	if err := t.policy.CheckCommand(input); err != nil {
		return Result{}, err
	}

	line := Argument(input, CommandToolName)
	argv, err := shlex.Split(line)
	if err != nil {
		return Result{}, errors.New(errors.CodeInvalidInput, "cannot parse command", err)
	}
	if len(argv) == 0 {
		return Result{}, errors.New(errors.CodeInvalidInput, "empty command", nil)
	}

	timeout := t.policy.ExecTimeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := t.command(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Result{}, errors.Newf(errors.CodeTimeout, "command execution exceeded %s", timeout).
			WithRecoverable(true)
	}

	output := stdout.String() + stderr.String()
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case stderrors.As(runErr, &exitErr):
		output = strings.TrimRight(output, "\n")
		if output != "" {
			output += "\n"
		}
		output += fmt.Sprintf("exit status %d", exitErr.ExitCode())
	default:
		return Result{}, errors.New(errors.CodeToolFailure, "cannot run command", runErr).
			WithContext("program", argv[0])
	}

	if output == "" {
		output = commandSuccessfulReply
	}
	return Result{Output: truncateRunes(output, t.outputLimit)}, nil
}
