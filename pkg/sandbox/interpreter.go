// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox evaluates untrusted programs written in Starlark.
//
// Starlark is hermetic: a program only sees the names the host predeclares,
// it cannot import modules, and it has no file, network or process access.
// The interpreter is cancelled preemptively when the wall-clock limit is
// reached. For process-level isolation use Subprocess, which runs the same
// interpreter in a child process.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/jllopis/autoagent/pkg/errors"
)

// DefaultResult is returned when a program sets no result and prints nothing.
const DefaultResult = "Code executed successfully"

// Evaluator runs a program and returns its textual result.
type Evaluator interface {
	Eval(ctx context.Context, code string, timeout time.Duration) (string, error)
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Interpreter evaluates programs in the current process.
type Interpreter struct {
	maxSteps uint64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxSteps bounds the number of computation steps of one evaluation.
func WithMaxSteps(n uint64) Option {
	return func(i *Interpreter) {
		i.maxSteps = n
	}
}

// NewInterpreter creates an in-process evaluator.
func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Eval executes code. The program's result is the global `result` when it is
// set, otherwise whatever it printed. A timeout discards partial output.
func (i *Interpreter) Eval(ctx context.Context, code string, timeout time.Duration) (string, error) {
	var out strings.Builder
	thread := &starlark.Thread{
		Name: "sandbox",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteByte('\n')
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load(%q) is not available in the sandbox", module)
		},
	}
	if i.maxSteps > 0 {
		thread.SetMaxExecutionSteps(i.maxSteps)
	}

	var timedOut atomic.Bool
	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			timedOut.Store(true)
			thread.Cancel("wall-clock limit reached")
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel("context done")
	})
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, "sandbox.star", code, predeclared())
	if timedOut.Load() {
		return "", errors.Newf(errors.CodeTimeout, "code execution exceeded %s", timeout).
			WithRecoverable(true)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", errors.New(errors.CodeTimeout, "code execution interrupted", ctxErr)
	}
	if err != nil {
		switch err.(type) {
		case syntax.Error, resolve.ErrorList:
			return "", errors.New(errors.CodeInvalidInput, "syntax error", err)
		}
		return "", errors.New(errors.CodeToolFailure, "code execution failed", err)
	}

	if v, ok := globals["result"]; ok {
		if s, ok := starlark.AsString(v); ok {
			return s, nil
		}
		return v.String(), nil
	}
	if printed := strings.TrimRight(out.String(), "\n"); printed != "" {
		return printed, nil
	}
	return DefaultResult, nil
}
