// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/jllopis/autoagent/pkg/errors"
)

const defaultGrace = 500 * time.Millisecond

// request is the message sent to the child on stdin.
type request struct {
	Code      string `json:"code"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// response is the message the child writes on stdout.
type response struct {
	Result  string `json:"result,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Subprocess evaluates programs in a child process so that a runaway
// program cannot exhaust the host. The child is expected to call ServeChild.
type Subprocess struct {
	// Path of the executable; defaults to the running binary.
	Path string
	// Args passed to the executable, e.g. the hidden sandbox subcommand.
	Args []string
	// Env is appended to the parent environment.
	Env []string
	// MemoryLimitMB sets GOMEMLIMIT for the child when positive.
	MemoryLimitMB int
	// Grace is how long the parent waits past the timeout before killing.
	Grace time.Duration
}

// Eval runs code in a fresh child process.
func (s *Subprocess) Eval(ctx context.Context, code string, timeout time.Duration) (string, error) {
	path := s.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", errors.New(errors.CodeInternal, "cannot locate sandbox executable", err)
		}
		path = exe
	}
	grace := s.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	payload, err := json.Marshal(request{Code: code, TimeoutMS: timeout.Milliseconds()})
	if err != nil {
		return "", errors.New(errors.CodeInternal, "encode sandbox request", err)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout+grace)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, s.Args...)
	cmd.Env = append(os.Environ(), s.Env...)
	if s.MemoryLimitMB > 0 {
		cmd.Env = append(cmd.Env, fmt.Sprintf("GOMEMLIMIT=%dMiB", s.MemoryLimitMB))
	}
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = grace

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return "", errors.Newf(errors.CodeTimeout, "code execution exceeded %s", timeout).
			WithRecoverable(true)
	}
	if ctx.Err() != nil {
		return "", errors.New(errors.CodeTimeout, "code execution interrupted", ctx.Err())
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		cause := runErr
		if cause == nil {
			cause = err
		}
		return "", errors.New(errors.CodeToolFailure, "sandbox process failed", cause).
			WithContext("stderr", truncate(stderr.String(), 512))
	}
	if resp.Code != "" {
		return "", &errors.AgentError{
			Code:        errors.ErrorCode(resp.Code),
			Message:     resp.Message,
			Recoverable: errors.ErrorCode(resp.Code) == errors.CodeTimeout,
		}
	}
	return resp.Result, nil
}

// ServeChild reads one request from r, evaluates it with an Interpreter and
// writes the response to w. It is the entry point of the child process.
func ServeChild(ctx context.Context, r io.Reader, w io.Writer) error {
	var req request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return fmt.Errorf("decode sandbox request: %w", err)
	}
	result, err := NewInterpreter().Eval(ctx, req.Code, time.Duration(req.TimeoutMS)*time.Millisecond)
	resp := response{Result: result}
	if err != nil {
		resp = response{Code: string(errors.CodeOf(err)), Message: errors.Describe(err)}
	}
	return json.NewEncoder(w).Encode(resp)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
