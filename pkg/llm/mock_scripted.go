// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"

	"github.com/jllopis/autoagent/pkg/errors"
)

// Step is one scripted reply. A non-nil Err fails the call instead.
type Step struct {
	Content string
	Err     error
}

// ScriptedMockProvider replays a fixed sequence of steps, one per Chat call,
// and fails with CodeBackendUnavailable once the script is exhausted.
type ScriptedMockProvider struct {
	mu       sync.Mutex
	script   []Step
	requests []ChatRequest
}

// NewScriptedMockProvider scripts one successful reply per response.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, r := range responses {
		s.Then(r)
	}
	return s
}

// Then queues a successful reply.
func (s *ScriptedMockProvider) Then(content string) *ScriptedMockProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, Step{Content: content})
	return s
}

// ThenFail queues a failing call.
func (s *ScriptedMockProvider) ThenFail(err error) *ScriptedMockProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, Step{Err: err})
	return s
}

func (s *ScriptedMockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return nil, errors.New(errors.CodeBackendUnavailable, "scripted mock: script exhausted", nil)
	}
	step := s.script[0]
	s.script = s.script[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return &ChatResponse{
		Content: step.Content,
		Usage:   Usage{PromptTokens: len(req.Messages), CompletionTokens: len(step.Content), TotalTokens: len(req.Messages) + len(step.Content)},
	}, nil
}

// Calls returns the number of Chat invocations so far.
func (s *ScriptedMockProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request received, in order.
func (s *ScriptedMockProvider) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.requests...)
}

// Remaining reports how many steps are left.
func (s *ScriptedMockProvider) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script)
}
