// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"sync"

	"github.com/jllopis/autoagent/pkg/errors"
)

// MockProvider is a testing implementation of Provider. It remembers the
// last request it saw.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	mu   sync.Mutex
	last ChatRequest
	n    int
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.last = req
	m.n++
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// LastRequest returns the most recent request.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Calls returns how many times Chat was called.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// FailingMockProvider always fails with a recoverable backend error unless
// Err is set.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, errors.New(errors.CodeBackendUnavailable, "mock backend unavailable", nil).WithRecoverable(true)
	}
	return nil, f.Err
}
