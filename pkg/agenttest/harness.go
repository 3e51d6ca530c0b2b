// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agenttest

import (
	"context"
	"testing"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/resilience"
	"github.com/jllopis/autoagent/pkg/security"
	"github.com/jllopis/autoagent/pkg/tools"
)

// Harness is an orchestrator over in-memory backends: a hashed embedder, an
// in-memory vector store and an in-memory tool history.
type Harness struct {
	Agent    Runner
	Store    *memory.Store
	Registry *tools.Registry
	History  *tools.MemoryHistory
}

// HarnessOption configures NewHarness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	tools  []tools.Tool
	policy *security.Policy
	opts   []agent.Option
}

// WithTools registers ts in order.
func WithTools(ts ...tools.Tool) HarnessOption {
	return func(c *harnessConfig) { c.tools = append(c.tools, ts...) }
}

// WithPolicy sets the security policy of the registry.
func WithPolicy(p *security.Policy) HarnessOption {
	return func(c *harnessConfig) { c.policy = p }
}

// WithAgentOptions passes opts to agent.New.
func WithAgentOptions(opts ...agent.Option) HarnessOption {
	return func(c *harnessConfig) { c.opts = append(c.opts, opts...) }
}

// NewHarness builds an orchestrator around provider. Chat calls are tried
// once so failing providers degrade immediately.
func NewHarness(t *testing.T, provider llm.Provider, opts ...HarnessOption) *Harness {
	t.Helper()
	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	store, err := memory.NewStore(context.Background(), memory.NewInMemoryVectorStore(), memory.NewHashEmbedder(64))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	history := tools.NewMemoryHistory()
	registry := tools.NewRegistry(cfg.policy, tools.WithHistory(history))
	for _, tool := range cfg.tools {
		if err := registry.Register(tool); err != nil {
			t.Fatalf("register %s: %v", tool.Descriptor().Name, err)
		}
	}

	agentOpts := append([]agent.Option{agent.WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(1))}, cfg.opts...)
	orch, err := agent.New(provider, store, registry, agentOpts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return &Harness{Agent: orch, Store: store, Registry: registry, History: history}
}

func (h *Harness) usage(ctx context.Context, t *testing.T) []tools.Usage {
	t.Helper()
	u, err := h.History.List(ctx, tools.HistoryFilter{})
	if err != nil {
		t.Fatalf("list tool history: %v", err)
	}
	return u
}
