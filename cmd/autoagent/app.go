// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/memory/chromem"
	"github.com/jllopis/autoagent/pkg/memory/ollama"
	"github.com/jllopis/autoagent/pkg/memory/openai"
	"github.com/jllopis/autoagent/pkg/memory/qdrant"
	"github.com/jllopis/autoagent/pkg/resilience"
	"github.com/jllopis/autoagent/pkg/sandbox"
	"github.com/jllopis/autoagent/pkg/security"
	"github.com/jllopis/autoagent/pkg/telemetry"
	"github.com/jllopis/autoagent/pkg/tools"
)

const serviceName = "autoagent"

// sandboxCommand is the hidden subcommand the code tool re-executes.
const sandboxCommand = "sandbox-eval"

// app holds everything a command needs and releases it on Close.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	agent    *agent.Orchestrator
	registry *tools.Registry

	closers []func() error
}

// newApp wires configuration, logging, telemetry, memory, tools and the
// orchestrator. Configuration errors are fatal; an unreachable memory
// backend leaves the agent running without memory.
func newApp(ctx context.Context, flags *globalFlags, console io.Writer) (*app, error) {
	cfg, err := config.LoadWithOptions(config.Options{
		Path:      flags.ConfigPath,
		Profile:   flags.Profile,
		Overrides: flags.Overrides,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	logger, logCloser := telemetry.NewLogger(console, cfg.Log)
	a.logger = logger
	a.closers = append(a.closers, logCloser.Close)

	shutdown, err := telemetry.FromConfig(serviceName, version, cfg.Telemetry)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	metrics, err := telemetry.NewAgentMetrics()
	if err != nil {
		logger.Warn("metrics disabled", slog.String("error", err.Error()))
	}

	policy, err := security.FromConfig(cfg.Security)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := a.buildRegistry(policy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	store, err := a.buildMemory(ctx, metrics)
	if err != nil {
		logger.Error("memory unavailable, continuing without long-term memory", slog.String("error", errors.Describe(err)))
	}
	if store != nil {
		if err := registry.Register(tools.NewMemorySearchTool(store)); err != nil {
			a.Close()
			return nil, err
		}
	}

	provider, err := llm.FromConfig(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}

	var mem agent.Memory
	if store != nil {
		mem = store
	}
	orch, err := agent.New(provider, mem, registry,
		agent.WithConfig(cfg),
		agent.WithLogger(logger),
		agent.WithMetrics(metrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.agent = orch
	return a, nil
}

func (a *app) buildRegistry(policy *security.Policy) (*tools.Registry, error) {
	opts := []tools.RegistryOption{tools.WithLogger(a.logger)}
	if path := a.cfg.Tools.HistoryPath; path != "" {
		h, err := tools.OpenSQLiteHistory(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, h.Close)
		opts = append(opts, tools.WithHistory(h))
	}
	registry := tools.NewRegistry(policy, opts...)

	tc := a.cfg.Tools
	var registered []tools.Tool
	if ddg, err := tools.NewDuckDuckGo(tc.WebSearchMaxResults, tc.UserAgent); err != nil {
		a.logger.Warn("web search unavailable", slog.String("error", err.Error()))
	} else {
		registered = append(registered, tools.NewWebSearchTool(ddg))
	}
	registered = append(registered,
		tools.NewWikipediaTool(tools.NewWikipedia(tc.UserAgent), tc.WikipediaSummaryLength),
		tools.NewFileReadTool(policy, tc.FileReadLimit),
		tools.NewCommandTool(policy, tools.WithOutputLimit(tc.CommandOutputLimit)),
		tools.NewCodeTool(policy, a.evaluator()),
	)
	for _, t := range registered {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (a *app) evaluator() sandbox.Evaluator {
	if a.cfg.Tools.CodeIsolation == "inline" {
		return sandbox.NewInterpreter()
	}
	exe, err := os.Executable()
	if err != nil {
		a.logger.Warn("cannot locate executable, evaluating code in process", slog.String("error", err.Error()))
		return sandbox.NewInterpreter()
	}
	return &sandbox.Subprocess{
		Path:          exe,
		Args:          []string{sandboxCommand},
		MemoryLimitMB: a.cfg.Tools.CodeMemoryLimitMB,
	}
}

func (a *app) buildMemory(ctx context.Context, metrics *telemetry.AgentMetrics) (*memory.Store, error) {
	mc := a.cfg.Memory
	var backend memory.VectorStore
	switch mc.Provider {
	case "chromem":
		s, err := chromem.New(mc.PersistDirectory, false)
		if err != nil {
			return nil, err
		}
		backend = s
	case "qdrant":
		s, err := qdrant.New(mc.QdrantAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		backend = s
	default:
		backend = memory.NewInMemoryVectorStore()
	}

	var embedder memory.Embedder
	retry := resilience.DefaultRetryConfig()
	switch mc.EmbedderProvider {
	case "ollama":
		embedder = ollama.NewEmbedder(mc.EmbedderBaseURL, mc.EmbedderModel)
	case "openai":
		embedder = openai.NewEmbedder(mc.EmbedderBaseURL, mc.EmbedderAPIKey, mc.EmbedderModel)
		retry = retry.WithIsRecoverable(func(err error) bool {
			return resilience.IsRecoverable(err) || openai.Retryable(err)
		})
	default:
		embedder = memory.NewHashEmbedder(mc.Dimension)
	}

	return memory.NewStore(ctx, backend, embedder,
		memory.WithDimension(mc.Dimension),
		memory.WithLimits(limitsFromConfig(mc.Limits)),
		memory.WithRetry(retry),
		memory.WithLogger(a.logger),
		memory.WithCleanupHook(func(c memory.Collection, removed int) {
			metrics.RecordCleanup(context.Background(), string(c), removed)
		}),
	)
}

func limitsFromConfig(l config.LimitsConfig) map[memory.Collection]int {
	return map[memory.Collection]int{
		memory.CollectionConversation: l.Conversation,
		memory.CollectionFact:         l.Fact,
		memory.CollectionToolUsage:    l.ToolUsage,
		memory.CollectionPreference:   l.Preference,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}
