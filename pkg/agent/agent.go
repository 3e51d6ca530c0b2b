// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the turn orchestrator: a THINK, ACT, RESPOND,
// DONE state machine over a language model, the tool registry and the
// memory store.
package agent

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/resilience"
	"github.com/jllopis/autoagent/pkg/telemetry"
	"github.com/jllopis/autoagent/pkg/tools"
)

const (
	defaultMemoryK           = 3
	defaultRecallThreshold   = 0.92
	defaultHistoryWindow     = 10
	defaultLearningThreshold = 0.75
	factConfidence           = 0.8
	maxFactLength            = 500
	tracerName               = "autoagent/agent"
)

// Memory is the part of memory.Store the orchestrator needs.
type Memory interface {
	Recall(ctx context.Context, text string, k int, collections ...memory.Collection) ([]memory.Match, error)
	Add(ctx context.Context, rec memory.Record) error
	Stats(ctx context.Context) (memory.Stats, error)
}

// Orchestrator runs turns one at a time. It is safe for concurrent use;
// concurrent turns are serialized.
type Orchestrator struct {
	llm      llm.Provider
	memory   Memory
	registry *tools.Registry

	request           llm.ChatRequest
	memoryK           int
	recallThreshold   float64
	historyWindow     int
	learningThreshold float64
	llmTimeout        time.Duration

	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
	degrader *resilience.Degrader[string]

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.AgentMetrics

	mu        sync.Mutex
	history   []llm.Message
	turns     int
	degraded  int
	lastTurn  time.Time
	startedAt time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMemoryK sets how many memories THINK retrieves.
func WithMemoryK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.memoryK = k
		}
	}
}

// WithRecallThreshold sets the similarity at which a remembered fact
// answers the task without tools.
func WithRecallThreshold(v float64) Option {
	return func(o *Orchestrator) {
		if v > 0 {
			o.recallThreshold = v
		}
	}
}

// WithHistoryWindow bounds the prior messages sent to the model.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.historyWindow = n
		}
	}
}

// WithLearningThreshold sets the minimum confidence for learned facts.
func WithLearningThreshold(v float64) Option {
	return func(o *Orchestrator) {
		o.learningThreshold = v
	}
}

// WithRequest sets the model and sampling parameters of every chat call.
// Messages in req are ignored.
func WithRequest(req llm.ChatRequest) Option {
	return func(o *Orchestrator) {
		req.Messages = nil
		o.request = req
	}
}

// WithLLMTimeout bounds each chat attempt.
func WithLLMTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.llmTimeout = d
	}
}

// WithRetry sets the retry policy of chat calls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(o *Orchestrator) {
		o.retry = rc
	}
}

// WithCircuitBreaker replaces the breaker guarding the language model.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(o *Orchestrator) {
		if cb != nil {
			o.breaker = cb
		}
	}
}

// WithMetrics exports counters through m.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for turn and phase spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithConfig applies the agent, llm and memory sections of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *Orchestrator) {
		if cfg == nil {
			return
		}
		WithMemoryK(cfg.Agent.MemoryK)(o)
		WithRecallThreshold(cfg.Agent.RecallThreshold)(o)
		WithHistoryWindow(cfg.Agent.HistoryWindow)(o)
		WithLearningThreshold(cfg.Memory.LearningThreshold)(o)
		WithRequest(llm.RequestFromConfig(cfg.LLM, nil))(o)
		WithLLMTimeout(cfg.LLM.Timeout)(o)
		if cfg.LLM.MaxAttempts > 0 {
			o.retry = o.retry.WithMaxAttempts(cfg.LLM.MaxAttempts)
		}
	}
}

// New creates an Orchestrator. mem may be nil, in which case nothing is
// recalled or remembered; a nil registry behaves as an empty one.
func New(provider llm.Provider, mem Memory, registry *tools.Registry, opts ...Option) (*Orchestrator, error) {
	if provider == nil {
		return nil, errors.New(errors.CodeConfiguration, "language model provider is required", nil)
	}
	if registry == nil {
		registry = tools.NewRegistry(nil)
	}
	o := &Orchestrator{
		llm:               provider,
		memory:            mem,
		registry:          registry,
		memoryK:           defaultMemoryK,
		recallThreshold:   defaultRecallThreshold,
		historyWindow:     defaultHistoryWindow,
		learningThreshold: defaultLearningThreshold,
		retry:             resilience.DefaultRetryConfig(),
		logger:            slog.Default(),
		tracer:            otel.Tracer(tracerName),
		startedAt:         time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.breaker == nil {
		o.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "llm",
			FailureThreshold: 3,
			Timeout:          30 * time.Second,
			OnStateChange:    o.breakerChanged,
		})
	}
	o.degrader = &resilience.Degrader[string]{
		Fallback: func(context.Context, error) string { return DegradedResponse },
		LogError: func(err error) {
			o.logger.Error("language model unavailable", slog.String("error", err.Error()))
		},
	}
	return o, nil
}

func (o *Orchestrator) breakerChanged(name string, from, to resilience.CircuitBreakerState) {
	o.logger.Warn("circuit breaker state changed",
		slog.String("breaker", name),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	o.metrics.RecordCircuitBreakerState(context.Background(), name, string(to))
}

// ProcessTurn runs one full turn for text and returns the reply. It never
// panics and always returns a string.
func (o *Orchestrator) ProcessTurn(ctx context.Context, text string) (reply string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	state := &State{
		TurnID:   uuid.NewString(),
		Messages: append(append([]llm.Message(nil), o.history...), llm.Message{Role: llm.RoleUser, Content: text}),
	}

	ctx, span := o.tracer.Start(ctx, "agent.turn")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "turn panicked",
				slog.String("turn_id", state.TurnID),
				slog.String("phase", string(state.Phase)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err := errors.Newf(errors.CodeInternal, "panic in %s: %v", state.Phase, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			o.metrics.RecordError(ctx, err, "agent")
			state.Degraded = true
			state.Response = DegradedResponse
			reply = o.finish(ctx, state)
		}
	}()

	o.run(ctx, state)
	span.SetAttributes(telemetry.TurnAttributes(state.TurnID, state.Conversational, state.ShouldContinue)...)
	return o.finish(ctx, state)
}

func (o *Orchestrator) run(ctx context.Context, state *State) {
	o.think(ctx, state)
	if state.ShouldContinue {
		o.act(ctx, state)
	}
	o.respond(ctx, state)
}

// finish moves the turn to DONE and folds it into the session history.
func (o *Orchestrator) finish(ctx context.Context, state *State) string {
	state.enter(PhaseDone)
	if state.Response == "" {
		state.Response = DegradedResponse
		state.Degraded = true
	}
	user := state.Messages[len(o.history)]
	o.history = append(o.history, user, llm.Message{Role: llm.RoleAssistant, Content: state.Response})
	o.turns++
	o.lastTurn = time.Now()
	if state.Degraded {
		o.degraded++
		o.metrics.RecordDegraded(ctx)
	}
	o.metrics.RecordTurn(ctx, state.Conversational)
	return state.Response
}

// ListTools returns the registered tool descriptors in registration order.
func (o *Orchestrator) ListTools() []tools.Descriptor {
	return o.registry.List()
}

// History returns a copy of the session's conversation.
func (o *Orchestrator) History() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]llm.Message(nil), o.history...)
}

// Reset clears the conversation history. Memory is kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = nil
}
