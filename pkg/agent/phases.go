// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/resilience"
	"github.com/jllopis/autoagent/pkg/telemetry"
	"github.com/jllopis/autoagent/pkg/tools"
)

// think sets the task, recalls memory and decides whether ACT runs.
func (o *Orchestrator) think(ctx context.Context, state *State) {
	state.enter(PhaseThink)
	ctx, span := o.tracer.Start(ctx, "agent.think")
	defer span.End()

	state.CurrentTask = strings.TrimSpace(state.Messages[len(state.Messages)-1].Content)
	if isConversational(state.CurrentTask) {
		state.Conversational = true
		state.ShouldContinue = false
		span.SetAttributes(telemetry.TurnAttributes(state.TurnID, true, false)...)
		return
	}

	if o.memory != nil && state.CurrentTask != "" {
		matches, err := o.memory.Recall(ctx, state.CurrentTask, o.memoryK, memory.CollectionConversation, memory.CollectionFact)
		if err != nil {
			o.logger.WarnContext(ctx, "memory recall failed", slog.String("error", err.Error()))
			o.metrics.RecordError(ctx, err, "memory")
			span.RecordError(err)
		} else {
			state.MemoryContext = matches
		}
	}
	best := 0.0
	if len(state.MemoryContext) > 0 {
		best = state.MemoryContext[0].Score
	}
	span.SetAttributes(telemetry.MemoryAttributes("", len(state.MemoryContext), best)...)

	state.ShouldContinue = o.shouldContinue(state)
}

// shouldContinue is false when there are no tools, or when the best memory
// is a fact similar enough to answer the task directly.
func (o *Orchestrator) shouldContinue(state *State) bool {
	if o.registry.Len() == 0 {
		return false
	}
	if len(state.MemoryContext) > 0 {
		best := state.MemoryContext[0]
		if best.Record.Collection == memory.CollectionFact && best.Score >= o.recallThreshold {
			return false
		}
	}
	return true
}

// act runs every tool mentioned by the task, in registration order.
// Failures become result strings; act never aborts the turn.
func (o *Orchestrator) act(ctx context.Context, state *State) {
	state.enter(PhaseAct)
	ctx, span := o.tracer.Start(ctx, "agent.act")
	defer span.End()

	state.ToolResults = []string{}
	matched := o.registry.Match(state.CurrentTask)
	names := make([]string, len(matched))
	for i, t := range matched {
		names[i] = t.Descriptor().Name
	}
	span.SetAttributes(telemetry.ToolsetAttributes(names)...)

	for _, name := range names {
		res, err := o.execute(ctx, name, state.CurrentTask)
		outcome := outcomeOf(err)
		o.metrics.RecordToolExecution(ctx, name, string(outcome))
		if err != nil {
			o.metrics.RecordError(ctx, err, "tools")
			state.ToolResults = append(state.ToolResults, name+": "+errors.Describe(err))
			continue
		}
		state.ToolResults = append(state.ToolResults, name+": "+res.Output)
		o.rememberToolUsage(ctx, state, name, res.Output)
	}
}

func (o *Orchestrator) execute(ctx context.Context, name, input string) (res tools.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "tool panicked", slog.String("tool", name), slog.Any("panic", r))
			err = errors.Newf(errors.CodeToolFailure, "%s panicked: %v", name, r)
		}
	}()
	return o.registry.Execute(ctx, name, input)
}

func outcomeOf(err error) tools.Outcome {
	switch {
	case err == nil:
		return tools.OutcomeSuccess
	case errors.HasCode(err, errors.CodeBlocked):
		return tools.OutcomeBlocked
	default:
		return tools.OutcomeError
	}
}

// respond asks the model for the final answer and writes the turn to
// memory. A failed call leaves memory untouched.
func (o *Orchestrator) respond(ctx context.Context, state *State) {
	state.enter(PhaseRespond)
	ctx, span := o.tracer.Start(ctx, "agent.respond")
	defer span.End()

	req := o.buildRequest(state)
	span.SetAttributes(telemetry.LLMAttributes(req.Model, len(req.Messages))...)

	reply, err := o.degrader.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := o.chat(ctx, req)
		if err != nil {
			return "", err
		}
		span.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)...)
		return resp.Content, nil
	})
	if err != nil {
		state.Degraded = true
		state.Response = DegradedResponse
		span.RecordError(err)
		span.SetStatus(codes.Error, "language model unavailable")
		o.metrics.RecordError(ctx, err, "llm")
		return
	}

	state.Response = reply
	state.Messages = append(state.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
	o.remember(ctx, state)
}

// chat calls the model through the breaker; attempts inside one breaker
// call are retried while the error is recoverable.
func (o *Orchestrator) chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	var out *llm.ChatResponse
	err := o.breaker.Call(ctx, func() error {
		resp, err := resilience.DoValue(ctx, o.retry, func() (*llm.ChatResponse, error) {
			return resilience.WithTimeoutValue(ctx, o.llmTimeout, func(ctx context.Context) (*llm.ChatResponse, error) {
				return o.llm.Chat(ctx, req)
			})
		})
		if err != nil {
			return err
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return errors.New(errors.CodeBackendUnavailable, "language model returned an empty response", nil)
		}
		out = resp
		return nil
	})
	return out, err
}

func (o *Orchestrator) buildRequest(state *State) llm.ChatRequest {
	system := systemPrompt
	if section := memorySection(state.MemoryContext); section != "" {
		system += "\n\n" + section
	}
	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}

	prior := state.Messages[:len(state.Messages)-1]
	if len(prior) > o.historyWindow {
		prior = prior[len(prior)-o.historyWindow:]
	}
	messages = append(messages, prior...)

	var prompt string
	switch {
	case state.Conversational:
		prompt = conversationalPrompt(state.CurrentTask)
	case len(state.ToolResults) > 0:
		prompt = toolPrompt(state.CurrentTask, state.ToolResults)
	default:
		prompt = directPrompt(state.CurrentTask)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	req := o.request
	req.Messages = messages
	return req
}

// remember writes the exchange and, for definitional answers, a fact.
func (o *Orchestrator) remember(ctx context.Context, state *State) {
	if o.memory == nil {
		return
	}
	meta := map[string]string{"turn_id": state.TurnID}
	o.add(ctx, memory.Record{
		Collection: memory.CollectionConversation,
		Text:       fmt.Sprintf("User: %s\nAgent: %s", state.CurrentTask, state.Response),
		Source:     "interaction",
		Metadata:   meta,
	})
	if looksLikeFact(state.Response) && factConfidence >= o.learningThreshold {
		o.add(ctx, memory.Record{
			Collection: memory.CollectionFact,
			Text:       truncate(state.Response, maxFactLength),
			Confidence: factConfidence,
			Source:     "interaction",
			Metadata:   meta,
		})
	}
}

func (o *Orchestrator) rememberToolUsage(ctx context.Context, state *State, name, output string) {
	if o.memory == nil {
		return
	}
	o.add(ctx, memory.Record{
		Collection: memory.CollectionToolUsage,
		Text:       fmt.Sprintf("Tool: %s\nInput: %s\nOutput: %s", name, truncate(state.CurrentTask, 100), truncate(output, 200)),
		Source:     "tool",
		Metadata:   map[string]string{"tool": name, "turn_id": state.TurnID},
	})
}

func (o *Orchestrator) add(ctx context.Context, rec memory.Record) {
	if err := o.memory.Add(ctx, rec); err != nil {
		o.logger.WarnContext(ctx, "memory write failed",
			slog.String("collection", string(rec.Collection)),
			slog.String("error", err.Error()),
		)
		o.metrics.RecordError(ctx, err, "memory")
	}
}
