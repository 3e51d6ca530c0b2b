// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agenttest provides declarative scenarios for testing the
// orchestrator end to end.
//
// Example usage:
//
//	h := agenttest.NewHarness(t, llm.NewScriptedMockProvider("Hi!"))
//	agenttest.NewScenario("greeting").
//	    WithInput("Hello").
//	    ExpectOutput(agenttest.Contains("Hi")).
//	    ExpectNoToolCalls().
//	    Run(t, h).
//	    Assert(t)
package agenttest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/tools"
)

// Runner is what a scenario drives.
type Runner interface {
	ProcessTurn(ctx context.Context, text string) string
	Stats(ctx context.Context) agent.Stats
}

// Scenario is a sequence of user turns plus expectations on the outcome.
type Scenario struct {
	name         string
	inputs       []string
	timeout      time.Duration
	expectations []Expectation
}

// Expectation is a condition verified after a scenario ran.
type Expectation interface {
	Check(result *Result) error
	Description() string
}

// Result is the outcome of a scenario.
type Result struct {
	scenario *Scenario

	Replies   []string
	Output    string // reply to the last turn
	ToolCalls []tools.Usage
	Stats     agent.Stats
	Duration  time.Duration
}

// NewScenario creates a scenario called name.
func NewScenario(name string) *Scenario {
	return &Scenario{name: name, timeout: 30 * time.Second}
}

// WithInput appends a user turn.
func (s *Scenario) WithInput(input string) *Scenario {
	s.inputs = append(s.inputs, input)
	return s
}

// WithTimeout bounds the whole scenario.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// Expect adds an expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectOutput checks the reply to the last turn.
func (s *Scenario) ExpectOutput(m StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{matcher: m})
}

// ExpectToolCall expects the named tool to have run.
func (s *Scenario) ExpectToolCall(name string) *Scenario {
	return s.Expect(&toolCallExpectation{name: name})
}

// ExpectNoToolCalls expects no tool to have run.
func (s *Scenario) ExpectNoToolCalls() *Scenario {
	return s.Expect(&noToolCallsExpectation{})
}

// ExpectDegraded expects n degraded replies.
func (s *Scenario) ExpectDegraded(n int) *Scenario {
	return s.Expect(&degradedExpectation{n: n})
}

// ExpectMemory expects collection to hold n records afterwards.
func (s *Scenario) ExpectMemory(c memory.Collection, n int) *Scenario {
	return s.Expect(&memoryExpectation{collection: c, n: n})
}

// ExpectMaxDuration expects the scenario to finish within d.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(&maxDurationExpectation{max: d})
}

// Run plays every turn against h.
func (s *Scenario) Run(t *testing.T, h *Harness) *Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	before := h.usage(ctx, t)
	start := time.Now()
	res := &Result{scenario: s}
	for _, in := range s.inputs {
		res.Replies = append(res.Replies, h.Agent.ProcessTurn(ctx, in))
	}
	res.Duration = time.Since(start)
	if n := len(res.Replies); n > 0 {
		res.Output = res.Replies[n-1]
	}
	if after := h.usage(ctx, t); len(after) > len(before) {
		res.ToolCalls = after[len(before):]
	}
	res.Stats = h.Agent.Stats(ctx)
	return res
}

// Assert reports every failed expectation.
func (r *Result) Assert(t *testing.T) {
	t.Helper()
	for _, exp := range r.scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", r.scenario.name, exp.Description(), err)
		}
	}
}

// StringMatcher matches replies.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &funcMatcher{desc: fmt.Sprintf("contains %q", substr), fn: func(s string) bool { return strings.Contains(s, substr) }}
}

// Equals matches exactly want.
func Equals(want string) StringMatcher {
	return &funcMatcher{desc: fmt.Sprintf("equals %q", want), fn: func(s string) bool { return s == want }}
}

// HasPrefix matches strings starting with prefix.
func HasPrefix(prefix string) StringMatcher {
	return &funcMatcher{desc: fmt.Sprintf("has prefix %q", prefix), fn: func(s string) bool { return strings.HasPrefix(s, prefix) }}
}

// Regex matches the regular expression pattern. An invalid pattern never
// matches.
func Regex(pattern string) StringMatcher {
	re, err := regexp.Compile(pattern)
	return &funcMatcher{desc: fmt.Sprintf("matches regex %q", pattern), fn: func(s string) bool {
		return err == nil && re.MatchString(s)
	}}
}

type funcMatcher struct {
	desc string
	fn   func(string) bool
}

func (m *funcMatcher) Match(s string) bool  { return m.fn(s) }
func (m *funcMatcher) Description() string { return m.desc }

type outputExpectation struct {
	matcher StringMatcher
}

func (e *outputExpectation) Check(r *Result) error {
	if !e.matcher.Match(r.Output) {
		return fmt.Errorf("output %q does not match: %s", r.Output, e.matcher.Description())
	}
	return nil
}

func (e *outputExpectation) Description() string {
	return "output " + e.matcher.Description()
}

type toolCallExpectation struct {
	name string
}

func (e *toolCallExpectation) Check(r *Result) error {
	for _, u := range r.ToolCalls {
		if u.Tool == e.name {
			return nil
		}
	}
	return fmt.Errorf("tool %q was not called", e.name)
}

func (e *toolCallExpectation) Description() string {
	return fmt.Sprintf("tool %q called", e.name)
}

type noToolCallsExpectation struct{}

func (e *noToolCallsExpectation) Check(r *Result) error {
	if len(r.ToolCalls) > 0 {
		names := make([]string, len(r.ToolCalls))
		for i, u := range r.ToolCalls {
			names[i] = u.Tool
		}
		return fmt.Errorf("expected no tool calls, got: %v", names)
	}
	return nil
}

func (e *noToolCallsExpectation) Description() string {
	return "no tool calls"
}

type degradedExpectation struct {
	n int
}

func (e *degradedExpectation) Check(r *Result) error {
	if r.Stats.DegradedResponses != e.n {
		return fmt.Errorf("expected %d degraded replies, got %d", e.n, r.Stats.DegradedResponses)
	}
	return nil
}

func (e *degradedExpectation) Description() string {
	return fmt.Sprintf("%d degraded replies", e.n)
}

type memoryExpectation struct {
	collection memory.Collection
	n          int
}

func (e *memoryExpectation) Check(r *Result) error {
	if r.Stats.Memory == nil {
		return fmt.Errorf("memory unavailable: %s", r.Stats.MemoryError)
	}
	if got := r.Stats.Memory.Collections[e.collection].Count; got != e.n {
		return fmt.Errorf("expected %d %s records, got %d", e.n, e.collection, got)
	}
	return nil
}

func (e *memoryExpectation) Description() string {
	return fmt.Sprintf("%d %s records", e.n, e.collection)
}

type maxDurationExpectation struct {
	max time.Duration
}

func (e *maxDurationExpectation) Check(r *Result) error {
	if r.Duration > e.max {
		return fmt.Errorf("duration %v exceeds maximum %v", r.Duration, e.max)
	}
	return nil
}

func (e *maxDurationExpectation) Description() string {
	return fmt.Sprintf("duration <= %v", e.max)
}
