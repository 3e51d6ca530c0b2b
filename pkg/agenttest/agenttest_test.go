package agenttest_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/agenttest"
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/security"
	"github.com/jllopis/autoagent/pkg/tools"
)

type staticSearcher string

func (s staticSearcher) Call(context.Context, string) (string, error) { return string(s), nil }

func TestWeatherScenario(t *testing.T) {
	provider := &llm.MockProvider{Response: "It is sunny in Paris."}
	h := agenttest.NewHarness(t, provider, agenttest.WithTools(
		tools.NewWikipediaTool(staticSearcher("Paris is a city"), 0),
		tools.NewWebSearchTool(staticSearcher("Sunny, 24C")),
	))

	agenttest.NewScenario("weather").
		WithInput("web search for the weather in Paris").
		ExpectOutput(agenttest.Equals("It is sunny in Paris.")).
		ExpectToolCall(tools.WebSearchToolName).
		ExpectMemory(memory.CollectionConversation, 1).
		ExpectMemory(memory.CollectionToolUsage, 1).
		ExpectDegraded(0).
		Run(t, h).
		Assert(t)

	prompt := provider.LastRequest().Messages[len(provider.LastRequest().Messages)-1].Content
	if strings.Count(prompt, "web_search:") != 1 || strings.Contains(prompt, "wikipedia:") {
		t.Fatalf("unexpected tool results in prompt %q", prompt)
	}
}

func TestGreetingScenario(t *testing.T) {
	h := agenttest.NewHarness(t, llm.NewScriptedMockProvider("Hello! How can I help you today?"),
		agenttest.WithTools(tools.NewWebSearchTool(staticSearcher("unused"))))

	agenttest.NewScenario("greeting").
		WithInput("Hello, how are you?").
		ExpectOutput(agenttest.HasPrefix("Hello!")).
		ExpectNoToolCalls().
		ExpectMaxDuration(5 * time.Second).
		Run(t, h).
		Assert(t)
}

func TestDisabledCommandScenario(t *testing.T) {
	policy, err := security.New(security.Options{MaxFileSizeBytes: 1024, ExecTimeout: time.Second})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	provider := &llm.MockProvider{Response: "I am not allowed to run commands."}
	h := agenttest.NewHarness(t, provider,
		agenttest.WithPolicy(policy),
		agenttest.WithTools(tools.NewCommandTool(policy)),
	)

	res := agenttest.NewScenario("command disabled").
		WithInput("system command: ls /tmp").
		ExpectToolCall(tools.CommandToolName).
		ExpectMemory(memory.CollectionToolUsage, 0).
		Run(t, h)
	res.Assert(t)

	if len(res.ToolCalls) != 1 || res.ToolCalls[0].Outcome != tools.OutcomeBlocked {
		t.Fatalf("expected one blocked call, got %+v", res.ToolCalls)
	}
	prompt := provider.LastRequest().Messages[len(provider.LastRequest().Messages)-1].Content
	if !strings.Contains(prompt, "system_command: blocked") {
		t.Fatalf("expected blocked result in prompt %q", prompt)
	}
}

func TestMultiTurnLearningScenario(t *testing.T) {
	h := agenttest.NewHarness(t, llm.NewScriptedMockProvider(
		"Sure, noted.",
		"A goroutine is a lightweight thread managed by the Go runtime.",
	), agenttest.WithAgentOptions(agent.WithHistoryWindow(4)))

	res := agenttest.NewScenario("learning").
		WithInput("remember that I like go").
		WithInput("what is a goroutine").
		ExpectOutput(agenttest.Regex(`(?i)goroutine is`)).
		ExpectMemory(memory.CollectionConversation, 2).
		ExpectMemory(memory.CollectionFact, 1).
		Run(t, h)
	res.Assert(t)

	if len(res.Replies) != 2 || res.Stats.Turns != 2 || res.Stats.ConversationLength != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDegradedScenario(t *testing.T) {
	h := agenttest.NewHarness(t, &llm.FailingMockProvider{})

	agenttest.NewScenario("offline model").
		WithInput("what is go").
		WithInput("are you there").
		ExpectOutput(agenttest.Equals(agent.DegradedResponse)).
		ExpectDegraded(2).
		ExpectMemory(memory.CollectionConversation, 0).
		ExpectMemory(memory.CollectionFact, 0).
		Run(t, h).
		Assert(t)
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name    string
		matcher agenttest.StringMatcher
		in      string
		want    bool
	}{
		{"contains", agenttest.Contains("lo w"), "hello world", true},
		{"equals", agenttest.Equals("a"), "b", false},
		{"prefix", agenttest.HasPrefix("he"), "hello", true},
		{"regex", agenttest.Regex(`^\d+$`), "123", true},
		{"bad regex", agenttest.Regex(`(`), "(", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.matcher.Match(tc.in); got != tc.want {
				t.Fatalf("%s on %q: got %v", tc.matcher.Description(), tc.in, got)
			}
		})
	}
}
