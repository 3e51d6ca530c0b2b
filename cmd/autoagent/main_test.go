package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/tools"
)

// testOverrides configures a fully local agent under dir.
func testOverrides(dir string) []string {
	return []string{
		"llm.provider=mock",
		"memory.provider=inmemory",
		"memory.embedder_provider=hash",
		"memory.dimension=32",
		"log.file=" + filepath.Join(dir, "logs", "agent.log"),
		"log.level=error",
		"security.allowed_file_paths=" + filepath.Join(dir, "data"),
		"tools.history_path=" + filepath.Join(dir, "history.db"),
		"tools.code_isolation=inline",
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func withOverrides(dir string, args ...string) []string {
	var out []string
	for _, o := range testOverrides(dir) {
		out = append(out, "--set", o)
	}
	return append(out, args...)
}

func TestAsk(t *testing.T) {
	out, err := runCLI(t, "", withOverrides(t.TempDir(), "ask", "what", "is", "go")...)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "This is a mock response." {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestToolsJSON(t *testing.T) {
	out, err := runCLI(t, "", withOverrides(t.TempDir(), "tools", "--format", "json")...)
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	var list []tools.Descriptor
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := []string{"web_search", "wikipedia", "file_read", "system_command", "python_repl", "memory_search"}
	if len(list) != len(want) {
		t.Fatalf("expected %d tools, got %+v", len(want), list)
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Fatalf("tool %d: expected %s, got %s", i, name, list[i].Name)
		}
	}
}

func TestStatsYAML(t *testing.T) {
	out, err := runCLI(t, "", withOverrides(t.TempDir(), "stats", "-f", "yaml")...)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var st agent.Stats
	if err := yaml.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if st.Tools != 6 || st.Memory == nil || st.Memory.Backend != "inmemory" || st.Memory.Dimension != 32 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestChatSession(t *testing.T) {
	in := "hello\n\nstats\ntools\nquit\nnever read\n"
	out, err := runCLI(t, in, withOverrides(t.TempDir(), "chat")...)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	for _, want := range []string{"Agent: This is a mock response.", "Turns:", "NAME", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Count(out, "Agent:") != 1 {
		t.Fatalf("expected exactly one agent reply:\n%s", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	args := withOverrides(t.TempDir(), "--set", "llm.provider=nope", "ask", "hi")
	if _, err := runCLI(t, "", args...); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestSandboxEval(t *testing.T) {
	out, err := runCLI(t, `{"code":"result = str(6 * 7)","timeout_ms":1000}`, "sandbox-eval")
	if err != nil {
		t.Fatalf("sandbox-eval: %v", err)
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil || resp.Result != "42" {
		t.Fatalf("unexpected output %q, %v", out, err)
	}
}

type echoRunner struct{ turns []string }

func (e *echoRunner) ProcessTurn(_ context.Context, text string) string {
	e.turns = append(e.turns, text)
	return "echo " + text
}

func TestREPLStopsOnEOFAndQuitWords(t *testing.T) {
	for _, quit := range []string{"quit", "EXIT", " q "} {
		r := &echoRunner{}
		var out bytes.Buffer
		err := repl(context.Background(), strings.NewReader("one\n"+quit+"\ntwo\n"), &out, r, nil)
		if err != nil {
			t.Fatalf("repl: %v", err)
		}
		if len(r.turns) != 1 || r.turns[0] != "one" {
			t.Fatalf("%q: unexpected turns %v", quit, r.turns)
		}
	}
	r := &echoRunner{}
	var out bytes.Buffer
	if err := repl(context.Background(), strings.NewReader("a\nb"), &out, r, nil); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if len(r.turns) != 2 {
		t.Fatalf("expected both lines before EOF, got %v", r.turns)
	}
}

func TestRenderStatsText(t *testing.T) {
	var out bytes.Buffer
	st := agent.Stats{
		Turns: 2,
		Memory: &memory.Stats{
			Backend:   "chromem",
			Total:     3,
			Dimension: 384,
			Collections: map[memory.Collection]memory.CollectionStats{
				memory.CollectionFact:         {Count: 1, Limit: 500},
				memory.CollectionConversation: {Count: 2, Limit: 1000},
			},
		},
	}
	if err := renderStats(&out, st, "text"); err != nil {
		t.Fatalf("render: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "chromem, 3 records") || strings.Index(text, "conversation") > strings.Index(text, "fact") {
		t.Fatalf("unexpected rendering:\n%s", text)
	}
	if err := renderStats(&out, st, "xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
