package security

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
)

func newTestPolicy(t *testing.T, allowed ...string) *Policy {
	t.Helper()
	p, err := New(Options{
		EnableCommandExecution: true,
		AllowedFilePaths:       allowed,
		BlockedCommands:        []string{"rm -rf", "Shutdown", "mkfs", "  "},
		MaxFileSizeBytes:       1024,
		ExecTimeout:            time.Second,
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	return p
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return dir
}

func TestCheckCommandBlockedAnyCase(t *testing.T) {
	p := newTestPolicy(t)
	commands := []string{
		"rm -rf /",
		"  RM -RF /tmp/x  ",
		"sudo shutdown now",
		"\tShUtDoWn -h\n",
		"echo hi && mkfs.ext4 /dev/sda",
	}
	for _, c := range commands {
		if err := p.CheckCommand(c); !errors.HasCode(err, errors.CodeBlocked) {
			t.Errorf("expected %q to be blocked, got %v", c, err)
		}
	}
	if err := p.CheckCommand("ls -la"); err != nil {
		t.Errorf("expected ls to be allowed, got %v", err)
	}
}

func TestCheckCommandDisabled(t *testing.T) {
	p, err := New(Options{MaxFileSizeBytes: 1, ExecTimeout: time.Second})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	if err := p.CheckCommand("ls"); !errors.HasCode(err, errors.CodeBlocked) {
		t.Fatalf("expected blocked when disabled, got %v", err)
	}
	if p.Enabled(FlagCommandExecution) || p.Enabled(FlagCodeEvaluation) {
		t.Fatalf("capabilities must default to disabled")
	}
}

func TestBlockedCommandsNormalized(t *testing.T) {
	p := newTestPolicy(t)
	got := p.BlockedCommands()
	want := []string{"rm -rf", "shutdown", "mkfs"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	got[0] = "mutated"
	if p.BlockedCommands()[0] != "rm -rf" {
		t.Fatalf("policy must not expose internal slices")
	}
}

func TestResolvePath(t *testing.T) {
	root := canonicalTempDir(t)
	allowed := filepath.Join(root, "data")
	outside := filepath.Join(root, "secret")
	for _, dir := range []string{allowed, outside, filepath.Join(allowed, "sub")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(allowed, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outside, "key.txt"), []byte("top secret"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(allowed, "escape")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "key.txt"), filepath.Join(allowed, "key-link.txt")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	p := newTestPolicy(t, allowed)

	allowedCases := []string{
		allowed,
		filepath.Join(allowed, "notes.txt"),
		filepath.Join(allowed, "sub", "..", "notes.txt"),
		filepath.Join(allowed, "sub", "not-yet-created.txt"),
	}
	for _, path := range allowedCases {
		if _, err := p.ResolvePath(path); err != nil {
			t.Errorf("expected %s to be allowed, got %v", path, err)
		}
	}

	deniedCases := []string{
		filepath.Join(outside, "key.txt"),
		filepath.Join(allowed, "..", "secret", "key.txt"),
		filepath.Join(allowed, "..", "..", "..", "etc", "passwd"),
		filepath.Join(allowed, "escape", "key.txt"),
		filepath.Join(allowed, "escape", "missing.txt"),
		filepath.Join(allowed, "key-link.txt"),
		allowed + "-sibling",
		"/etc/passwd",
	}
	for _, path := range deniedCases {
		if _, err := p.ResolvePath(path); !errors.HasCode(err, errors.CodePermissionDenied) {
			t.Errorf("expected %s to be denied, got %v", path, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	root := canonicalTempDir(t)
	p, err := New(Options{
		AllowedFilePaths: []string{root},
		BlockedCommands:  []string{"reboot"},
		MaxFileSizeBytes: 10,
		ExecTimeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	ctx := context.Background()

	if d := p.Evaluate(ctx, Action{Type: ActionTool, Name: "python_repl", Flag: FlagCodeEvaluation}); d.Allowed {
		t.Fatalf("expected code evaluation to be denied")
	}
	if d := p.Evaluate(ctx, Action{Type: ActionTool, Name: "web_search"}); !d.Allowed {
		t.Fatalf("expected safe tool to be allowed: %s", d.Reason)
	}
	if d := p.Evaluate(ctx, Action{Type: ActionCommand, Target: "REBOOT"}); d.Allowed || d.Rule != "blocked:reboot" {
		t.Fatalf("expected blocked rule, got %+v", d)
	}
	if d := p.Evaluate(ctx, Action{Type: ActionFile, Target: "/"}); d.Allowed {
		t.Fatalf("expected root filesystem to be denied")
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero size", Options{ExecTimeout: time.Second}},
		{"zero timeout", Options{MaxFileSizeBytes: 1}},
		{"missing dir", Options{MaxFileSizeBytes: 1, ExecTimeout: time.Second, AllowedFilePaths: []string{filepath.Join(t.TempDir(), "absent")}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); !errors.HasCode(err, errors.CodeConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	root := canonicalTempDir(t)
	p, err := FromConfig(config.SecurityConfig{
		EnablePythonExec:   true,
		AllowedFilePaths:   []string{root, root},
		MaxFileSizeBytes:   100,
		ExecTimeoutSeconds: 3,
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if !p.Enabled(FlagCodeEvaluation) {
		t.Errorf("expected code evaluation enabled")
	}
	if p.ExecTimeout() != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", p.ExecTimeout())
	}
	if got := p.AllowedFilePaths(); len(got) != 1 || got[0] != root {
		t.Errorf("expected deduplicated canonical path, got %v", got)
	}
}
