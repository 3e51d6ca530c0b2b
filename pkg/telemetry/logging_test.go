// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/autoagent/pkg/config"
)

func TestConfigureSlogAddsTraceIDs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "info", "json")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line: %v (%q)", err, buf.String())
	}
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("expected trace_id, got %v", entry)
	}
	if entry["span_id"] == nil {
		t.Fatalf("expected span_id, got %v", entry)
	}
}

func TestNewLoggerWritesConsoleAndFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	logger, closer := NewLogger(&console, config.LogConfig{Level: "warn", Format: "text", File: path})

	logger.Info("dropped")
	logger.Warn("kept", slog.String("tool", "web_search"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if strings.Contains(console.String(), "dropped") || !strings.Contains(console.String(), "kept") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("expected one json line in file: %v (%q)", err, data)
	}
	if entry["msg"] != "kept" || entry["tool"] != "web_search" {
		t.Fatalf("unexpected file entry %v", entry)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
