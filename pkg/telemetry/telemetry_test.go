// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
)

func TestSetupStdout(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := Setup(context.Background(), "test-service", "v0.0.1", config.TelemetryConfig{Exporter: "stdout"}, &out)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "unit")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"unit"`)) {
		t.Fatalf("expected the span to be exported, got %q", out.String())
	}
}

func TestFromConfig(t *testing.T) {
	shutdown, err := FromConfig("test-service", "v0.0.1", config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("disabled telemetry must not fail: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}

	tests := []config.TelemetryConfig{
		{Enabled: true, Exporter: "otlp"},
		{Enabled: true, Exporter: "zipkin"},
	}
	for _, cfg := range tests {
		if _, err := FromConfig("test-service", "v0.0.1", cfg); !errors.HasCode(err, errors.CodeConfiguration) {
			t.Fatalf("%+v: expected configuration error, got %v", cfg, err)
		}
	}
}
