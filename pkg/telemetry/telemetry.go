// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jllopis/autoagent/pkg/config"
	"github.com/jllopis/autoagent/pkg/errors"
)

const (
	batchTimeout   = time.Second
	exportInterval = time.Minute
)

// ShutdownFunc flushes and stops the exporters.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// FromConfig installs the global tracer and meter providers when
// cfg.Enabled is set. Otherwise the no-op providers stay in place.
// The stdout exporter writes to stderr, which keeps stdout free for the
// chat and the MCP protocol.
func FromConfig(serviceName, version string, cfg config.TelemetryConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	return Setup(context.Background(), serviceName, version, cfg, os.Stderr)
}

// Setup installs the providers for cfg.Exporter regardless of cfg.Enabled.
// out receives stdout exporter output.
func Setup(ctx context.Context, serviceName, version string, cfg config.TelemetryConfig, out io.Writer) (ShutdownFunc, error) {
	spans, metrics, err := exporters(ctx, cfg, out)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "create telemetry resource", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(spans, trace.WithBatchTimeout(batchTimeout)),
		trace.WithResource(res),
	)
	mp := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metrics, metric.WithInterval(exportInterval))),
		metric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func exporters(ctx context.Context, cfg config.TelemetryConfig, out io.Writer) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		spans, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, errors.New(errors.CodeConfiguration, "create stdout trace exporter", err)
		}
		metrics, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
		if err != nil {
			return nil, nil, errors.New(errors.CodeConfiguration, "create stdout metric exporter", err)
		}
		return spans, metrics, nil
	case "otlp":
		if cfg.OTLPEndpoint == "" {
			return nil, nil, errors.New(errors.CodeConfiguration, "otlp endpoint is required", nil)
		}
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		spans, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, errors.New(errors.CodeConfiguration, "create otlp trace exporter", err)
		}
		metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, errors.New(errors.CodeConfiguration, "create otlp metric exporter", err)
		}
		return spans, metrics, nil
	default:
		return nil, nil, errors.Newf(errors.CodeConfiguration, "unknown telemetry exporter %q", cfg.Exporter)
	}
}
