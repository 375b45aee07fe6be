// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry tracer provider used by the
// solver's spans (threat.initialize, threat.execute, decision.run, ...).
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned when Init receives a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// Exporter names.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies the process in exported spans.
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// TraceExporter is "stdout" or "none".
	TraceExporter string

	// Writer receives stdout spans. Defaults to os.Stdout.
	Writer io.Writer

	// PrettyPrint indents exported spans.
	PrettyPrint bool
}

// DefaultConfig returns a configuration with tracing disabled.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "threatsolve",
		ServiceVersion: "1.0.0",
		TraceExporter:  ExporterNone,
	}
}

// Init installs the global tracer provider.
//
// Description:
//
//	With the stdout exporter, spans are batched and written as JSON when
//	the batch fills or at shutdown. With "none" the global no-op provider
//	is left in place.
//
// Outputs:
//   - shutdown: Flushes and stops the provider. Always non-nil on success.
//   - error: ErrNilContext, ErrUnknownExporter or an exporter failure.
//
// Thread Safety: Call once at process start.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	switch cfg.TraceExporter {
	case ExporterNone, "":
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
