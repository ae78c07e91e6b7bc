// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName names the tracer and the trace resource.
const DefaultServiceName = "docchat"

// TracerConfig configures NewTracer.
type TracerConfig struct {
	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// Stdout enables the stdout span exporter. When false the tracer is a
	// no-op.
	Stdout bool

	// Writer receives exported spans. Defaults to os.Stderr.
	Writer io.Writer

	// Version is recorded as service.version.
	Version string
}

// Tracer starts spans for upload and chat operations.
//
// # Description
//
// Wraps an OpenTelemetry tracer. With Stdout disabled every span is a
// no-op, so callers never branch on whether tracing is enabled.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracer creates a Tracer.
//
// # Inputs
//
//   - ctx: Used for resource detection.
//   - cfg: Exporter settings.
//
// # Outputs
//
//   - *Tracer: Ready to use. Call Shutdown to flush spans.
//   - error: Non-nil if the exporter or resource cannot be created.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	if !cfg.Stdout {
		return NewNoopTracer(), nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSyncer(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		tracer:   provider.Tracer(name),
		provider: provider,
	}, nil
}

// NewNoopTracer returns a Tracer whose spans record nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(DefaultServiceName)}
}

// StartSpan starts a client span.
//
// # Outputs
//
//   - context.Context: Carries the span.
//   - func(error): Ends the span; a non-nil error marks it failed.
//
// # Examples
//
//	ctx, finish := tracer.StartSpan(ctx, "backend.upload",
//	    attribute.String("file", name))
//	defer func() { finish(err) }()
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
	return ctx, finish
}

// Shutdown flushes and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
