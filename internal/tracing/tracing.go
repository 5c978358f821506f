// ABOUTME: OpenTelemetry spans for follower cycles
// ABOUTME: Exports one span per cycle through the stdout exporter
package tracing

import (
	"context"
	"io"

	"github.com/Resonate-Protocol/clocksync-go/pkg/follower"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/Resonate-Protocol/clocksync-go/internal/tracing"

// Tracer records follower cycles as spans
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// New exports spans as JSON lines to w
func New(w io.Writer, service, instanceID string) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.instance.id", instanceID),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(instrumentation),
	}, nil
}

// RecordCycle emits a span covering the cycle's wall time
func (t *Tracer) RecordCycle(r follower.CycleReport) {
	_, span := t.tracer.Start(context.Background(), "follower.cycle",
		trace.WithTimestamp(r.Started),
		trace.WithAttributes(
			attribute.String("clocksync.peer", r.Peer),
			attribute.Int("clocksync.samples", r.Samples),
		),
	)

	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
	} else {
		span.SetAttributes(
			attribute.Float64("clocksync.offset", r.Estimate.Offset),
			attribute.Float64("clocksync.jitter", r.Estimate.Jitter),
			attribute.String("clocksync.action", r.Correction.Action.String()),
			attribute.Float64("clocksync.applied", r.Correction.Applied),
			attribute.Float64("clocksync.residual", r.Correction.Residual),
		)
	}

	span.End(trace.WithTimestamp(r.Finished))
}

// Shutdown flushes and stops the provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
