package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/energy-modelling-hub/water-value-database/internal/infrastructure"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer. A nil tracer uses the global
// provider; nil metrics record nothing.
func NewOperationTracer(tracer trace.Tracer, metrics *infrastructure.PipelineMetrics) *OperationTracer {
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.MeterName)
	}
	return &OperationTracer{tracer: tracer, metrics: metrics}
}

// TraceRun creates the root span of a pipeline run
func (t *OperationTracer) TraceRun(ctx context.Context, runID, step string) (context.Context, trace.Span) {
	if step == "" {
		step = "all"
	}
	return t.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.step", step),
		),
	)
}

// TraceStage creates a span for one step
func (t *OperationTracer) TraceStage(ctx context.Context, runID string, step Step) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pipeline.stage."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.id", step.ID()),
			attribute.String("stage.name", step.Name()),
		),
	)
}

// EndStage records the outcome of a step on its span and in the metrics,
// then ends the span.
func (t *OperationTracer) EndStage(ctx context.Context, span trace.Span, stageID string, duration time.Duration, artifacts int, err error) {
	span.SetAttributes(
		attribute.Int("stage.artifacts", artifacts),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", string(GetErrorType(err))))
	} else {
		span.SetStatus(codes.Ok, "")
		t.metrics.AddArtifacts(ctx, stageID, artifacts)
	}
	t.metrics.RecordStage(ctx, stageID, duration, err == nil)
	span.End()
}

// EndRun ends the root span
func (t *OperationTracer) EndRun(span trace.Span, status OperationStatusValue, err error) {
	span.SetAttributes(attribute.String("run.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
