package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for pipeline spans
const TracerName = "github.com/jonathan/hiring-pipeline/pipeline"

// Span attribute keys
const (
	AttrPipelineID  = attribute.Key("pipeline.id")
	AttrTemplateID  = attribute.Key("stage_template.id")
	AttrJobID       = attribute.Key("job.id")
	AttrCandidateID = attribute.Key("candidate.id")
	AttrInstanceID  = attribute.Key("stage_instance.id")
	AttrTemplates   = attribute.Key("stage_template.count")
)

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// recordError marks the span as failed. The status description stays generic;
// the error itself is attached as a span event.
func recordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
