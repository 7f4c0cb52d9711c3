package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("fpl-data-pipeline/internal/usecase")
var usecaseNoopSpan = trace.SpanFromContext(context.Background())

// startUsecaseSpan only opens a child span; without a sampled parent the
// command runs untraced.
func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" {
		return ctx, usecaseNoopSpan
	}
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, usecaseNoopSpan
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// failSpan records err on span and returns it unchanged. Cancellation is
// tagged, not reported as a failure.
func failSpan(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("fetch.cancelled", true))
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func requestAttributes(req Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("fetch.resource", string(req.Resource))}
	if req.Resource.Source() == resource.SourceUnderstat {
		attrs = append(attrs,
			attribute.String("understat.league", req.League),
			attribute.Int("understat.season", req.Season),
		)
	}
	if req.Limit != nil {
		attrs = append(attrs, attribute.Int("fetch.limit", *req.Limit))
	}
	return attrs
}
