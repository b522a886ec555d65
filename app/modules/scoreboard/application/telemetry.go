package scoreboardservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// telemetry bundles the observability collaborators shared by the services in this package.
type telemetry struct {
	service string
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics Metrics
}

func newTelemetry(service string, logger *slog.Logger, tracer trace.Tracer, metrics Metrics) telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoop()
	}
	return telemetry{service: service, logger: logger, tracer: tracer, metrics: metrics}
}

// operationFunc is the generic signature for wrapped service operations.
type operationFunc[T any] func(ctx context.Context) (T, error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[T any](
	t telemetry,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[T],
) (result T, err error) {
	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	t.metrics.RecordOperationAttempt(ctx, operationName, t.service)

	startTime := time.Now()
	defer func() {
		t.metrics.RecordOperationDuration(ctx, operationName, t.service, time.Since(startTime))
	}()

	t.logger.DebugContext(ctx, "Operation triggered",
		slog.String("operation", operationName),
		slog.String("identifier", identifier),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			t.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.String("identifier", identifier),
				slog.Any("error", err),
			)
			t.metrics.RecordOperationFailure(ctx, operationName, t.service)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var zero T
			result = zero
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		t.logger.WarnContext(ctx, "Operation failed with error",
			slog.String("operation", operationName),
			slog.String("identifier", identifier),
			slog.Any("error", wrappedErr),
		)
		t.metrics.RecordOperationFailure(ctx, operationName, t.service)
		span.RecordError(wrappedErr)
		span.SetStatus(codes.Error, wrappedErr.Error())
		return result, wrappedErr
	}

	t.metrics.RecordOperationSuccess(ctx, operationName, t.service)
	return result, nil
}
