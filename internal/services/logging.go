package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, service string) *ServiceLogger {
	return &ServiceLogger{logger: logger.With("service", service)}
}

// ===== OPERATION LOGGING =====

// LogOperation logs the outcome of one operation. Caller mistakes are logged
// at warn level, infrastructure failures at error level.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID string, resourceID uint, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err):
			level, status = slog.LevelWarn, "validation_error"
		case IsForbidden(err):
			level, status = slog.LevelWarn, "forbidden"
		case IsNotFound(err):
			level, status = slog.LevelInfo, "not_found"
		case IsConflict(err), IsTimeExpired(err):
			level, status = slog.LevelInfo, "rejected"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Uint64("resource_id", uint64(resourceID)),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var validationErr ValidationErrors
		var permErr *PermissionError
		if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		} else if errors.As(err, &permErr) {
			attrs = append(attrs, slog.String("permission_action", permErr.Action))
		}
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// LogValidationError logs up to five field errors.
func (l *ServiceLogger) LogValidationError(ctx context.Context, operation, userID string, validationErrors ValidationErrors) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Int("error_count", len(validationErrors)),
	}

	for i, err := range validationErrors {
		if i == 5 {
			break
		}
		attrs = append(attrs, slog.Group(fmt.Sprintf("error_%d", i+1),
			slog.String("field", err.Field),
			slog.String("message", err.Message),
			slog.Any("value", err.Value),
		))
	}

	l.logger.LogAttrs(ctx, slog.LevelWarn, "Validation failed", attrs...)
}

// ===== CONTEXTUAL LOGGER =====

// OperationLogger ties a log line and a trace span to one service call.
type OperationLogger struct {
	parent    *ServiceLogger
	ctx       context.Context
	span      trace.Span
	operation string
	userID    string
	start     time.Time
}

// WithOperation starts a span named "<service>.<operation>". The returned
// context must be used for the rest of the call.
func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string, resourceID uint) (context.Context, *OperationLogger) {
	ctx, span := tracing.StartSpan(ctx, operation,
		attribute.String("user.id", userID),
		attribute.Int64("resource.id", int64(resourceID)),
	)
	return ctx, &OperationLogger{
		parent:    l,
		ctx:       ctx,
		span:      span,
		operation: operation,
		userID:    userID,
		start:     time.Now(),
	}
}

// LogResult ends the span and logs the outcome.
func (ol *OperationLogger) LogResult(resourceID uint, err error) {
	tracing.EndSpan(ol.span, err)
	ol.parent.LogOperation(ol.ctx, ol.operation, ol.userID, resourceID, time.Since(ol.start), err)

	var validationErr ValidationErrors
	if errors.As(err, &validationErr) {
		ol.parent.LogValidationError(ol.ctx, ol.operation, ol.userID, validationErr)
	}
}
