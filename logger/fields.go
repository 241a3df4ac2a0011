package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging across the console.
const (
	// Job queue identity
	FieldAdapterID = "adapter_id"
	FieldJobID     = "job_id"
	FieldJobName   = "job_name"
	FieldRunID     = "run_id"

	// Events and streaming
	FieldEvent    = "event"
	FieldStreamID = "stream_id"
	FieldLocale   = "locale"
	FieldBaseURL  = "base_url"

	// Policy
	FieldReason  = "reason"
	FieldWarning = "warning"
	FieldScope   = "scope"
	FieldWaitMS  = "wait_ms"

	// Components
	FieldComponent = "component"
	FieldOperation = "operation"

	// Transport
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDurationMS = "duration_ms"

	// Errors and state
	FieldError  = "error"
	FieldStatus = "status"
	FieldCount  = "count"
	FieldFile   = "file"
)

type contextKey string

const (
	adapterIDKey contextKey = "logger_adapter_id"
	jobIDKey     contextKey = "logger_job_id"
	componentKey contextKey = "logger_component"
)

// WithAdapterID adds an adapter ID to the context for logging
func WithAdapterID(ctx context.Context, adapterID string) context.Context {
	return context.WithValue(ctx, adapterIDKey, adapterID)
}

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if adapterID, ok := ctx.Value(adapterIDKey).(string); ok && adapterID != "" {
		fields = append(fields, FieldAdapterID, adapterID)
	}
	if jobID, ok := ctx.Value(jobIDKey).(string); ok && jobID != "" {
		fields = append(fields, FieldJobID, jobID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base enriched with the fields carried by ctx.
// A nil base falls back to the global logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
