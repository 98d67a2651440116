package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (upload_success, network_gated, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldFileKey identifies a candidate file as <session>/<name>.
	FieldFileKey = "file_key"
	// FieldRunID identifies one daemon process lifetime.
	FieldRunID = "run_id"
	// FieldDeviceID is the device identity attached to uploads.
	FieldDeviceID = "device_id"
)

type contextKey int

const fileKeyKey contextKey = iota

// WithFileKey tags ctx with the file currently being processed.
func WithFileKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, fileKeyKey, key)
}

// ContextFields extracts standardized slog attributes from the provided context.
// The run id is not carried here; the daemon attaches it to its root logger.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if key, ok := ctx.Value(fileKeyKey).(string); ok && key != "" {
		fields = append(fields, slog.String(FieldFileKey, key))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
