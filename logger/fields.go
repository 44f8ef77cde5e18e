package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging. Use these constants instead
// of raw strings so that log queries stay stable.
const (
	// Identity and context
	FieldRequestID = "request_id"
	FieldUser      = "user"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldQuery     = "query"
	FieldSQL       = "sql"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError     = "error"
	FieldErrorType = "error_type"

	// Counts and sizes
	FieldCount     = "count"
	FieldCreated   = "created"
	FieldChanged   = "changed"
	FieldDeleted   = "deleted"
	FieldLimit     = "limit"
	FieldOffset    = "offset"
	FieldBatchSize = "batch_size"

	// Store
	FieldPath      = "path"
	FieldMigration = "migration"
	FieldVersion   = "version"
	FieldSymbol    = "symbol"

	// Inventory
	FieldCommitID   = "commit_id"
	FieldObjectID   = "object_id"
	FieldHostname   = "hostname"
	FieldServertype = "servertype"
	FieldAttribute  = "attribute"
	FieldNetwork    = "network"
	FieldConstraint = "constraint"
)

// Context keys for propagating logging context
type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	userKey      contextKey = "logger_user"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUser adds the acting user to the context for logging
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if user, ok := ctx.Value(userKey).(string); ok && user != "" {
		fields = append(fields, FieldUser, user)
	}

	return fields
}

// FromContext returns base with the fields carried by ctx attached.
// A nil base yields nil so callers can keep "nil means silent" semantics.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		return nil
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
//	committer := commit.NewCommitter(db, schema, commit.Options{
//	    Logger: logger.ComponentLogger("commit"),
//	})
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
