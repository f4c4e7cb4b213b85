package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel names the supported logging levels.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Identity attributes stamped on every record.
	ServiceName string
	Environment string
	Version     string

	Level     LogLevel
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the standard JSON-to-stdout configuration.
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("VERSION", "unknown"),
		Level:       LevelInfo,
		Output:      os.Stdout,
	}
}

// Logger wraps slog with context extraction and the service's structured
// logging helpers. The embedded slog.Logger keeps the plain Info/Warn/Error
// calls available everywhere.
type Logger struct {
	*slog.Logger
}

// New builds a JSON logger tagged with the service identity.
func New(config *Config) *Logger {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level:       slogLevel(config.Level),
		AddSource:   config.AddSource,
		ReplaceAttr: utcTimestamps,
	})

	base := slog.New(handler).With(
		"service", config.ServiceName,
		"environment", config.Environment,
		"version", config.Version,
	)

	return &Logger{Logger: base}
}

// utcTimestamps rewrites the time attribute to RFC3339Nano in UTC so records
// sort cleanly across hosts.
func utcTimestamps(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) derive(attrs ...any) *Logger {
	return &Logger{Logger: l.Logger.With(attrs...)}
}

// WithContext returns a logger carrying the request, correlation and trace
// identifiers found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	return l.derive(attrs...)
}

// WithError returns a logger with the error message attached.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.derive("error", err.Error())
}

// Audit records who changed what. Every stock mutation emits one of these.
func (l *Logger) Audit(ctx context.Context, action string, productID string, changedBy string, details map[string]any) {
	attrs := []any{
		"auditAction", action,
		"productId", productID,
		"changedBy", changedBy,
		"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range details {
		attrs = append(attrs, k, v)
	}

	l.WithContext(ctx).Info("Audit event", attrs...)
}

// DatabaseQuery records one store operation at debug, or error on failure.
func (l *Logger) DatabaseQuery(ctx context.Context, collection, operation string, duration time.Duration, success bool, rowsAffected int64) {
	l.WithContext(ctx).Log(ctx, statusLevel(success), "Database query",
		"collection", collection,
		"operation", operation,
		"success", success,
		"rowsAffected", rowsAffected,
		"durationMs", duration.Milliseconds(),
	)
}

// KafkaPublish records one publish attempt at debug, or error on failure.
func (l *Logger) KafkaPublish(ctx context.Context, topic, eventType string, success bool, duration time.Duration) {
	l.WithContext(ctx).Log(ctx, statusLevel(success), "Kafka publish",
		"topic", topic,
		"eventType", eventType,
		"success", success,
		"durationMs", duration.Milliseconds(),
	)
}

// statusLevel keeps routine traffic at debug while surfacing failures.
func statusLevel(success bool) slog.Level {
	if success {
		return slog.LevelDebug
	}
	return slog.LevelError
}

// SweepRun summarizes one expiration sweep, warning when anything failed.
func (l *Logger) SweepRun(ctx context.Context, scanned, released, failed int, duration time.Duration) {
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}

	l.WithContext(ctx).Log(ctx, level, "Expiration sweep",
		"scanned", scanned,
		"released", released,
		"failed", failed,
		"durationMs", duration.Milliseconds(),
	)
}

// SetDefault installs this logger as the process-wide slog default.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

type contextKey string

// Context keys under which the middleware stores request identifiers.
const (
	RequestIDKey     contextKey = "requestId"
	CorrelationIDKey contextKey = "correlationId"
	TraceIDKey       contextKey = "traceId"
)

func contextAttrs(ctx context.Context) []any {
	var attrs []any
	for _, key := range []contextKey{RequestIDKey, CorrelationIDKey, TraceIDKey} {
		if v := ctx.Value(key); v != nil {
			attrs = append(attrs, string(key), v)
		}
	}
	return attrs
}

// ContextWithRequestID stores the request id for later log extraction.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// ContextWithCorrelationID stores the correlation id for later log extraction.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
