package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// L is the global logger instance
	L = zap.NewNop()

	// level backs L so verbosity can change on config reload
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// ParseLevel maps a config/env level name to a zap level, defaulting to info
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes the global logger
func Init(levelName string) error {
	level.SetLevel(ParseLevel(levelName))

	config := zap.NewProductionConfig()
	config.Level = level
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := config.Build()
	if err != nil {
		return err
	}
	L = l
	return nil
}

// SetLevel changes the level of the global logger at runtime
func SetLevel(levelName string) {
	level.SetLevel(ParseLevel(levelName))
}

// Level returns the current level name
func Level() string {
	return level.Level().String()
}

// Sync flushes any buffered log entries
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}

// WithTrace extracts trace context from context.Context and adds trace_id and span_id fields
func WithTrace(ctx context.Context, fields ...zap.Field) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		fields = append(fields,
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return fields
}

func Debug(msg string, fields ...zap.Field) { L.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L.Error(msg, fields...) }

// InfoWithTrace logs at Info level with trace context
func InfoWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	L.Info(msg, WithTrace(ctx, fields...)...)
}

// WarnWithTrace logs at Warn level with trace context
func WarnWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	L.Warn(msg, WithTrace(ctx, fields...)...)
}

// DebugWithTrace logs at Debug level with trace context
func DebugWithTrace(ctx context.Context, msg string, fields ...zap.Field) {
	L.Debug(msg, WithTrace(ctx, fields...)...)
}
