package logger

import (
	"context"
	"time"

	"gitlab.com/timkado/api/daisi-crm-automation/internal/tenant"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global logger
var Log = zap.NewNop()

// Initialize sets up the global logger with the specified log level, writing to stdout
func Initialize(level string) error {
	return InitializeWithOutput(level, "stdout")
}

// InitializeWithOutput is Initialize with explicit zap output paths (e.g. "stderr" for CLIs
// whose stdout carries command output).
func InitializeWithOutput(level string, outputPaths ...string) error {
	var zapLevel zapcore.Level
	err := zapLevel.UnmarshalText([]byte(level))
	if err != nil {
		zapLevel = zap.InfoLevel
	}

	customTimeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}

	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: false,
		Sampling:          nil,
		Encoding:          "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     customTimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		return err
	}

	Log = logger
	return nil
}

// WithLogger attaches a scoped logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts a logger from the context, tagging it with the run and company IDs when present.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Log
	}

	baseLogger := Log
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		baseLogger = logger
	}

	if runID, err := tenant.RunIDFromContext(ctx); err == nil {
		baseLogger = baseLogger.With(zap.String("run_id", runID))
	}
	if companyID, err := tenant.FromContext(ctx); err == nil {
		baseLogger = baseLogger.With(zap.String("company_id", companyID))
	}

	return baseLogger
}

// FromContextOr returns the logger from the context or the default logger if not found.
func FromContextOr(ctx context.Context, defaultLogger *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
			return l
		}
	}
	if defaultLogger != nil {
		return defaultLogger
	}
	return Log
}

// Sync flushes any buffered log entries
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

type contextKey int

const (
	loggerKey contextKey = iota
)
