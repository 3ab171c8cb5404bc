// Package observability wires request logging, panic recovery and Cloud
// Trace propagation into the HTTP middleware chain.
package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shades-uz/api/internal/platform/requestctx"
)

const envLogLevel = "LOG_LEVEL"

// NewLogger builds the process-wide zap logger. Output is JSON on stdout
// with field names Cloud Logging understands (severity, message,
// timestamp). LOG_LEVEL picks the level, defaulting to info.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv(envLogLevel))); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level.SetLevel(parsed)
		}
	}

	cfg := zap.Config{
		Level:    level,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "message",
			TimeKey:    "timestamp",
			LevelKey:   "severity",
			EncodeTime: zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
				enc.AppendString(strings.ToUpper(l.String()))
			},
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// WithLogger stores the logger on ctx for downstream handlers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// PrintfAdapter exposes a zap logger through a Printf method for packages
// that take a minimal logging interface.
type PrintfAdapter struct {
	sugar *zap.SugaredLogger
}

// NewPrintfAdapter wraps logger; a nil logger yields a no-op adapter.
func NewPrintfAdapter(logger *zap.Logger) PrintfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return PrintfAdapter{sugar: logger.Sugar()}
}

func (a PrintfAdapter) Printf(format string, args ...any) {
	a.sugar.Infof(format, args...)
}
