package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process JSON logger. Records carry the service name
// and, through TraceHandler, the trace and request ids of their context.
func NewLogger(env, service string) *slog.Logger {
	return newLogger(os.Stdout, env, service)
}

func newLogger(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(NewTraceHandler(handler))
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}
