package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger resolves the request-scoped logger and stamps it with the
// handler and operation so every line from one request shares those fields.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	fields := []any{"handler", handlerName}
	if operation != "" {
		fields = append(fields, "operation", operation)
	}
	fields = append(fields, attrs...)
	return logger.With(fields...)
}
