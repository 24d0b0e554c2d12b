package http

import (
	"context"
	"log/slog"

	"github.com/example/volunteer-coordinator/internal/application"
	"github.com/example/volunteer-coordinator/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	pathIDContextKey    contextKey = "path_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithPathID injects the resource identifier resolved from the request path.
func ContextWithPathID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pathIDContextKey, id)
}

// PathIDFromContext extracts a resource identifier previously associated with the context.
func PathIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(pathIDContextKey).(string)
	return id, ok
}

// ContextWithLogger attaches a request scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
