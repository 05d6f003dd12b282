package shared

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

type scopeContextKey struct{}

type actorContextKey struct{}

// ContextWithScope stores the tenant scope in context.
func ContextWithScope(ctx context.Context, scope docstore.Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the tenant scope from context.
func ScopeFromContext(ctx context.Context) (docstore.Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(docstore.Scope)
	return scope, ok
}

// ContextWithActor stores the calling user id.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the calling user id or "system".
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}
