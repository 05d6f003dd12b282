package httpx

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Scope header names set by the upstream gateway.
const (
	HeaderWorkspace = "X-Workspace-ID"
	HeaderOrg       = "X-Org-ID"
	HeaderActor     = "X-User-ID"
)

// ScopeMiddleware resolves the tenant scope from request headers.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := docstore.Scope{
			WorkspaceID: r.Header.Get(HeaderWorkspace),
			OrgID:       r.Header.Get(HeaderOrg),
		}
		if scope.WorkspaceID == "" && scope.OrgID == "" {
			next.ServeHTTP(w, r)
			return
		}
		if err := scope.Validate(); err != nil {
			Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		ctx := shared.ContextWithScope(r.Context(), scope)
		if actor := r.Header.Get(HeaderActor); actor != "" {
			ctx = shared.ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Scope returns the tenant scope resolved by ScopeMiddleware.
func Scope(r *http.Request) (docstore.Scope, error) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		return docstore.Scope{}, ErrNoScope
	}
	return scope, nil
}
