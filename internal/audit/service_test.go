package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func seedAudit(t *testing.T) (docstore.Store, docstore.Scope) {
	t.Helper()
	ctx := context.Background()
	scope := docstore.Scope{WorkspaceID: "ws", OrgID: "org"}
	store := docstore.NewMemory(docstore.Options{})
	logger := shared.NewAuditLogger(store)
	base := time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC)
	for i, action := range []string{"post", "post", "reverse"} {
		require.NoError(t, logger.Record(ctx, scope, shared.AuditLog{
			ActorID:  "alice",
			Action:   action,
			Entity:   "journal_entry",
			EntityID: []string{"je-1", "je-2", "je-3"}[i],
			Meta:     map[string]any{"number": i + 1},
			At:       base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}
	return store, scope
}

func TestServiceTimelinePaging(t *testing.T) {
	store, scope := seedAudit(t)
	svc := NewService(store)

	result, err := svc.Timeline(context.Background(), scope, TimelineFilters{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.Equal(t, "je-3", result.Rows[0].EntityID)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)

	result, err = svc.Timeline(context.Background(), scope, TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, "je-1", result.Rows[0].EntityID)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)

	result, err = svc.Timeline(context.Background(), scope, TimelineFilters{Page: 9})
	require.NoError(t, err)
	require.Empty(t, result.Rows)
}

func TestServiceFilters(t *testing.T) {
	store, scope := seedAudit(t)
	svc := NewService(store)

	rows, err := svc.Export(context.Background(), scope, TimelineFilters{Action: "post"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	rows, err = svc.Export(context.Background(), scope, TimelineFilters{
		From: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "je-2", rows[0].EntityID)

	rows, err = svc.Export(context.Background(), scope, TimelineFilters{EntityID: "je-3", Actor: "bob"})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestWriteCSV(t *testing.T) {
	body, err := WriteCSV([]shared.AuditLog{{
		At:       time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC),
		ActorID:  "alice",
		Action:   "post",
		Entity:   "journal_entry",
		EntityID: "je-1",
		Meta:     map[string]any{"number": 1},
	}})
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, []string{"2024-03-08T08:00:00Z", "alice", "post", "journal_entry", "je-1", `{"number":1}`}, records[1])
}

func TestHandlerTimelineAndExport(t *testing.T) {
	store, _ := seedAudit(t)
	h := NewHandler(nil, NewService(store))
	h.now = func() time.Time { return time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(httpx.ScopeMiddleware)
	r.Route("/audit", h.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/audit?action=post", nil)
	req.Header.Set(httpx.HeaderWorkspace, "ws")
	req.Header.Set(httpx.HeaderOrg, "org")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"entityId":"je-2"`)
	require.NotContains(t, rr.Body.String(), "je-3")

	req = httptest.NewRequest(http.MethodGet, "/audit/export.csv?from=2024-03-01&to=2024-03-31", nil)
	req.Header.Set(httpx.HeaderWorkspace, "ws")
	req.Header.Set(httpx.HeaderOrg, "org")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "je-3")

	req = httptest.NewRequest(http.MethodGet, "/audit?from=2024-03-10&to=2024-03-01", nil)
	req.Header.Set(httpx.HeaderWorkspace, "ws")
	req.Header.Set(httpx.HeaderOrg, "org")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
