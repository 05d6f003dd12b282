package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

var scope = docstore.Scope{WorkspaceID: "ws", OrgID: "org"}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := docstore.NewMemory(docstore.Options{Backoff: time.Millisecond})
	svc := NewService(NewRepository(store))
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })
	return svc
}

func TestServiceCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.Create(ctx, scope, CreateInput{ID: "1000", Code: "1000", Name: "Cash", Type: "Asset"})
	require.NoError(t, err)
	require.Equal(t, AccountTypeAsset, created.Type)
	require.True(t, created.IsActive)
	require.True(t, created.Balance.IsZero())
	require.Equal(t, "USD", created.Currency)

	got, err := svc.Get(ctx, scope, "1000")
	require.NoError(t, err)
	require.Equal(t, "Cash", got.Name)

	_, err = svc.Get(ctx, scope, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)

	other := docstore.Scope{WorkspaceID: "ws", OrgID: "other"}
	_, err = svc.Get(ctx, other, "1000")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceCreateRejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Create(ctx, scope, CreateInput{Code: "1000", Name: "Cash", Type: "asset"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, scope, CreateInput{Code: "1000", Name: "Cash again", Type: "asset"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, scope, CreateInput{Code: "1100", Name: "Sub", Type: "asset", ParentID: "nope"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceListAndDeactivate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, in := range []CreateInput{
		{ID: "4000", Code: "4000", Name: "Sales", Type: "revenue"},
		{ID: "1000", Code: "1000", Name: "Cash", Type: "asset"},
	} {
		_, err := svc.Create(ctx, scope, in)
		require.NoError(t, err)
	}

	deactivated, err := svc.Deactivate(ctx, scope, "4000")
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)

	all, err := svc.List(ctx, scope, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "1000", all[0].Code)

	active, err := svc.List(ctx, scope, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "1000", active[0].ID)

	_, err = svc.Deactivate(ctx, scope, "9999")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

type scopeCache struct {
	scopes []docstore.Scope
	err    error
}

func (c *scopeCache) Invalidate(_ context.Context, scope docstore.Scope) error {
	c.scopes = append(c.scopes, scope)
	return c.err
}

func TestServiceInvalidatesReportCache(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	cache := &scopeCache{}
	svc.WithCache(cache, nil)

	_, err := svc.Create(ctx, scope, CreateInput{ID: "1000", Code: "1000", Name: "Cash", Type: "asset"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, scope, CreateInput{ID: "1001", Code: "1000", Name: "Dup", Type: "asset"})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, []docstore.Scope{scope}, cache.scopes)

	cache.err = errors.New("redis down")
	_, err = svc.Deactivate(ctx, scope, "1000")
	require.NoError(t, err)
	require.Len(t, cache.scopes, 2)

	_, err = svc.Deactivate(ctx, scope, "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Len(t, cache.scopes, 2)
}
