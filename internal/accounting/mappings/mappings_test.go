package mappings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

func TestRepositoryPutGet(t *testing.T) {
	ctx := context.Background()
	scope := docstore.Scope{WorkspaceID: "ws", OrgID: "org"}
	store := docstore.NewMemory(docstore.Options{})
	_, err := accounts.NewService(accounts.NewRepository(store)).Create(ctx, scope, accounts.CreateInput{ID: "1100", Code: "1100", Name: "AR", Type: "asset"})
	require.NoError(t, err)

	repo := NewRepository(store)
	_, err = repo.Get(ctx, scope, ModuleAR, KeyInvoiceReceivable)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, err, shared.ErrMappingNotFound)

	_, err = repo.Put(ctx, scope, AccountMapping{Module: "ar", Key: KeyInvoiceReceivable, AccountID: "9999"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	saved, err := repo.Put(ctx, scope, AccountMapping{Module: "ar", Key: KeyInvoiceReceivable, AccountID: "1100"})
	require.NoError(t, err)
	require.Equal(t, ModuleAR, saved.Module)

	got, err := repo.Get(ctx, scope, "ar", KeyInvoiceReceivable)
	require.NoError(t, err)
	require.Equal(t, "1100", got.AccountID)

	all, err := repo.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
