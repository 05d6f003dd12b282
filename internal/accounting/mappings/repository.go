package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, module, key string) (AccountMapping, error)
	Put(ctx context.Context, scope docstore.Scope, mapping AccountMapping) (AccountMapping, error)
	List(ctx context.Context, scope docstore.Scope) ([]AccountMapping, error)
}

type repository struct {
	store docstore.Store
	now   func() time.Time
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store, now: time.Now}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, scope docstore.Scope, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, shared.Validation("mapping", "module and key required")
	}
	var mapping AccountMapping
	err := r.store.Get(ctx, scope.Doc(Collection, DocID(module, key)), &mapping)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return AccountMapping{}, &shared.NotFoundError{Kind: "account mapping", ID: DocID(module, key), Err: shared.ErrMappingNotFound}
		}
		return AccountMapping{}, shared.StoreError("get account mapping", err)
	}
	return mapping, nil
}

// Put creates or replaces a mapping after checking the account exists.
func (r *repository) Put(ctx context.Context, scope docstore.Scope, mapping AccountMapping) (AccountMapping, error) {
	mapping.Module = strings.ToUpper(strings.TrimSpace(mapping.Module))
	mapping.Key = strings.TrimSpace(mapping.Key)
	if mapping.Module == "" || mapping.Key == "" || mapping.AccountID == "" {
		return AccountMapping{}, shared.Validation("mapping", "module, key and accountId required")
	}
	now := r.now().UTC()
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var account accounts.Account
		if err := tx.Get(ctx, accounts.Path(scope, mapping.AccountID), &account); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &shared.NotFoundError{Kind: "account", ID: mapping.AccountID}
			}
			return err
		}
		path := scope.Doc(Collection, DocID(mapping.Module, mapping.Key))
		var existing AccountMapping
		switch err := tx.Get(ctx, path, &existing); {
		case err == nil:
			mapping.CreatedAt = existing.CreatedAt
		case errors.Is(err, docstore.ErrNotFound):
			mapping.CreatedAt = now
		default:
			return err
		}
		mapping.UpdatedAt = now
		return tx.Set(path, mapping)
	})
	if err != nil {
		return AccountMapping{}, shared.StoreError("put account mapping", err)
	}
	return mapping, nil
}

func (r *repository) List(ctx context.Context, scope docstore.Scope) ([]AccountMapping, error) {
	snaps, err := r.store.Query(ctx, scope, docstore.Query{Collection: Collection})
	if err != nil {
		return nil, shared.StoreError("list account mappings", err)
	}
	out := make([]AccountMapping, 0, len(snaps))
	for _, snap := range snaps {
		var m AccountMapping
		if err := snap.DataTo(&m); err != nil {
			return nil, fmt.Errorf("mappings: decode %s: %w", snap.Path, err)
		}
		out = append(out, m)
	}
	return out, nil
}
