package ar

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Repository provides docstore backed persistence for invoices.
type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (Invoice, error)
	ListByAccountingStatus(ctx context.Context, scope docstore.Scope, status AccountingStatus) ([]Invoice, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes invoice reads and writes inside a transaction.
type TxRepository interface {
	GetInvoice(ctx context.Context, scope docstore.Scope, id string) (Invoice, error)
	PutInvoice(scope docstore.Scope, inv Invoice) error
}

type repository struct {
	store docstore.Store
}

// NewRepository constructs a repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses an invoice document.
func Path(scope docstore.Scope, id string) docstore.Path {
	return scope.Doc(Collection, id)
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, id string) (Invoice, error) {
	var inv Invoice
	if err := r.store.Get(ctx, Path(scope, id), &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) ListByAccountingStatus(ctx context.Context, scope docstore.Scope, status AccountingStatus) ([]Invoice, error) {
	snaps, err := r.store.Query(ctx, scope, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("accountingStatus", docstore.OpEq, string(status))},
		OrderBy:    "createdAt",
	})
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, 0, len(snaps))
	for _, snap := range snaps {
		var inv Invoice
		if err := snap.DataTo(&inv); err != nil {
			return nil, fmt.Errorf("ar: decode %s: %w", snap.Path, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx docstore.Tx
}

// NewTxRepository adapts a raw transaction so payments can settle invoices
// inside their own transaction.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (t *txRepository) GetInvoice(ctx context.Context, scope docstore.Scope, id string) (Invoice, error) {
	var inv Invoice
	if err := t.tx.Get(ctx, Path(scope, id), &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (t *txRepository) PutInvoice(scope docstore.Scope, inv Invoice) error {
	return t.tx.Set(Path(scope, inv.ID), inv)
}
