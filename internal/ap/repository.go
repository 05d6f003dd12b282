package ap

import (
	"context"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Repository provides docstore backed persistence for bills.
type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (Bill, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes bill reads and writes inside a transaction.
type TxRepository interface {
	GetBill(ctx context.Context, scope docstore.Scope, id string) (Bill, error)
	PutBill(scope docstore.Scope, bill Bill) error
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses a bill document.
func Path(scope docstore.Scope, id string) docstore.Path {
	return scope.Doc(Collection, id)
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, id string) (Bill, error) {
	var bill Bill
	if err := r.store.Get(ctx, Path(scope, id), &bill); err != nil {
		return Bill{}, err
	}
	return bill, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx docstore.Tx
}

// NewTxRepository adapts a raw transaction for payment settlement.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (t *txRepository) GetBill(ctx context.Context, scope docstore.Scope, id string) (Bill, error) {
	var bill Bill
	if err := t.tx.Get(ctx, Path(scope, id), &bill); err != nil {
		return Bill{}, err
	}
	return bill, nil
}

func (t *txRepository) PutBill(scope docstore.Scope, bill Bill) error {
	return t.tx.Set(Path(scope, bill.ID), bill)
}
