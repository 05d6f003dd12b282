package payments

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/ap"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Repository encapsulates store operations for payments.
type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (Payment, error)
	ListByAccountingStatus(ctx context.Context, scope docstore.Scope, status ar.AccountingStatus) ([]Payment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository covers the payment and the source documents it settles, all
// inside one transaction.
type TxRepository interface {
	GetPayment(ctx context.Context, scope docstore.Scope, id string) (Payment, error)
	PutPayment(scope docstore.Scope, p Payment) error
	ar.TxRepository
	ap.TxRepository
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses a payment document.
func Path(scope docstore.Scope, id string) docstore.Path {
	return scope.Doc(Collection, id)
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, id string) (Payment, error) {
	var p Payment
	if err := r.store.Get(ctx, Path(scope, id), &p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *repository) ListByAccountingStatus(ctx context.Context, scope docstore.Scope, status ar.AccountingStatus) ([]Payment, error) {
	snaps, err := r.store.Query(ctx, scope, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("accountingStatus", docstore.OpEq, string(status))},
		OrderBy:    "createdAt",
	})
	if err != nil {
		return nil, err
	}
	out := make([]Payment, 0, len(snaps))
	for _, snap := range snaps {
		var p Payment
		if err := snap.DataTo(&p); err != nil {
			return nil, fmt.Errorf("payments: decode %s: %w", snap.Path, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, &txRepository{
			TxRepository: ar.NewTxRepository(tx),
			bills:        ap.NewTxRepository(tx),
			tx:           tx,
		})
	})
}

type txRepository struct {
	ar.TxRepository
	bills ap.TxRepository
	tx    docstore.Tx
}

func (t *txRepository) GetBill(ctx context.Context, scope docstore.Scope, id string) (ap.Bill, error) {
	return t.bills.GetBill(ctx, scope, id)
}

func (t *txRepository) PutBill(scope docstore.Scope, bill ap.Bill) error {
	return t.bills.PutBill(scope, bill)
}

func (t *txRepository) GetPayment(ctx context.Context, scope docstore.Scope, id string) (Payment, error) {
	var p Payment
	if err := t.tx.Get(ctx, Path(scope, id), &p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (t *txRepository) PutPayment(scope docstore.Scope, p Payment) error {
	return t.tx.Set(Path(scope, p.ID), p)
}
