package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, key Key) (Summary, error)
	ListMonth(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]Summary, error)
	// ListUpTo returns every summary at or before the given month.
	ListUpTo(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]Summary, error)
	ListAccount(ctx context.Context, scope docstore.Scope, accountID string) ([]Summary, error)
	ListAll(ctx context.Context, scope docstore.Scope) ([]Summary, error)
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses the summary document for key.
func Path(scope docstore.Scope, key Key) docstore.Path {
	return scope.Doc(Collection, key.DocID())
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, key Key) (Summary, error) {
	var s Summary
	if err := r.store.Get(ctx, Path(scope, key), &s); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (r *repository) ListMonth(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]Summary, error) {
	return r.query(ctx, scope, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			docstore.Where("period", docstore.OpEq, periodLabel(year, month)),
		},
		OrderBy: "accountId",
	})
}

func (r *repository) ListUpTo(ctx context.Context, scope docstore.Scope, year int, month time.Month) ([]Summary, error) {
	return r.query(ctx, scope, docstore.Query{
		Collection: Collection,
		Filters: []docstore.Filter{
			docstore.Where("period", docstore.OpLte, periodLabel(year, month)),
		},
		OrderBy: "period",
	})
}

func (r *repository) ListAccount(ctx context.Context, scope docstore.Scope, accountID string) ([]Summary, error) {
	return r.query(ctx, scope, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("accountId", docstore.OpEq, accountID)},
		OrderBy:    "period",
	})
}

func (r *repository) ListAll(ctx context.Context, scope docstore.Scope) ([]Summary, error) {
	return r.query(ctx, scope, docstore.Query{Collection: Collection, OrderBy: "period"})
}

func (r *repository) query(ctx context.Context, scope docstore.Scope, q docstore.Query) ([]Summary, error) {
	snaps, err := r.store.Query(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(snaps))
	for _, snap := range snaps {
		var s Summary
		if err := snap.DataTo(&s); err != nil {
			return nil, fmt.Errorf("periods: decode %s: %w", snap.Path, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func periodLabel(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// TxRepository reads and stages summaries inside a posting transaction.
type TxRepository interface {
	GetSummary(ctx context.Context, scope docstore.Scope, key Key) (Summary, error)
	PutSummary(scope docstore.Scope, s Summary) error
}

type txRepository struct {
	tx docstore.Tx
}

// NewTxRepository adapts a raw transaction.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (t *txRepository) GetSummary(ctx context.Context, scope docstore.Scope, key Key) (Summary, error) {
	var s Summary
	if err := t.tx.Get(ctx, Path(scope, key), &s); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (t *txRepository) PutSummary(scope docstore.Scope, s Summary) error {
	return t.tx.Set(Path(scope, s.Key()), s.Rounded())
}
