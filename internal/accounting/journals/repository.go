package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Repository encapsulates store operations for journals.
type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (JournalEntry, error)
	// ListPosted returns posted entries with from <= entryDate <= to, oldest first.
	ListPosted(ctx context.Context, scope docstore.Scope, from, to time.Time) ([]JournalEntry, error)
	List(ctx context.Context, scope docstore.Scope, limit int) ([]JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the documents a posting touches inside one transaction.
type TxRepository interface {
	accounts.TxRepository
	periods.TxRepository
	GetEntry(ctx context.Context, scope docstore.Scope, id string) (JournalEntry, error)
	PutEntry(scope docstore.Scope, entry JournalEntry) error
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses a journal entry document.
func Path(scope docstore.Scope, id string) docstore.Path {
	return scope.Doc(Collection, id)
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, id string) (JournalEntry, error) {
	var entry JournalEntry
	if err := r.store.Get(ctx, Path(scope, id), &entry); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *repository) ListPosted(ctx context.Context, scope docstore.Scope, from, to time.Time) ([]JournalEntry, error) {
	filters := []docstore.Filter{docstore.Where("status", docstore.OpEq, string(JournalStatusPosted))}
	if !from.IsZero() {
		filters = append(filters, docstore.Where("entryDate", docstore.OpGte, from))
	}
	if !to.IsZero() {
		filters = append(filters, docstore.Where("entryDate", docstore.OpLte, to))
	}
	return r.query(ctx, scope, docstore.Query{Collection: Collection, Filters: filters, OrderBy: "entryDate"})
}

func (r *repository) List(ctx context.Context, scope docstore.Scope, limit int) ([]JournalEntry, error) {
	return r.query(ctx, scope, docstore.Query{Collection: Collection, OrderBy: "entryDate", Descending: true, Limit: limit})
}

func (r *repository) query(ctx context.Context, scope docstore.Scope, q docstore.Query) ([]JournalEntry, error) {
	snaps, err := r.store.Query(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	entries := make([]JournalEntry, 0, len(snaps))
	for _, snap := range snaps {
		var e JournalEntry
		if err := snap.DataTo(&e); err != nil {
			return nil, fmt.Errorf("journals: decode %s: %w", snap.Path, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	accounts accounts.TxRepository
	ledger   periods.TxRepository
	tx       docstore.Tx
}

// NewTxRepository adapts a raw transaction so other packages can post
// journal entries inside their own transactions.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepository{
		accounts: accounts.NewTxRepository(tx),
		ledger:   periods.NewTxRepository(tx),
		tx:       tx,
	}
}

func (t *txRepository) GetAccount(ctx context.Context, scope docstore.Scope, id string) (accounts.Account, error) {
	return t.accounts.GetAccount(ctx, scope, id)
}

func (t *txRepository) PutAccount(scope docstore.Scope, account accounts.Account) error {
	return t.accounts.PutAccount(scope, account)
}

func (t *txRepository) CodeOwner(ctx context.Context, scope docstore.Scope, code string) (string, error) {
	return t.accounts.CodeOwner(ctx, scope, code)
}

func (t *txRepository) ClaimCode(scope docstore.Scope, code, accountID string) error {
	return t.accounts.ClaimCode(scope, code, accountID)
}

func (t *txRepository) GetSummary(ctx context.Context, scope docstore.Scope, key periods.Key) (periods.Summary, error) {
	return t.ledger.GetSummary(ctx, scope, key)
}

func (t *txRepository) PutSummary(scope docstore.Scope, s periods.Summary) error {
	return t.ledger.PutSummary(scope, s)
}

func (t *txRepository) GetEntry(ctx context.Context, scope docstore.Scope, id string) (JournalEntry, error) {
	var entry JournalEntry
	if err := t.tx.Get(ctx, Path(scope, id), &entry); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (t *txRepository) PutEntry(scope docstore.Scope, entry JournalEntry) error {
	entry.TotalDebit = entry.TotalDebit.Round(2)
	entry.TotalCredit = entry.TotalCredit.Round(2)
	return t.tx.Set(Path(scope, entry.ID), entry)
}
