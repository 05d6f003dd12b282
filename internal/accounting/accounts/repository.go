package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Collections owned by the registry.
const (
	Collection     = "accounts"
	CodeCollection = "account_codes"
)

// codeClaim reserves an account code for one account id.
type codeClaim struct {
	AccountID string `json:"accountId"`
}

// Repository encapsulates store operations for accounts.
type Repository interface {
	Get(ctx context.Context, scope docstore.Scope, id string) (Account, error)
	List(ctx context.Context, scope docstore.Scope, activeOnly bool) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetAccount(ctx context.Context, scope docstore.Scope, id string) (Account, error)
	PutAccount(scope docstore.Scope, account Account) error
	CodeOwner(ctx context.Context, scope docstore.Scope, code string) (string, error)
	ClaimCode(scope docstore.Scope, code, accountID string) error
}

type repository struct {
	store docstore.Store
}

// NewRepository returns a docstore backed Repository.
func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

// Path addresses an account document.
func Path(scope docstore.Scope, id string) docstore.Path {
	return scope.Doc(Collection, id)
}

func (r *repository) Get(ctx context.Context, scope docstore.Scope, id string) (Account, error) {
	var account Account
	if err := r.store.Get(ctx, Path(scope, id), &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (r *repository) List(ctx context.Context, scope docstore.Scope, activeOnly bool) ([]Account, error) {
	q := docstore.Query{Collection: Collection, OrderBy: "accountCode"}
	if activeOnly {
		q.Filters = append(q.Filters, docstore.Where("isActive", docstore.OpEq, true))
	}
	snaps, err := r.store.Query(ctx, scope, q)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(snaps))
	for _, snap := range snaps {
		var a Account
		if err := snap.DataTo(&a); err != nil {
			return nil, fmt.Errorf("accounts: decode %s: %w", snap.Path, err)
		}
		out = append(out, a)
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

// NewTxRepository adapts a raw transaction, letting other packages read and
// stage accounts inside their own transactions.
func NewTxRepository(tx docstore.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (t *txRepository) GetAccount(ctx context.Context, scope docstore.Scope, id string) (Account, error) {
	var account Account
	if err := t.tx.Get(ctx, Path(scope, id), &account); err != nil {
		return Account{}, err
	}
	return account, nil
}

func (t *txRepository) PutAccount(scope docstore.Scope, account Account) error {
	account.Balance = account.Balance.Round(2)
	return t.tx.Set(Path(scope, account.ID), account)
}

func (t *txRepository) CodeOwner(ctx context.Context, scope docstore.Scope, code string) (string, error) {
	var claim codeClaim
	err := t.tx.Get(ctx, scope.Doc(CodeCollection, code), &claim)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return claim.AccountID, nil
}

func (t *txRepository) ClaimCode(scope docstore.Scope, code, accountID string) error {
	return t.tx.Set(scope.Doc(CodeCollection, code), codeClaim{AccountID: accountID})
}
