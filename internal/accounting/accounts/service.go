package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// CachePort drops cached reports when the set of active accounts changes.
type CachePort interface {
	Invalidate(ctx context.Context, scope docstore.Scope) error
}

// Service manages chart-of-accounts metadata. Balances are never writable here.
type Service struct {
	repo   Repository
	cache  CachePort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: slog.Default(), now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithCache makes Create and Deactivate invalidate the scope's report cache.
func (s *Service) WithCache(cache CachePort, logger *slog.Logger) {
	s.cache = cache
	if logger != nil {
		s.logger = logger
	}
}

// Create opens a new account with a zero balance. The code must be unique within the scope.
func (s *Service) Create(ctx context.Context, scope docstore.Scope, input CreateInput) (Account, error) {
	if err := scope.Validate(); err != nil {
		return Account{}, shared.Validation("scope", err.Error())
	}
	accountType, err := input.Validate()
	if err != nil {
		return Account{}, err
	}
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UTC()
	account := Account{
		ID:        id,
		Code:      input.Code,
		Name:      input.Name,
		Type:      accountType,
		Subtype:   input.Subtype,
		ParentID:  input.ParentID,
		Currency:  input.Currency,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		owner, err := tx.CodeOwner(ctx, scope, account.Code)
		if err != nil {
			return err
		}
		if owner != "" {
			return shared.Validation("accountCode", "already used by account "+owner)
		}
		if _, err := tx.GetAccount(ctx, scope, account.ID); err == nil {
			return shared.Validation("accountId", "already exists")
		} else if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if account.ParentID != "" {
			if _, err := tx.GetAccount(ctx, scope, account.ParentID); err != nil {
				if errors.Is(err, docstore.ErrNotFound) {
					return &shared.NotFoundError{Kind: "account", ID: account.ParentID}
				}
				return err
			}
		}
		if err := tx.ClaimCode(scope, account.Code, account.ID); err != nil {
			return err
		}
		return tx.PutAccount(scope, account)
	})
	if err != nil {
		return Account{}, shared.StoreError("create account", err)
	}
	s.invalidate(ctx, scope)
	return account, nil
}

func (s *Service) Get(ctx context.Context, scope docstore.Scope, id string) (Account, error) {
	account, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Account{}, &shared.NotFoundError{Kind: "account", ID: id}
		}
		return Account{}, shared.StoreError("get account", err)
	}
	return account, nil
}

func (s *Service) List(ctx context.Context, scope docstore.Scope, activeOnly bool) ([]Account, error) {
	accounts, err := s.repo.List(ctx, scope, activeOnly)
	if err != nil {
		return nil, shared.StoreError("list accounts", err)
	}
	return accounts, nil
}

// Deactivate soft-deletes an account; further postings against it fail.
func (s *Service) Deactivate(ctx context.Context, scope docstore.Scope, id string) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccount(ctx, scope, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &shared.NotFoundError{Kind: "account", ID: id}
			}
			return err
		}
		current.IsActive = false
		current.UpdatedAt = s.now().UTC()
		account = current
		return tx.PutAccount(scope, current)
	})
	if err != nil {
		return Account{}, shared.StoreError("deactivate account", err)
	}
	s.invalidate(ctx, scope)
	return account, nil
}

func (s *Service) invalidate(ctx context.Context, scope docstore.Scope) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, scope); err != nil {
		s.logger.Warn("report cache invalidation failed", slog.String("scope", scope.String()), slog.Any("error", err))
	}
}
