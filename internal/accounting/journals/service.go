package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, scope docstore.Scope, log internalShared.AuditLog) error
}

// CachePort invalidates derived reports once postings commit.
type CachePort interface {
	Invalidate(ctx context.Context, scope docstore.Scope) error
}

type Service struct {
	repo    Repository
	audit   AuditPort
	cache   CachePort
	metrics *observability.LedgerMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, audit AuditPort, cache CachePort, metrics *observability.LedgerMetrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get loads an entry by id.
func (s *Service) Get(ctx context.Context, scope docstore.Scope, id string) (JournalEntry, error) {
	entry, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return JournalEntry{}, &shared.NotFoundError{Kind: "journal entry", ID: id}
		}
		return JournalEntry{}, shared.StoreError("get journal entry", err)
	}
	return entry, nil
}

// FindByKey loads the entry created with an idempotency key, if any.
func (s *Service) FindByKey(ctx context.Context, scope docstore.Scope, key string) (JournalEntry, error) {
	return s.Get(ctx, scope, EntryID(scope, key))
}

// List returns the most recent entries.
func (s *Service) List(ctx context.Context, scope docstore.Scope, limit int) ([]JournalEntry, error) {
	entries, err := s.repo.List(ctx, scope, limit)
	return entries, shared.StoreError("list journal entries", err)
}

// ListPosted returns posted entries dated within [from, to].
func (s *Service) ListPosted(ctx context.Context, scope docstore.Scope, from, to time.Time) ([]JournalEntry, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, shared.Validation("to", "must not be before from")
	}
	entries, err := s.repo.ListPosted(ctx, scope, from, to)
	return entries, shared.StoreError("list posted entries", err)
}

// PostJournalEntry validates the request, then atomically writes the entry
// together with its account balance and ledger summary effects. Replaying a
// request with the same idempotency key returns the stored entry unchanged.
func (s *Service) PostJournalEntry(ctx context.Context, scope docstore.Scope, input PostingInput) (JournalEntry, error) {
	if err := scope.Validate(); err != nil {
		s.metrics.ObservePosting("entry", observability.OutcomeRejected)
		return JournalEntry{}, shared.Validation("scope", err.Error())
	}
	totals, err := input.Validate()
	if err != nil {
		s.metrics.ObservePosting("entry", observability.OutcomeRejected)
		return JournalEntry{}, err
	}
	draft := s.buildEntry(scope, input, totals, s.now().UTC())

	var (
		entry    JournalEntry
		replayed bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, replayed, err = PostInTx(ctx, tx, scope, draft)
		return err
	})
	if err != nil {
		return JournalEntry{}, s.fail("entry", "post journal entry", err)
	}
	s.afterCommit(ctx, scope, "journal.post", entry, replayed, map[string]any{
		"number":         entry.Number,
		"reference":      entry.Reference,
		"reference_type": entry.ReferenceType,
	})
	return entry, nil
}

// PostDraft applies a draft entry's effects and flips it to posted.
func (s *Service) PostDraft(ctx context.Context, scope docstore.Scope, id, actor string) (JournalEntry, error) {
	now := s.now().UTC()
	var (
		entry   JournalEntry
		already bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntry(ctx, scope, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &shared.NotFoundError{Kind: "journal entry", ID: id}
			}
			return err
		}
		if current.IsPosted() {
			entry, already = current, true
			return nil
		}
		already = false
		if err := applyEffects(ctx, tx, scope, current, now); err != nil {
			return err
		}
		current.Status = JournalStatusPosted
		current.PostedAt = &now
		current.UpdatedAt = now
		current.PostedBy = actor
		if actor == "" {
			current.PostedBy = current.CreatedBy
		}
		entry = current
		return tx.PutEntry(scope, current)
	})
	if err != nil {
		return JournalEntry{}, s.fail("draft", "post draft entry", err)
	}
	s.afterCommit(ctx, scope, "journal.post_draft", entry, already, nil)
	return entry, nil
}

// ReverseEntry posts a mirror entry with debits and credits swapped and links
// both entries. Reversing twice returns the first reversal.
func (s *Service) ReverseEntry(ctx context.Context, scope docstore.Scope, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == "" {
		return JournalEntry{}, shared.Validation("entryId", "required")
	}
	now := s.now().UTC()
	var (
		reversal JournalEntry
		replayed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntry(ctx, scope, input.EntryID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &shared.NotFoundError{Kind: "journal entry", ID: input.EntryID}
			}
			return err
		}
		if original.ReversalOf != "" {
			return shared.Validationf(shared.ErrInvalidStatus, "entryId", "entry %s is itself a reversal", original.ID)
		}
		if original.ReversedBy != "" {
			reversal, err = tx.GetEntry(ctx, scope, original.ReversedBy)
			replayed = true
			return err
		}
		if !original.IsPosted() {
			return shared.Validationf(shared.ErrInvalidStatus, "entryId", "entry %s is not posted", original.ID)
		}
		posting := reversalInput(original, input)
		totals, err := posting.Validate()
		if err != nil {
			return err
		}
		draft := s.buildEntry(scope, posting, totals, now)
		draft.ReversalOf = original.ID
		reversal, replayed, err = PostInTx(ctx, tx, scope, draft)
		if err != nil {
			return err
		}
		original.ReversedBy = reversal.ID
		original.UpdatedAt = now
		return tx.PutEntry(scope, original)
	})
	if err != nil {
		return JournalEntry{}, s.fail("reversal", "reverse journal entry", err)
	}
	s.afterCommit(ctx, scope, "journal.reverse", reversal, replayed, map[string]any{"reversal_of": input.EntryID})
	return reversal, nil
}

func (s *Service) buildEntry(scope docstore.Scope, input PostingInput, totals accounts.Totals, now time.Time) JournalEntry {
	id := EntryID(scope, input.IdempotencyKey)
	number := input.Number
	if number == "" {
		number = id
	}
	entry := JournalEntry{
		ID:             id,
		Number:         number,
		Date:           input.Date.UTC(),
		Description:    input.Description,
		Reference:      input.Reference,
		ReferenceType:  input.ReferenceType,
		Status:         input.Status,
		Lines:          input.Lines,
		TotalDebit:     totals.Debit,
		TotalCredit:    totals.Credit,
		IdempotencyKey: input.IdempotencyKey,
		RequestHash:    input.Hash(),
		CreatedBy:      input.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if entry.IsPosted() {
		entry.PostedAt = &now
		entry.PostedBy = entry.CreatedBy
	}
	return entry
}

// PostInTx writes a validated entry inside an existing transaction. It reads
// the entry document first: an identical earlier request is returned with
// replayed set and no effects, a different request under the same key is
// rejected. It is a pure function of the transaction's reads, so the store
// may re-run it on conflict.
func PostInTx(ctx context.Context, tx TxRepository, scope docstore.Scope, entry JournalEntry) (JournalEntry, bool, error) {
	existing, err := tx.GetEntry(ctx, scope, entry.ID)
	switch {
	case err == nil:
		if existing.RequestHash != entry.RequestHash {
			return JournalEntry{}, false, shared.Validationf(shared.ErrIdempotencyMismatch, "idempotencyKey",
				"key %q already used for entry %s", entry.IdempotencyKey, existing.ID)
		}
		return existing, true, nil
	case !errors.Is(err, docstore.ErrNotFound):
		return JournalEntry{}, false, err
	}
	if entry.IsPosted() {
		if err := applyEffects(ctx, tx, scope, entry, entry.UpdatedAt); err != nil {
			return JournalEntry{}, false, err
		}
	}
	if err := tx.PutEntry(scope, entry); err != nil {
		return JournalEntry{}, false, err
	}
	return entry, false, nil
}

// applyEffects moves account balances and the monthly summaries for every line.
func applyEffects(ctx context.Context, tx TxRepository, scope docstore.Scope, entry JournalEntry, now time.Time) error {
	type touched struct {
		account accounts.Account
		opening decimal.Decimal
		summary *periods.Summary
	}
	var order []string
	cache := make(map[string]*touched, len(entry.Lines))
	for _, line := range entry.Lines {
		if _, ok := cache[line.AccountID]; ok {
			continue
		}
		account, err := tx.GetAccount(ctx, scope, line.AccountID)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return &shared.NotFoundError{Kind: "account", ID: line.AccountID}
			}
			return err
		}
		if !account.IsActive {
			return &shared.InactiveAccountError{AccountID: account.ID}
		}
		if !account.Type.Valid() {
			return fmt.Errorf("accounting: account %s has unknown type %q", account.ID, account.Type)
		}
		cache[line.AccountID] = &touched{account: account, opening: account.Balance}
		order = append(order, line.AccountID)
	}

	for _, line := range entry.Lines {
		t := cache[line.AccountID]
		t.account.Balance = accounts.ApplyDelta(t.account.Balance, t.account.Type, line.Debit, line.Credit)
		if t.summary == nil {
			key := periods.KeyFor(line.AccountID, entry.Date)
			summary, err := tx.GetSummary(ctx, scope, key)
			switch {
			case errors.Is(err, docstore.ErrNotFound):
				before := t.account
				before.Balance = t.opening
				summary = periods.Open(key, before, now)
			case err != nil:
				return err
			}
			t.summary = &summary
		}
		next := t.summary.Apply(line.Debit, line.Credit, now)
		t.summary = &next
	}

	for _, id := range order {
		t := cache[id]
		t.account.UpdatedAt = now
		if err := tx.PutAccount(scope, t.account); err != nil {
			return err
		}
		if err := tx.PutSummary(scope, *t.summary); err != nil {
			return err
		}
	}
	return nil
}

func reversalInput(original JournalEntry, input ReverseInput) PostingInput {
	date := original.Date
	if input.TargetDate != nil {
		date = *input.TargetDate
	}
	lines := make([]accounts.Line, 0, len(original.Lines))
	for _, line := range original.Lines {
		lines = append(lines, accounts.Line{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return PostingInput{
		IdempotencyKey: "reverse:" + original.ID,
		Date:           date,
		Description:    defaultReversalMemo(input.Memo, original.Number),
		Reference:      original.ID,
		ReferenceType:  "journal_reversal",
		Status:         JournalStatusPosted,
		CreatedBy:      input.ActorID,
		Lines:          lines,
	}
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %s", number)
}

func (s *Service) fail(kind, op string, err error) error {
	err = shared.StoreError(op, err)
	outcome := observability.OutcomeFailed
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInactiveAccount) {
		outcome = observability.OutcomeRejected
	}
	s.metrics.ObservePosting(kind, outcome)
	return err
}

// afterCommit runs the best-effort side effects of a committed posting.
func (s *Service) afterCommit(ctx context.Context, scope docstore.Scope, action string, entry JournalEntry, replayed bool, meta map[string]any) {
	switch {
	case replayed:
		s.metrics.ObservePosting("entry", observability.OutcomeReplayed)
		return
	case entry.IsPosted():
		s.metrics.ObservePosting("entry", observability.OutcomePosted)
	default:
		s.metrics.ObservePosting("entry", observability.OutcomeDraft)
	}
	if s.audit != nil {
		actor := entry.CreatedBy
		if entry.PostedBy != "" {
			actor = entry.PostedBy
		}
		if err := s.audit.Record(ctx, scope, internalShared.AuditLog{
			ActorID:  actor,
			Action:   action,
			Entity:   "journal_entry",
			EntityID: entry.ID,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("journal audit record failed", slog.String("entry_id", entry.ID), slog.Any("error", err))
		}
	}
	if s.cache != nil && entry.IsPosted() {
		if err := s.cache.Invalidate(ctx, scope); err != nil {
			s.logger.Warn("report cache invalidation failed", slog.String("scope", scope.String()), slog.Any("error", err))
		}
	}
}
