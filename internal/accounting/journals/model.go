package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Collection holds journal entry documents.
const Collection = "journal_entries"

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "draft"
	JournalStatusPosted JournalStatus = "posted"
)

// JournalEntry is an append-only, balanced set of postings.
type JournalEntry struct {
	ID             string          `json:"entryId"`
	Number         string          `json:"entryNumber"`
	Date           time.Time       `json:"entryDate"`
	Description    string          `json:"description,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	ReferenceType  string          `json:"referenceType,omitempty"`
	Status         JournalStatus   `json:"status"`
	Lines          []accounts.Line `json:"lineItems"`
	TotalDebit     decimal.Decimal `json:"totalDebit"`
	TotalCredit    decimal.Decimal `json:"totalCredit"`
	IdempotencyKey string          `json:"idempotencyKey"`
	RequestHash    string          `json:"requestHash"`
	ReversalOf     string          `json:"reversalOf,omitempty"`
	ReversedBy     string          `json:"reversedBy,omitempty"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	PostedBy       string          `json:"postedBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	PostedAt       *time.Time      `json:"postedAt,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsPosted reports whether the entry's effects were applied.
func (e JournalEntry) IsPosted() bool {
	return e.Status == JournalStatusPosted
}
