package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/ar"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// Collection holds payment documents.
const Collection = "payments"

// SourceType names the kind of document a payment settles.
type SourceType string

const (
	SourceNone    SourceType = ""
	SourceInvoice SourceType = "invoice"
	SourceBill    SourceType = "bill"
)

// Status of a payment document.
type Status string

const StatusCompleted Status = "completed"

// Payment model.
type Payment struct {
	ID               string              `json:"paymentId"`
	IdempotencyKey   string              `json:"idempotencyKey,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	SourceType       SourceType          `json:"sourceType,omitempty"`
	SourceID         string              `json:"sourceId,omitempty"`
	PaymentMethod    string              `json:"paymentMethod,omitempty"`
	Reference        string              `json:"reference,omitempty"`
	PaidAt           time.Time           `json:"paidAt"`
	Status           Status              `json:"status"`
	AccountingStatus ar.AccountingStatus `json:"accountingStatus"`
	JournalEntryID   string              `json:"journalEntryId,omitempty"`
	PendingJournal   *journals.Request   `json:"pendingJournal,omitempty"`
	AccountingError  string              `json:"accountingError,omitempty"`
	CreatedBy        string              `json:"createdBy,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Record is the history entry the payment leaves on its source.
func (p Payment) Record() ar.PaymentRecord {
	return ar.PaymentRecord{PaymentID: p.ID, Amount: p.Amount, Method: p.PaymentMethod, PaidAt: p.PaidAt}
}

// samePayload reports whether a replayed request matches the stored payment.
func (p Payment) samePayload(other Payment) bool {
	return p.Amount.Equal(other.Amount) && p.SourceType == other.SourceType && p.SourceID == other.SourceID
}

// PaymentInput for recording payments.
type PaymentInput struct {
	ID             string          `json:"paymentId" validate:"omitempty,max=64,excludesall=/"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"omitempty,max=200"`
	Amount         decimal.Decimal `json:"amount"`
	SourceType     SourceType      `json:"sourceType" validate:"omitempty,max=32"`
	SourceID       string          `json:"sourceId" validate:"omitempty,max=64"`
	PaymentMethod  string          `json:"paymentMethod" validate:"omitempty,max=64"`
	Reference      string          `json:"reference" validate:"omitempty,max=200"`
	PaidAt         time.Time       `json:"paidAt"`
	CreatedBy      string          `json:"createdBy"`
}

// Validate rejects non-positive amounts and unknown or incomplete sources.
func (in *PaymentInput) Validate() error {
	in.Amount = in.Amount.Round(2)
	if !in.Amount.IsPositive() {
		return shared.Validation("amount", "must be greater than zero")
	}
	in.SourceID = strings.TrimSpace(in.SourceID)
	switch in.SourceType {
	case SourceNone:
		if in.SourceID != "" {
			return shared.Validation("sourceType", "required when sourceId is set")
		}
	case SourceInvoice, SourceBill:
		if in.SourceID == "" {
			return shared.Validation("sourceId", "required")
		}
	default:
		return shared.Validation("sourceType", fmt.Sprintf("unknown source type %q", in.SourceType))
	}
	return nil
}

// PaymentID derives the payment id. An idempotency key maps to a stable id.
func PaymentID(scope docstore.Scope, in PaymentInput) string {
	switch {
	case strings.TrimSpace(in.ID) != "":
		return strings.TrimSpace(in.ID)
	case in.IdempotencyKey != "":
		return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PAY:%s:%s", scope, in.IdempotencyKey))).String()
	}
	return uuid.NewString()
}
