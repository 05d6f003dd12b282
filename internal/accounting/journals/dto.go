package journals

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	IdempotencyKey string
	Number         string
	Date           time.Time
	Description    string
	Reference      string
	ReferenceType  string
	// Status defaults to posted.
	Status    JournalStatus
	CreatedBy string
	Lines     []accounts.Line
}

// Validate ensures posting input meets minimum criteria and returns the
// totals every later step uses. Line amounts are rounded to cents first so
// the stored lines always sum to the stored totals.
func (in *PostingInput) Validate() (accounts.Totals, error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.IdempotencyKey == "" {
		return accounts.Totals{}, shared.Validation("idempotencyKey", "required")
	}
	if in.Date.IsZero() {
		return accounts.Totals{}, shared.Validation("entryDate", "required")
	}
	if in.Date.UTC().Year() < 1900 || in.Date.UTC().Year() > 9999 {
		return accounts.Totals{}, shared.Validation("entryDate", "out of range")
	}
	switch in.Status {
	case "":
		in.Status = JournalStatusPosted
	case JournalStatusDraft, JournalStatusPosted:
	default:
		return accounts.Totals{}, shared.Validation("status", fmt.Sprintf("unknown status %q", in.Status))
	}
	lines := make([]accounts.Line, len(in.Lines))
	for i, line := range in.Lines {
		line.AccountID = strings.TrimSpace(line.AccountID)
		line.Debit = line.Debit.Round(2)
		line.Credit = line.Credit.Round(2)
		lines[i] = line
	}
	in.Lines = lines
	return accounts.ValidateEntry(in.Lines)
}

// EntryID derives the entry id from the scope and idempotency key so a
// retried request always addresses the same document.
func EntryID(scope docstore.Scope, key string) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("JE:%s:%s", scope, key))).String()
}

type hashedLine struct {
	AccountID string `json:"a"`
	Debit     string `json:"d"`
	Credit    string `json:"c"`
}

type hashedRequest struct {
	Number        string       `json:"n"`
	Date          string       `json:"t"`
	Description   string       `json:"m"`
	Reference     string       `json:"r"`
	ReferenceType string       `json:"rt"`
	Status        string       `json:"s"`
	Lines         []hashedLine `json:"l"`
}

// Hash fingerprints the payload so a reused key with a different body is detected.
func (in PostingInput) Hash() string {
	req := hashedRequest{
		Number:        in.Number,
		Date:          in.Date.UTC().Format(time.RFC3339Nano),
		Description:   in.Description,
		Reference:     in.Reference,
		ReferenceType: in.ReferenceType,
		Status:        string(in.Status),
		Lines:         make([]hashedLine, 0, len(in.Lines)),
	}
	for _, line := range in.Lines {
		req.Lines = append(req.Lines, hashedLine{
			AccountID: line.AccountID,
			Debit:     line.Debit.StringFixed(2),
			Credit:    line.Credit.StringFixed(2),
		})
	}
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID    string
	ActorID    string
	Memo       string
	TargetDate *time.Time
}

// Request is the journal metadata a caller attaches to an invoice or payment.
// Lines are optional; when empty the integration hooks derive them from the
// account mappings.
type Request struct {
	Date        *time.Time      `json:"entryDate,omitempty"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	Lines       []accounts.Line `json:"lineItems,omitempty"`
}
