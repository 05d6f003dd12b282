package journals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type LineRequest struct {
	AccountID    string          `json:"accountId" validate:"required"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
	Description  string          `json:"description" validate:"max=500"`
}

// PostRequest is the JSON body accepted by Create.
type PostRequest struct {
	IdempotencyKey string        `json:"idempotencyKey" validate:"max=200"`
	EntryNumber    string        `json:"entryNumber" validate:"max=64"`
	EntryDate      string        `json:"entryDate" validate:"required"`
	Description    string        `json:"description" validate:"max=500"`
	Reference      string        `json:"reference" validate:"max=200"`
	ReferenceType  string        `json:"referenceType" validate:"max=64"`
	Status         string        `json:"status" validate:"omitempty,oneof=draft posted"`
	LineItems      []LineRequest `json:"lineItems" validate:"required,min=1,dive"`
}

// JournalRequest is the optional journal block on invoice and payment requests.
type JournalRequest struct {
	EntryDate   string        `json:"entryDate"`
	Description string        `json:"description" validate:"max=500"`
	Reference   string        `json:"reference" validate:"max=200"`
	LineItems   []LineRequest `json:"lineItems" validate:"omitempty,dive"`
}

// ToRequest converts the block; a nil block yields a nil request.
func (req *JournalRequest) ToRequest(actor string) (*Request, error) {
	if req == nil {
		return nil, nil
	}
	out := &Request{Description: req.Description, Reference: req.Reference, CreatedBy: actor}
	if req.EntryDate != "" {
		date, err := httpx.ParseDate(req.EntryDate)
		if err != nil {
			return nil, err
		}
		out.Date = &date
	}
	for _, l := range req.LineItems {
		out.Lines = append(out.Lines, accounts.Line{
			AccountID:   l.AccountID,
			Debit:       l.DebitAmount,
			Credit:      l.CreditAmount,
			Description: l.Description,
		})
	}
	return out, nil
}

type reverseRequest struct {
	EntryDate string `json:"entryDate"`
	Memo      string `json:"memo" validate:"max=500"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := httpx.QueryDate(r, "from")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDateEnd(r, "to")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var entries []JournalEntry
	if from.IsZero() && to.IsZero() {
		limit, lerr := httpx.QueryInt(r, "limit", 50)
		if lerr != nil {
			httpx.RespondError(w, lerr)
			return
		}
		entries, err = h.service.List(r.Context(), scope, limit)
	} else {
		entries, err = h.service.ListPosted(r.Context(), scope, from, to)
	}
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journalEntries": entries})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(httpx.HeaderIdempotencyKey)
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.toInput(shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.PostJournalEntry(r.Context(), scope, input)
	if err != nil {
		h.logger.Warn("post journal entry", slog.String("scope", scope.String()), slog.String("idempotency_key", input.IdempotencyKey), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.PostDraft(r.Context(), scope, chi.URLParam(r, "id"), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Warn("post draft entry", slog.String("entry_id", chi.URLParam(r, "id")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ReverseInput{
		EntryID: chi.URLParam(r, "id"),
		ActorID: shared.ActorFromContext(r.Context()),
		Memo:    req.Memo,
	}
	if req.EntryDate != "" {
		date, err := httpx.ParseDate(req.EntryDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		input.TargetDate = &date
	}
	reversal, err := h.service.ReverseEntry(r.Context(), scope, input)
	if err != nil {
		h.logger.Warn("reverse journal entry", slog.String("entry_id", input.EntryID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (req PostRequest) toInput(actor string) (PostingInput, error) {
	date, err := httpx.ParseDate(req.EntryDate)
	if err != nil {
		return PostingInput{}, err
	}
	lines := make([]accounts.Line, 0, len(req.LineItems))
	for _, l := range req.LineItems {
		lines = append(lines, accounts.Line{
			AccountID:   l.AccountID,
			Debit:       l.DebitAmount,
			Credit:      l.CreditAmount,
			Description: l.Description,
		})
	}
	return PostingInput{
		IdempotencyKey: req.IdempotencyKey,
		Number:         req.EntryNumber,
		Date:           date,
		Description:    req.Description,
		Reference:      req.Reference,
		ReferenceType:  req.ReferenceType,
		Status:         JournalStatus(req.Status),
		CreatedBy:      actor,
		Lines:          lines,
	}, nil
}
