package payments

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPending)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
	r.Post("/{id}/reconcile", h.reconcile)
}

// RecordPaymentRequest is the JSON body accepted by record.
type RecordPaymentRequest struct {
	Payment      PaymentInput             `json:"payment"`
	JournalEntry *journals.JournalRequest `json:"journalEntry"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Payment.IdempotencyKey == "" {
		req.Payment.IdempotencyKey = r.Header.Get(httpx.HeaderIdempotencyKey)
	}
	actor := internalShared.ActorFromContext(r.Context())
	if req.Payment.CreatedBy == "" {
		req.Payment.CreatedBy = actor
	}
	journal, err := req.JournalEntry.ToRequest(actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), scope, req.Payment, journal)
	if errors.Is(err, shared.ErrPartialCompletion) {
		h.logger.Warn("payment recorded with accounting pending", slog.String("payment_id", payment.ID), slog.Any("error", err))
		httpx.Accepted(w, payment, err)
		return
	}
	if err != nil {
		h.logger.Warn("record payment", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListPendingAccounting(r.Context(), scope)
	if err != nil {
		h.logger.Error("list pending payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": list})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.ReconcilePaymentPosting(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("reconcile payment", slog.String("payment_id", chi.URLParam(r, "id")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}
