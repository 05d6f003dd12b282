package ar

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

// Handler exposes AR invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listPending)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/reconcile", h.reconcile)
	})
}

// CreateInvoiceRequest is the JSON body accepted by create.
type CreateInvoiceRequest struct {
	Invoice      InvoiceInput             `json:"invoice"`
	JournalEntry *journals.JournalRequest `json:"journalEntry"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := internalShared.ActorFromContext(r.Context())
	if req.Invoice.CreatedBy == "" {
		req.Invoice.CreatedBy = actor
	}
	journal, err := req.JournalEntry.ToRequest(actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CreateInvoiceFromSale(r.Context(), scope, req.Invoice, journal)
	if errors.Is(err, shared.ErrPartialCompletion) {
		h.logger.Warn("invoice created with accounting pending", slog.String("invoice_id", inv.ID), slog.Any("error", err))
		httpx.Accepted(w, inv, err)
		return
	}
	if err != nil {
		h.logger.Warn("create invoice", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoices, err := h.service.ListPendingAccounting(r.Context(), scope)
	if err != nil {
		h.logger.Error("list pending invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.ReconcileInvoicePosting(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("reconcile invoice", slog.String("invoice_id", chi.URLParam(r, "id")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
