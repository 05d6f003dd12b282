package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/income-statement", h.IncomeStatement)
	r.Get("/trial-balance", h.TrialBalance)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, err := h.service.GenerateBalanceSheet(r.Context(), scope, asOf)
	if err != nil {
		h.logger.Error("balance sheet", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vm)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
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
	vm, err := h.service.GenerateIncomeStatement(r.Context(), scope, from, to)
	if err != nil {
		h.logger.Error("income statement", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vm)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	now := time.Now().UTC()
	year, err := httpx.QueryInt(r, "year", now.Year())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	month, err := httpx.QueryInt(r, "month", int(now.Month()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	vm, err := h.service.GenerateTrialBalance(r.Context(), scope, year, time.Month(month))
	if err != nil {
		h.logger.Error("trial balance", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vm)
}
