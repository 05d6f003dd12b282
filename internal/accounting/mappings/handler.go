package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	repo      Repository
	logger    *slog.Logger
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validator: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Put)
	r.Get("/{module}/{key}", h.Get)
}

// PutRequest binds one mapping.
type PutRequest struct {
	Module    string `json:"module" validate:"required,max=32"`
	Key       string `json:"key" validate:"required,max=128"`
	AccountID string `json:"accountId" validate:"required,max=64,excludesall=/"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	all, err := h.repo.List(r.Context(), scope)
	if err != nil {
		h.logger.Error("list account mappings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": all})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	mapping, err := h.repo.Get(r.Context(), scope, chi.URLParam(r, "module"), chi.URLParam(r, "key"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}

func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	scope, err := httpx.Scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	saved, err := h.repo.Put(r.Context(), scope, AccountMapping{Module: req.Module, Key: req.Key, AccountID: req.AccountID})
	if err != nil {
		h.logger.Warn("put account mapping", slog.String("scope", scope.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}
