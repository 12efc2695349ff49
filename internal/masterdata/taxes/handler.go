package taxes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	"github.com/odyssey-erp/bakery-erp/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/taxes", h.List)
	r.Post("/taxes", h.Create)
	r.Get("/taxes/{id}", h.Show)
	r.Put("/taxes/{id}", h.Update)
	r.Delete("/taxes/{id}", h.Delete)
}

type listResponse struct {
	Items []Tax `json:"items"`
	Total int   `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r.URL.Query())
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list taxes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: total, Page: filters.Page, Limit: filters.Limit})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tax, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get tax", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tax)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var tax Tax
	if err := httpx.DecodeJSON(r, &tax); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode tax: %v", err))
		return
	}
	created, err := h.service.Create(r.Context(), tax)
	if err != nil {
		h.fail(w, "create tax", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var tax Tax
	if err := httpx.DecodeJSON(r, &tax); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode tax: %v", err))
		return
	}
	if err := h.service.Update(r.Context(), id, tax); err != nil {
		h.fail(w, "update tax", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete tax", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("tax request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
