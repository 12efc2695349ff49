package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
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
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/{id}", h.Show)
	r.Put("/products/{id}", h.Update)
	r.Delete("/products/{id}", h.Delete)
	r.Put("/products/{id}/recipe", h.SetRecipe)
}

type listResponse struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r.URL.Query())
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list products", err)
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
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode product: %v", err))
		return
	}
	created, err := h.service.Create(r.Context(), product)
	if err != nil {
		h.fail(w, "create product", err)
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
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode product: %v", err))
		return
	}
	if err := h.service.Update(r.Context(), id, product); err != nil {
		h.fail(w, "update product", err)
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
		h.fail(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var components []inventory.Component
	if err := httpx.DecodeJSON(r, &components); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode recipe: %v", err))
		return
	}
	if err := h.service.SetRecipe(r.Context(), id, components); err != nil {
		h.fail(w, "set recipe", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("product request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
