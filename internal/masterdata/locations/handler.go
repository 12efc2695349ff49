package locations

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
	r.Get("/locations", h.List)
	r.Post("/locations", h.Create)
	r.Get("/locations/{id}", h.Show)
	r.Put("/locations/{id}", h.Update)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r.URL.Query())
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list locations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total, "page": filters.Page, "limit": filters.Limit})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	location, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get location", err)
		return
	}
	httpx.JSON(w, http.StatusOK, location)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var location Location
	if err := httpx.DecodeJSON(r, &location); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode location: %v", err))
		return
	}
	created, err := h.service.Create(r.Context(), location)
	if err != nil {
		h.fail(w, "create location", err)
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
	var location Location
	if err := httpx.DecodeJSON(r, &location); err != nil {
		httpx.RespondError(w, internalShared.Validationf("decode location: %v", err))
		return
	}
	if err := h.service.Update(r.Context(), id, location); err != nil {
		h.fail(w, "update location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("location request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
