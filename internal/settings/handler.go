package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bakery-erp/internal/platform/httpx"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// Handler exposes settings over HTTP.
type Handler struct {
	logger *slog.Logger
	store  *Store
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.list)
	r.Put("/settings", h.put)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, values)
}

func (h *Handler) put(w http.ResponseWriter, r *http.Request) {
	var values []Setting
	if err := httpx.DecodeJSON(r, &values); err != nil {
		httpx.RespondError(w, shared.Validationf("decode settings: %v", err))
		return
	}
	if err := h.store.Set(r.Context(), values...); err != nil {
		h.logger.Warn("update settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
