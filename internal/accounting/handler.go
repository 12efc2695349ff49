package accounting

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/bakery-erp/internal/platform/httpx"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// Handler wires period and voucher endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the accounting module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods", h.listPeriods)
	r.Post("/periods", h.createPeriod)
	r.Post("/periods/{id}/lock", h.setLocked(true))
	r.Post("/periods/{id}/unlock", h.setLocked(false))
	r.Get("/vouchers", h.vouchersByReference)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context())
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var input PeriodInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, shared.Validationf("decode period: %v", err))
		return
	}
	input.ActorID = shared.ActorFromContext(r.Context()).ID
	period, err := h.service.CreatePeriod(r.Context(), input)
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) setLocked(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		period, err := h.service.SetPeriodLocked(r.Context(), id, locked, shared.ActorFromContext(r.Context()).ID)
		if err != nil {
			h.fail(w, "set period lock", err)
			return
		}
		httpx.JSON(w, http.StatusOK, period)
	}
}

func (h *Handler) vouchersByReference(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("include_inactive"))
	vouchers, err := h.service.VouchersByReference(r.Context(), r.URL.Query().Get("reference"), includeInactive)
	if err != nil {
		h.fail(w, "vouchers by reference", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vouchers)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("accounting request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
