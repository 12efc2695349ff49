package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/platform/httpx"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/closing", h.handleClosing)
	r.Get("/stock/card", h.handleStockCard)
	r.Post("/stock/adjustments", h.handleAdjustment)
}

type adjustmentRequest struct {
	ItemID         int64            `json:"item_id"`
	LocationID     int64            `json:"location_id"`
	Date           string           `json:"date"`
	TargetQuantity decimal.Decimal  `json:"target_quantity"`
	Rate           *decimal.Decimal `json:"rate"`
	Reference      string           `json:"reference"`
}

func (h *Handler) handleClosing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item, location, err := itemAndLocation(q.Get("item"), q.Get("location"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date := time.Now()
	if raw := q.Get("date"); raw != "" {
		if date, err = time.Parse(dateLayout, raw); err != nil {
			httpx.RespondError(w, shared.Validationf("invalid date %q", raw))
			return
		}
	}
	qty, err := h.service.ClosingStock(r.Context(), item, location, date)
	if err != nil {
		h.logger.Error("closing stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":     item,
		"location_id": location,
		"date":        date.Format(dateLayout),
		"quantity":    qty,
	})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item, location, err := itemAndLocation(q.Get("item"), q.Get("location"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := StockCardFilter{ItemID: item, LocationID: location}
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse(dateLayout, raw); err != nil {
			httpx.RespondError(w, shared.Validationf("invalid from date %q", raw))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.Parse(dateLayout, raw); err != nil {
			httpx.RespondError(w, shared.Validationf("invalid to date %q", raw))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit <= 0 {
			httpx.RespondError(w, shared.Validationf("invalid limit %q", raw))
			return
		}
	}
	card, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("stock card", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("decode adjustment: %v", err))
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid date %q", req.Date))
		return
	}
	result, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ItemID:         req.ItemID,
		LocationID:     req.LocationID,
		Date:           date,
		TargetQuantity: req.TargetQuantity,
		Rate:           req.Rate,
		Reference:      req.Reference,
		ActorID:        shared.ActorFromContext(r.Context()).ID,
	})
	if err != nil {
		h.logger.Warn("stock adjustment failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Entry == nil {
		status = http.StatusOK
	}
	httpx.JSON(w, status, result)
}

func itemAndLocation(itemRaw, locationRaw string) (int64, int64, error) {
	item, err := strconv.ParseInt(itemRaw, 10, 64)
	if err != nil || item <= 0 {
		return 0, 0, shared.Validationf("invalid item %q", itemRaw)
	}
	location, err := strconv.ParseInt(locationRaw, 10, 64)
	if err != nil || location <= 0 {
		return 0, 0, shared.Validationf("invalid location %q", locationRaw)
	}
	return item, location, nil
}
