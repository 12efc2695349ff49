package posting

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/platform/httpx"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

const (
	dateLayout        = "2006-01-02"
	maxIdempotencyKey = 128
)

// IdempotencyPort reserves request keys. Keys are completed by the save
// itself, inside its unit of work.
type IdempotencyPort interface {
	Reserve(ctx context.Context, key shared.RequestKey) (int64, bool, error)
	Release(ctx context.Context, key shared.RequestKey) error
}

// AuditTrail reads the audit records of one entity.
type AuditTrail interface {
	Trail(ctx context.Context, entity, entityID string) ([]shared.AuditLog, error)
}

// Handler exposes the transaction poster over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyPort
	trail       AuditTrail
	validate    *validator.Validate
}

// NewHandler builds the handler. idempotency may be nil.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, idempotency: idempotency, validate: validator.New()}
}

// WithAuditTrail enables GET /transactions/{kind}/{id}/audit.
func (h *Handler) WithAuditTrail(trail AuditTrail) *Handler {
	h.trail = trail
	return h
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/transactions/{kind}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.save)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/recover", h.recover)
		if h.trail != nil {
			r.Get("/{id}/audit", h.audit)
		}
	})
}

type lineRequest struct {
	ItemID          int64           `json:"item_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	Rate            decimal.Decimal `json:"rate"`
	TaxID           int64           `json:"tax_id" validate:"gte=0"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	CGSTPercent     decimal.Decimal `json:"cgst_percent"`
	SGSTPercent     decimal.Decimal `json:"sgst_percent"`
	IGSTPercent     decimal.Decimal `json:"igst_percent"`
	Inclusive       bool            `json:"inclusive"`
	Remarks         string          `json:"remarks" validate:"max=255"`
}

type saveRequest struct {
	ID                    int64            `json:"id" validate:"gte=0"`
	Revision              int              `json:"revision" validate:"gte=0"`
	Date                  string           `json:"date" validate:"required,datetime=2006-01-02"`
	LocationID            int64            `json:"location_id" validate:"required,gt=0"`
	DestinationLocationID int64            `json:"destination_location_id" validate:"gte=0"`
	PartyID               int64            `json:"party_id" validate:"gte=0"`
	ExtraChargesPercent   decimal.Decimal  `json:"extra_charges_percent"`
	DiscountPercent       decimal.Decimal  `json:"discount_percent"`
	RoundOff              *decimal.Decimal `json:"round_off,omitempty"`
	CashPayment           decimal.Decimal  `json:"cash_payment"`
	BankPayment           decimal.Decimal  `json:"bank_payment"`
	Remarks               string           `json:"remarks" validate:"max=255"`
	Lines                 []lineRequest    `json:"lines" validate:"required,min=1,dive"`
}

func (req saveRequest) cart(kind Kind) (Cart, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return Cart{}, shared.Validationf("invalid date %q", req.Date)
	}
	header := Header{
		ID:                    req.ID,
		Kind:                  kind,
		Date:                  date,
		LocationID:            req.LocationID,
		DestinationLocationID: req.DestinationLocationID,
		PartyID:               req.PartyID,
		ExtraChargesPercent:   req.ExtraChargesPercent,
		DiscountPercent:       req.DiscountPercent,
		CashPayment:           req.CashPayment,
		BankPayment:           req.BankPayment,
		Remarks:               req.Remarks,
		Revision:              req.Revision,
	}
	if req.RoundOff != nil {
		header.RoundOff = *req.RoundOff
		header.RoundOffManual = true
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, Line{
			ItemID:          l.ItemID,
			Quantity:        l.Quantity,
			Rate:            l.Rate,
			TaxID:           l.TaxID,
			DiscountPercent: l.DiscountPercent,
			CGSTPercent:     l.CGSTPercent,
			SGSTPercent:     l.SGSTPercent,
			IGSTPercent:     l.IGSTPercent,
			Inclusive:       l.Inclusive,
			Remarks:         l.Remarks,
		})
	}
	return Cart{Header: header, Lines: lines}, nil
}

type saveResponse struct {
	ID       int64 `json:"id"`
	Replayed bool  `json:"replayed,omitempty"`
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("decode cart: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	cart, err := req.cart(kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	raw := r.Header.Get("Idempotency-Key")
	if raw == "" || h.idempotency == nil {
		id, err := h.service.Save(r.Context(), cart)
		if err != nil {
			h.fail(w, "save transaction", err)
			return
		}
		respondSaved(w, cart, id)
		return
	}

	if len(raw) > maxIdempotencyKey {
		httpx.RespondError(w, shared.Validationf("Idempotency-Key longer than %d characters", maxIdempotencyKey))
		return
	}
	body, err := json.Marshal(req)
	if err != nil {
		h.fail(w, "fingerprint cart", err)
		return
	}
	key := shared.NewRequestKey(raw, "posting."+string(kind), body)
	stored, done, err := h.idempotency.Reserve(r.Context(), key)
	if err != nil {
		h.fail(w, "reserve idempotency key", err)
		return
	}
	if done {
		httpx.JSON(w, http.StatusOK, saveResponse{ID: stored, Replayed: true})
		return
	}
	id, err := h.service.SaveKeyed(r.Context(), cart, key)
	if err != nil {
		if relErr := h.idempotency.Release(r.Context(), key); relErr != nil {
			h.logger.Warn("release idempotency key", slog.String("key", raw), slog.Any("error", relErr))
		}
		h.fail(w, "save transaction", err)
		return
	}
	respondSaved(w, cart, id)
}

func respondSaved(w http.ResponseWriter, cart Cart, id int64) {
	status := http.StatusOK
	if cart.Header.ID == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, saveResponse{ID: id})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), kind, id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var headers []Header
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(dateLayout, q.Get("from"))
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid from date"))
			return
		}
		to, err := time.Parse(dateLayout, q.Get("to"))
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid to date"))
			return
		}
		headers, err = h.service.ListByDateRange(r.Context(), kind, from, to)
		if err != nil {
			h.fail(w, "list transactions by date", err)
			return
		}
	} else {
		active := true
		if raw := q.Get("active"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				httpx.RespondError(w, shared.Validationf("invalid active flag"))
				return
			}
			active = parsed
		}
		headers, err = h.service.ListByStatus(r.Context(), kind, active)
		if err != nil {
			h.fail(w, "list transactions", err)
			return
		}
	}
	if headers == nil {
		headers = []Header{}
	}
	httpx.JSON(w, http.StatusOK, headers)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), kind, id); err != nil {
		h.fail(w, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recover(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	recovered, err := h.service.Recover(r.Context(), kind, id)
	if err != nil {
		h.fail(w, "recover transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, saveResponse{ID: recovered})
}

func (h *Handler) audit(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), kind, id); err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	logs, err := h.trail.Trail(r.Context(), auditEntity, strconv.FormatInt(id, 10))
	if err != nil {
		h.fail(w, "read audit trail", err)
		return
	}
	if logs == nil {
		logs = []shared.AuditLog{}
	}
	httpx.JSON(w, http.StatusOK, logs)
}

func (h *Handler) kindAndID(w http.ResponseWriter, r *http.Request) (Kind, int64, bool) {
	kind, err := kindParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return "", 0, false
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return "", 0, false
	}
	return kind, id, true
}

func kindParam(r *http.Request) (Kind, error) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", shared.Validationf("%v", err)
	}
	return kind, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("posting request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
