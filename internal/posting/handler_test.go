package posting

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

func newTestRouter(f *fixture, keys IdempotencyPort) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, keys)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(f.ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

const saleBody = `{
	"date": "2025-06-01",
	"location_id": 2,
	"cash_payment": "202",
	"lines": [{"item_id": 12, "quantity": "2", "rate": "100", "discount_percent": "10", "cgst_percent": "6", "sgst_percent": "6"}]
}`

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerSaveAndReplay(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, f.repo)
	headers := map[string]string{"Idempotency-Key": "till-4-0001"}

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.Equal(t, created.ID, f.repo.st.Keys["posting.sale:till-4-0001"].ResultID)

	rec = do(t, router, http.MethodPost, "/transactions/sale", saleBody, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var replayed saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &replayed))
	require.Equal(t, saveResponse{ID: created.ID, Replayed: true}, replayed)
	require.Len(t, f.repo.st.Headers, 1)

	rec = do(t, router, http.MethodGet, "/transactions/sale/"+strconv.FormatInt(created.ID, 10), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, "SAL/2025/000001", doc.Header.Number)
	require.True(t, dec("202").Equal(doc.Header.GrandTotal))
	require.Len(t, doc.Lines, 1)
}

func TestHandlerReusedKeyWithDifferentCartIsRefused(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, f.repo)
	headers := map[string]string{"Idempotency-Key": "till-4-0002"}

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	other := strings.Replace(saleBody, `"quantity": "2"`, `"quantity": "3"`, 1)
	require.NotEqual(t, saleBody, other)
	rec = do(t, router, http.MethodPost, "/transactions/sale", other, headers)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	require.Len(t, f.repo.st.Headers, 1)

	rec = do(t, router, http.MethodPost, "/transactions/sale", saleBody, map[string]string{"Idempotency-Key": strings.Repeat("k", 129)})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerKeyCompletesWithTheSave(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, f.repo)
	key := shared.NewRequestKey("till-4-0003", "posting.sale", []byte("{}"))

	// A save that does not hold the reservation rolls back entirely.
	_, _, err := f.repo.Reserve(f.ctx, key)
	require.NoError(t, err)
	_, err = f.svc.SaveKeyed(f.ctx, saleCart(saleLine(bread, "1", "10")), shared.NewRequestKey("till-4-0003", "posting.sale", []byte("[]")))
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Empty(t, f.repo.st.Headers)
	require.Empty(t, f.repo.st.Vouchers)
	require.Zero(t, f.repo.st.Keys["posting.sale:till-4-0003"].ResultID)

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, map[string]string{"Idempotency-Key": "till-4-0003"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	id, err := f.svc.SaveKeyed(f.ctx, saleCart(saleLine(bread, "1", "10")), key)
	require.NoError(t, err)
	require.Equal(t, id, f.repo.st.Keys["posting.sale:till-4-0003"].ResultID)
}

func TestHandlerFailedSaveReleasesKey(t *testing.T) {
	f := newFixture()
	f.repo.lockPeriod(2)
	router := newTestRouter(f, f.repo)

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Empty(t, f.repo.st.Keys)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	router := newTestRouter(newFixture(), nil)

	rec := do(t, router, http.MethodPost, "/transactions/gift", saleBody, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/transactions/sale", `{"date":"01/06/2025","location_id":2,"lines":[{"item_id":12,"quantity":"1","rate":"1"}]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/transactions/sale", `{"date":"2025-06-01","location_id":2,"lines":[]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/transactions/sale/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/transactions/sale?from=2025-07-01&to=2025-06-01", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDeleteRecoverAndList(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f, nil)

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := "/transactions/sale/" + strconv.FormatInt(created.ID, 10)

	rec = do(t, router, http.MethodDelete, path, "", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, path, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/transactions/sale?active=false", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted []Header
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.Len(t, deleted, 1)

	rec = do(t, router, http.MethodPost, path+"/recover", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/transactions/sale?from=2025-06-01&to=2025-06-30", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []Header
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	require.True(t, active[0].Active)
}

func TestHandlerAuditTrail(t *testing.T) {
	f := newFixture()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, nil).WithAuditTrail(f.repo)
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(f.ctx))
		})
	})
	h.MountRoutes(router)

	rec := do(t, router, http.MethodPost, "/transactions/sale", saleBody, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	path := "/transactions/sale/" + strconv.FormatInt(created.ID, 10)
	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, path, "", nil).Code)

	rec = do(t, router, http.MethodGet, path+"/audit", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []shared.AuditLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs, 2)
	require.Equal(t, "sale.saved", logs[0].Action)
	require.Equal(t, "sale.deleted", logs[1].Action)
	require.Equal(t, int64(actorID), logs[0].ActorID)

	rec = do(t, router, http.MethodGet, "/transactions/purchase/"+strconv.FormatInt(created.ID, 10)+"/audit", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
