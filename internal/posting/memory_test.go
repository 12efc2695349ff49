package posting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// state is everything the memory repository persists. It is copied on every
// WithTx so a failed unit of work leaves no trace.
type state struct {
	Periods   []accounting.Period
	Headers   map[int64]Header
	Lines     []Line
	Entries   []inventory.Entry
	Vouchers  []accounting.Voucher
	Sequences map[string]int64
	Rates     map[int64]decimal.Decimal
	Keys      map[string]storedKey
	NextID    int64
}

type storedKey struct {
	Hash     string
	ResultID int64
}

func (s state) clone() state {
	out := s
	out.Periods = append([]accounting.Period(nil), s.Periods...)
	out.Headers = make(map[int64]Header, len(s.Headers))
	for k, v := range s.Headers {
		out.Headers[k] = v
	}
	out.Lines = append([]Line(nil), s.Lines...)
	out.Entries = append([]inventory.Entry(nil), s.Entries...)
	out.Vouchers = append([]accounting.Voucher(nil), s.Vouchers...)
	out.Sequences = make(map[string]int64, len(s.Sequences))
	for k, v := range s.Sequences {
		out.Sequences[k] = v
	}
	out.Rates = make(map[int64]decimal.Decimal, len(s.Rates))
	for k, v := range s.Rates {
		out.Rates[k] = v
	}
	out.Keys = make(map[string]storedKey, len(s.Keys))
	for k, v := range s.Keys {
		out.Keys[k] = v
	}
	return out
}

// The memory repository rounds what it stores to the scale of the matching
// Postgres columns, so tests see what a reload would return.
const (
	amountScale  int32 = 4
	voucherScale int32 = 2
)

func storedHeader(h Header) Header {
	for _, v := range []*decimal.Decimal{
		&h.ExtraChargesPercent, &h.DiscountPercent, &h.RoundOff, &h.BaseTotal, &h.LineDiscount,
		&h.TaxAmount, &h.SubTotal, &h.ExtraCharges, &h.HeaderDiscount, &h.Total, &h.GrandTotal,
		&h.CashPayment, &h.BankPayment,
	} {
		*v = v.Round(amountScale)
	}
	return h
}

func storedLine(l Line) Line {
	for _, v := range []*decimal.Decimal{
		&l.Quantity, &l.Rate, &l.DiscountPercent, &l.CGSTPercent, &l.SGSTPercent, &l.IGSTPercent,
		&l.BaseTotal, &l.DiscountAmount, &l.AfterDiscount, &l.CGSTAmount, &l.SGSTAmount, &l.IGSTAmount,
		&l.Total, &l.NetRate,
	} {
		*v = v.Round(amountScale)
	}
	return l
}

func storedEntry(e inventory.Entry) inventory.Entry {
	e.Quantity = e.Quantity.Round(inventory.QuantityPlaces)
	if e.Rate != nil {
		rate := e.Rate.Round(amountScale)
		e.Rate = &rate
	}
	return e
}

func storedVoucher(v accounting.Voucher) accounting.Voucher {
	v.TotalDebit = v.TotalDebit.Round(voucherScale)
	v.TotalCredit = v.TotalCredit.Round(voucherScale)
	lines := make([]accounting.VoucherLine, len(v.Lines))
	for i, l := range v.Lines {
		l.Debit = l.Debit.Round(voucherScale)
		l.Credit = l.Credit.Round(voucherScale)
		lines[i] = l
	}
	v.Lines = lines
	return v
}

type memoryRepo struct {
	st     state
	audit  []shared.AuditLog
	events []PostedEvent
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{st: state{
		Periods: []accounting.Period{
			{ID: 1, Code: "FY24", StartDate: day(2024, 4, 1), EndDate: day(2025, 3, 31), Active: true},
			{ID: 2, Code: "FY25", StartDate: day(2025, 4, 1), EndDate: day(2026, 3, 31), Active: true},
		},
		Headers:   map[int64]Header{},
		Sequences: map[string]int64{},
		Rates:     map[int64]decimal.Decimal{},
		Keys:      map[string]storedKey{},
	}}
}

func (m *memoryRepo) snapshot() state {
	return m.st.clone()
}

func (m *memoryRepo) lockPeriod(id int64) {
	for i := range m.st.Periods {
		if m.st.Periods[i].ID == id {
			m.st.Periods[i].Locked = true
		}
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := m.st.clone()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.st = saved
		return err
	}
	return nil
}

func (m *memoryRepo) Record(_ context.Context, log shared.AuditLog) error {
	m.audit = append(m.audit, log)
	return nil
}

func (m *memoryRepo) Trail(_ context.Context, entity, entityID string) ([]shared.AuditLog, error) {
	var out []shared.AuditLog
	for _, log := range m.audit {
		if log.Entity == entity && log.EntityID == entityID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (m *memoryRepo) Reserve(_ context.Context, key shared.RequestKey) (int64, bool, error) {
	stored, ok := m.st.Keys[key.Module+":"+key.Key]
	switch {
	case !ok:
		m.st.Keys[key.Module+":"+key.Key] = storedKey{Hash: key.Hash}
		return 0, false, nil
	case stored.Hash != key.Hash:
		return 0, false, shared.ErrIdempotencyMismatch
	case stored.ResultID == 0:
		return 0, false, shared.ErrIdempotencyConflict
	}
	return stored.ResultID, true, nil
}

func (m *memoryRepo) Release(_ context.Context, key shared.RequestKey) error {
	if stored, ok := m.st.Keys[key.Module+":"+key.Key]; ok && stored.ResultID == 0 {
		delete(m.st.Keys, key.Module+":"+key.Key)
	}
	return nil
}

func (m *memoryRepo) TransactionPosted(_ context.Context, evt PostedEvent) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *memoryRepo) activeLines(headerID int64) []Line {
	var out []Line
	for _, l := range m.st.Lines {
		if l.HeaderID == headerID && l.Active {
			out = append(out, l)
		}
	}
	return out
}

func (m *memoryRepo) entriesFor(kind Kind, id int64) []inventory.Entry {
	var out []inventory.Entry
	for _, e := range m.st.Entries {
		if e.SourceKind == string(kind) && e.SourceID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *memoryRepo) activeVouchers(id int64) []accounting.Voucher {
	var out []accounting.Voucher
	for _, v := range m.st.Vouchers {
		if v.ReferenceID == id && v.Active {
			out = append(out, v)
		}
	}
	return out
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) PeriodByDate(_ context.Context, date time.Time) (accounting.Period, error) {
	for _, p := range tx.repo.st.Periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return accounting.Period{}, shared.ErrPeriodNotFound
}

func (tx *memoryTx) PeriodByID(_ context.Context, id int64) (accounting.Period, error) {
	for _, p := range tx.repo.st.Periods {
		if p.ID == id {
			return p, nil
		}
	}
	return accounting.Period{}, shared.ErrPeriodNotFound
}

func (tx *memoryTx) DeactivateVouchers(_ context.Context, ref accounting.Reference) (int64, error) {
	var n int64
	for i := range tx.repo.st.Vouchers {
		if tx.repo.st.Vouchers[i].Active && ref.Matches(tx.repo.st.Vouchers[i]) {
			tx.repo.st.Vouchers[i].Active = false
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertVoucher(_ context.Context, v accounting.Voucher) (int64, error) {
	tx.repo.st.NextID++
	v.ID = tx.repo.st.NextID
	tx.repo.st.Vouchers = append(tx.repo.st.Vouchers, storedVoucher(v))
	return v.ID, nil
}

func (tx *memoryTx) DeleteEntries(_ context.Context, key inventory.SourceKey) (int64, error) {
	kept := tx.repo.st.Entries[:0:0]
	var removed int64
	for _, e := range tx.repo.st.Entries {
		if e.Key() == key {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	tx.repo.st.Entries = kept
	return removed, nil
}

func (tx *memoryTx) InsertEntries(_ context.Context, entries []inventory.Entry) error {
	for _, e := range entries {
		tx.repo.st.NextID++
		e.ID = tx.repo.st.NextID
		tx.repo.st.Entries = append(tx.repo.st.Entries, storedEntry(e))
	}
	return nil
}

func (tx *memoryTx) NextSequence(_ context.Context, prefix string, year int) (int64, error) {
	key := fmt.Sprintf("%s/%d", prefix, year)
	tx.repo.st.Sequences[key]++
	return tx.repo.st.Sequences[key], nil
}

func (tx *memoryTx) LockHeader(ctx context.Context, kind Kind, id int64) (Header, error) {
	return tx.GetHeader(ctx, kind, id)
}

func (tx *memoryTx) GetHeader(_ context.Context, kind Kind, id int64) (Header, error) {
	h, ok := tx.repo.st.Headers[id]
	if !ok || h.Kind != kind {
		return Header{}, fmt.Errorf("%w: %s %d", shared.ErrNotFound, kind, id)
	}
	return h, nil
}

func (tx *memoryTx) InsertHeader(_ context.Context, h Header) (int64, error) {
	tx.repo.st.NextID++
	h.ID = tx.repo.st.NextID
	tx.repo.st.Headers[h.ID] = storedHeader(h)
	return h.ID, nil
}

func (tx *memoryTx) UpdateHeader(_ context.Context, h Header) error {
	if _, ok := tx.repo.st.Headers[h.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.st.Headers[h.ID] = storedHeader(h)
	return nil
}

func (tx *memoryTx) SetHeaderActive(_ context.Context, id int64, active bool, actorID int64) error {
	h, ok := tx.repo.st.Headers[id]
	if !ok {
		return shared.ErrNotFound
	}
	h.Active = active
	h.ModifiedBy = actorID
	tx.repo.st.Headers[id] = h
	return nil
}

func (tx *memoryTx) DeactivateLines(_ context.Context, headerID int64) (int64, error) {
	var n int64
	for i := range tx.repo.st.Lines {
		if tx.repo.st.Lines[i].HeaderID == headerID && tx.repo.st.Lines[i].Active {
			tx.repo.st.Lines[i].Active = false
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertLines(_ context.Context, lines []Line) error {
	for _, l := range lines {
		tx.repo.st.NextID++
		l.ID = tx.repo.st.NextID
		tx.repo.st.Lines = append(tx.repo.st.Lines, storedLine(l))
	}
	return nil
}

func (tx *memoryTx) ActiveLines(_ context.Context, headerID int64) ([]Line, error) {
	return tx.repo.activeLines(headerID), nil
}

func (tx *memoryTx) LastLineRevision(_ context.Context, headerID int64) (int, error) {
	last := 0
	for _, l := range tx.repo.st.Lines {
		if l.HeaderID == headerID && l.Revision > last {
			last = l.Revision
		}
	}
	return last, nil
}

func (tx *memoryTx) LinesByRevision(_ context.Context, headerID int64, revision int) ([]Line, error) {
	var out []Line
	for _, l := range tx.repo.st.Lines {
		if l.HeaderID == headerID && l.Revision == revision {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *memoryTx) listHeaders(match func(Header) bool) []Header {
	var out []Header
	for _, h := range tx.repo.st.Headers {
		if match(h) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memoryTx) ListByStatus(_ context.Context, kind Kind, active bool) ([]Header, error) {
	return tx.listHeaders(func(h Header) bool { return h.Kind == kind && h.Active == active }), nil
}

func (tx *memoryTx) ListByDateRange(_ context.Context, kind Kind, from, to time.Time) ([]Header, error) {
	return tx.listHeaders(func(h Header) bool {
		return h.Kind == kind && h.Active && !h.Date.Before(from) && !h.Date.After(to)
	}), nil
}

func (tx *memoryTx) CompleteRequest(_ context.Context, key shared.RequestKey, resultID int64) error {
	stored, ok := tx.repo.st.Keys[key.Module+":"+key.Key]
	if !ok || stored.Hash != key.Hash || stored.ResultID != 0 {
		return fmt.Errorf("%w: key %s is not reserved", shared.ErrIdempotencyConflict, key.Key)
	}
	stored.ResultID = resultID
	tx.repo.st.Keys[key.Module+":"+key.Key] = stored
	return nil
}

func (tx *memoryTx) SyncItemRate(_ context.Context, itemID int64, rate decimal.Decimal) error {
	tx.repo.st.Rates[itemID] = rate
	return nil
}

type fakeCatalog struct {
	inactive map[int64]bool
	recipes  inventory.Recipes
}

func (c fakeCatalog) Resolve(_ context.Context, ids []int64) (inventory.Recipes, error) {
	out := inventory.Recipes{}
	for _, id := range ids {
		if c.inactive[id] {
			return nil, shared.Validationf("item %d is inactive", id)
		}
		if r, ok := c.recipes[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

type fakeSettings struct {
	accounts accounting.ControlAccounts
	central  int64
	flags    map[string]bool
}

func (f fakeSettings) ControlAccounts(context.Context) (accounting.ControlAccounts, error) {
	return f.accounts, nil
}

func (f fakeSettings) CentralLocation(_ context.Context, fallback int64) (int64, error) {
	if f.central == 0 {
		return fallback, nil
	}
	return f.central, nil
}

func (f fakeSettings) Bool(_ context.Context, key string, def bool) (bool, error) {
	if v, ok := f.flags[key]; ok {
		return v, nil
	}
	return def, nil
}

type countingMetrics struct {
	posted   map[string]int
	failures map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{posted: map[string]int{}, failures: map[string]int{}}
}

func (m *countingMetrics) ObservePosting(kind, action string) {
	m.posted[kind+"/"+action]++
}

func (m *countingMetrics) ObservePostingFailure(kind, reason string) {
	m.failures[kind+"/"+reason]++
}

type denyAll struct{}

func (denyAll) Can(context.Context, string) (bool, error) { return false, nil }

const (
	central  int64 = 1
	store    int64 = 2
	flour    int64 = 10
	cake     int64 = 11
	bread    int64 = 12
	retired  int64 = 13
	actorID  int64 = 7
	accCash  int64 = 101
	accBank  int64 = 102
	accGST   int64 = 103
	accSales int64 = 104
	accPurch int64 = 105
	accClear int64 = 106
)

var controlAccounts = accounting.ControlAccounts{
	Cash: accCash, Bank: accBank, GST: accGST, Sales: accSales, Purchase: accPurch, TransferClearing: accClear,
}

type fixture struct {
	repo     *memoryRepo
	svc      *Service
	metrics  *countingMetrics
	settings *fakeSettings
	ctx      context.Context
}

func newFixture(opts ...func(*ServiceConfig)) *fixture {
	repo := newMemoryRepo()
	metrics := newCountingMetrics()
	cfgSettings := &fakeSettings{accounts: controlAccounts, central: central, flags: map[string]bool{}}
	cfg := ServiceConfig{
		Catalog: fakeCatalog{
			inactive: map[int64]bool{retired: true},
			recipes:  inventory.Recipes{cake: {{MaterialID: flour, QuantityPerUnit: dec("0.25")}}},
		},
		Settings: cfgSettings,
		Audit:    repo,
		Notifier: repo,
		Metrics:  metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	svc := NewService(repo, cfg)
	svc.WithNow(func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) })
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: actorID, Platform: "pos"})
	return &fixture{repo: repo, svc: svc, metrics: metrics, settings: cfgSettings, ctx: ctx}
}

func (f *fixture) enable(key string) {
	f.settings.flags[key] = true
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func saleLine(item int64, qty, rate string) Line {
	return Line{
		ItemID:          item,
		Quantity:        dec(qty),
		Rate:            dec(rate),
		DiscountPercent: dec("10"),
		CGSTPercent:     dec("6"),
		SGSTPercent:     dec("6"),
	}
}

func saleCart(lines ...Line) Cart {
	return Cart{
		Header: Header{Kind: KindSale, Date: day(2025, 6, 1), LocationID: store},
		Lines:  lines,
	}
}
