package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/products"
	"github.com/odyssey-erp/bakery-erp/internal/platform/db"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// TxRepository exposes every write the poster performs inside one unit of work.
type TxRepository interface {
	accounting.PeriodReader
	accounting.VoucherWriter
	inventory.EntryWriter
	SequenceStore
	LockHeader(ctx context.Context, kind Kind, id int64) (Header, error)
	GetHeader(ctx context.Context, kind Kind, id int64) (Header, error)
	InsertHeader(ctx context.Context, h Header) (int64, error)
	UpdateHeader(ctx context.Context, h Header) error
	SetHeaderActive(ctx context.Context, id int64, active bool, actorID int64) error
	DeactivateLines(ctx context.Context, headerID int64) (int64, error)
	InsertLines(ctx context.Context, lines []Line) error
	ActiveLines(ctx context.Context, headerID int64) ([]Line, error)
	LastLineRevision(ctx context.Context, headerID int64) (int, error)
	LinesByRevision(ctx context.Context, headerID int64, revision int) ([]Line, error)
	ListByStatus(ctx context.Context, kind Kind, active bool) ([]Header, error)
	ListByDateRange(ctx context.Context, kind Kind, from, to time.Time) ([]Header, error)
	SyncItemRate(ctx context.Context, itemID int64, rate decimal.Decimal) error
	CompleteRequest(ctx context.Context, key shared.RequestKey, resultID int64) error
}

// Repository persists transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a repeatable-read transaction shared by the header, line,
// stock and voucher writes.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("posting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepository(tx))
	})
}

type txRepository struct {
	accounting.TxRepository
	stock inventory.TxRepository
	tx    pgx.Tx
}

func newTxRepository(tx pgx.Tx) *txRepository {
	return &txRepository{
		TxRepository: accounting.NewTxRepository(tx),
		stock:        inventory.NewTxRepository(tx),
		tx:           tx,
	}
}

func (r *txRepository) DeleteEntries(ctx context.Context, key inventory.SourceKey) (int64, error) {
	return r.stock.DeleteEntries(ctx, key)
}

func (r *txRepository) InsertEntries(ctx context.Context, entries []inventory.Entry) error {
	return r.stock.InsertEntries(ctx, entries)
}

func (r *txRepository) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO document_sequences (prefix, year, seq)
VALUES ($1, $2, 1)
ON CONFLICT (prefix, year) DO UPDATE SET seq = document_sequences.seq + 1
RETURNING seq`, prefix, year).Scan(&seq)
	return seq, err
}

const headerColumns = `id, kind, number, txn_date, location_id, COALESCE(destination_location_id, 0), COALESCE(party_id, 0), period_id,
extra_charges_percent, discount_percent, round_off, round_off_manual, base_total, line_discount, tax_amount, sub_total,
extra_charges, header_discount, total, grand_total, cash_payment, bank_payment, remarks, revision, active,
COALESCE(created_by, 0), created_at, COALESCE(modified_by, 0), modified_at, platform`

func scanHeader(row pgx.Row) (Header, error) {
	var h Header
	err := row.Scan(&h.ID, &h.Kind, &h.Number, &h.Date, &h.LocationID, &h.DestinationLocationID, &h.PartyID, &h.PeriodID,
		&h.ExtraChargesPercent, &h.DiscountPercent, &h.RoundOff, &h.RoundOffManual, &h.BaseTotal, &h.LineDiscount, &h.TaxAmount, &h.SubTotal,
		&h.ExtraCharges, &h.HeaderDiscount, &h.Total, &h.GrandTotal, &h.CashPayment, &h.BankPayment, &h.Remarks, &h.Revision, &h.Active,
		&h.CreatedBy, &h.CreatedAt, &h.ModifiedBy, &h.ModifiedAt, &h.Platform)
	return h, err
}

func (r *txRepository) loadHeader(ctx context.Context, kind Kind, id int64, suffix string) (Header, error) {
	h, err := scanHeader(r.tx.QueryRow(ctx, `SELECT `+headerColumns+` FROM transactions WHERE id=$1 AND kind=$2`+suffix, id, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Header{}, fmt.Errorf("%w: %s %d", shared.ErrNotFound, kind, id)
		}
		return Header{}, err
	}
	return h, nil
}

func (r *txRepository) LockHeader(ctx context.Context, kind Kind, id int64) (Header, error) {
	return r.loadHeader(ctx, kind, id, ` FOR UPDATE`)
}

func (r *txRepository) GetHeader(ctx context.Context, kind Kind, id int64) (Header, error) {
	return r.loadHeader(ctx, kind, id, ``)
}

func (r *txRepository) InsertHeader(ctx context.Context, h Header) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (kind, number, txn_date, location_id, destination_location_id, party_id, period_id,
extra_charges_percent, discount_percent, round_off, round_off_manual, base_total, line_discount, tax_amount, sub_total,
extra_charges, header_discount, total, grand_total, cash_payment, bank_payment, remarks, revision, active,
created_by, created_at, modified_by, modified_at, platform)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$25,$26,$27)
RETURNING id`,
		h.Kind, h.Number, h.Date, h.LocationID, nullInt(h.DestinationLocationID), nullInt(h.PartyID), h.PeriodID,
		h.ExtraChargesPercent, h.DiscountPercent, h.RoundOff, h.RoundOffManual, h.BaseTotal, h.LineDiscount, h.TaxAmount, h.SubTotal,
		h.ExtraCharges, h.HeaderDiscount, h.Total, h.GrandTotal, h.CashPayment, h.BankPayment, h.Remarks, h.Revision, h.Active,
		nullInt(h.CreatedBy), h.CreatedAt, h.Platform).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateHeader(ctx context.Context, h Header) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET txn_date=$2, location_id=$3, destination_location_id=$4, party_id=$5, period_id=$6,
extra_charges_percent=$7, discount_percent=$8, round_off=$9, round_off_manual=$10, base_total=$11, line_discount=$12, tax_amount=$13,
sub_total=$14, extra_charges=$15, header_discount=$16, total=$17, grand_total=$18, cash_payment=$19, bank_payment=$20, remarks=$21,
revision=$22, active=$23, modified_by=$24, modified_at=$25, platform=$26
WHERE id=$1`,
		h.ID, h.Date, h.LocationID, nullInt(h.DestinationLocationID), nullInt(h.PartyID), h.PeriodID,
		h.ExtraChargesPercent, h.DiscountPercent, h.RoundOff, h.RoundOffManual, h.BaseTotal, h.LineDiscount, h.TaxAmount,
		h.SubTotal, h.ExtraCharges, h.HeaderDiscount, h.Total, h.GrandTotal, h.CashPayment, h.BankPayment, h.Remarks,
		h.Revision, h.Active, nullInt(h.ModifiedBy), h.ModifiedAt, h.Platform)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, h.ID)
	}
	return nil
}

func (r *txRepository) SetHeaderActive(ctx context.Context, id int64, active bool, actorID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions SET active=$2, modified_by=$3, modified_at=NOW() WHERE id=$1`, id, active, nullInt(actorID))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %d", shared.ErrNotFound, id)
	}
	return nil
}

func (r *txRepository) DeactivateLines(ctx context.Context, headerID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE transaction_lines SET active=FALSE WHERE header_id=$1 AND active`, headerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) InsertLines(ctx context.Context, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO transaction_lines (header_id, revision, item_id, quantity, rate, tax_id, discount_percent,
cgst_percent, sgst_percent, igst_percent, inclusive, base_total, discount_amount, after_discount,
cgst_amount, sgst_amount, igst_amount, total, net_rate, remarks, active)
VALUES ($1,$2,$3,$4,$5,NULLIF($6::bigint, 0),$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
			l.HeaderID, l.Revision, l.ItemID, l.Quantity, l.Rate, l.TaxID, l.DiscountPercent,
			l.CGSTPercent, l.SGSTPercent, l.IGSTPercent, l.Inclusive, l.BaseTotal, l.DiscountAmount, l.AfterDiscount,
			l.CGSTAmount, l.SGSTAmount, l.IGSTAmount, l.Total, l.NetRate, l.Remarks, l.Active)
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := range lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("transaction line %d: %w", i, err)
		}
	}
	return results.Close()
}

const lineColumns = `id, header_id, revision, item_id, quantity, rate, COALESCE(tax_id, 0), discount_percent, cgst_percent, sgst_percent, igst_percent,
inclusive, base_total, discount_amount, after_discount, cgst_amount, sgst_amount, igst_amount, total, net_rate, remarks, active`

func (r *txRepository) queryLines(ctx context.Context, where string, args ...any) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+` FROM transaction_lines WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.HeaderID, &l.Revision, &l.ItemID, &l.Quantity, &l.Rate, &l.TaxID, &l.DiscountPercent,
			&l.CGSTPercent, &l.SGSTPercent, &l.IGSTPercent, &l.Inclusive, &l.BaseTotal, &l.DiscountAmount, &l.AfterDiscount,
			&l.CGSTAmount, &l.SGSTAmount, &l.IGSTAmount, &l.Total, &l.NetRate, &l.Remarks, &l.Active); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepository) ActiveLines(ctx context.Context, headerID int64) ([]Line, error) {
	return r.queryLines(ctx, `header_id=$1 AND active`, headerID)
}

func (r *txRepository) LastLineRevision(ctx context.Context, headerID int64) (int, error) {
	var revision int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(revision), 0) FROM transaction_lines WHERE header_id=$1`, headerID).Scan(&revision)
	return revision, err
}

func (r *txRepository) LinesByRevision(ctx context.Context, headerID int64, revision int) ([]Line, error) {
	return r.queryLines(ctx, `header_id=$1 AND revision=$2`, headerID, revision)
}

func (r *txRepository) queryHeaders(ctx context.Context, where string, args ...any) ([]Header, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+headerColumns+` FROM transactions WHERE `+where+` ORDER BY txn_date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var headers []Header
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

func (r *txRepository) ListByStatus(ctx context.Context, kind Kind, active bool) ([]Header, error) {
	return r.queryHeaders(ctx, `kind=$1 AND active=$2`, kind, active)
}

func (r *txRepository) ListByDateRange(ctx context.Context, kind Kind, from, to time.Time) ([]Header, error) {
	return r.queryHeaders(ctx, `kind=$1 AND active AND txn_date BETWEEN $2::date AND $3::date`, kind, from, to)
}

func (r *txRepository) SyncItemRate(ctx context.Context, itemID int64, rate decimal.Decimal) error {
	return products.UpdateRate(ctx, r.tx, itemID, rate)
}

func (r *txRepository) CompleteRequest(ctx context.Context, key shared.RequestKey, resultID int64) error {
	return shared.CompleteRequest(ctx, r.tx, key, resultID)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
