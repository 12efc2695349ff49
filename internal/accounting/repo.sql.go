package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bakery-erp/internal/platform/db"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

// TxRepository exposes transactional accounting operations.
type TxRepository interface {
	PeriodReader
	VoucherWriter
	InsertPeriod(ctx context.Context, period Period) (Period, error)
	CountOverlappingPeriods(ctx context.Context, start, end time.Time) (int, error)
	UpdatePeriodLocked(ctx context.Context, id int64, locked bool) error
	ListPeriods(ctx context.Context) ([]Period, error)
	VouchersByReference(ctx context.Context, number string, includeInactive bool) ([]Voucher, error)
	UnbalancedVouchers(ctx context.Context, from time.Time) ([]Imbalance, error)
}

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds accounting queries to an open transaction so other
// modules can post vouchers in their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const periodColumns = `id, code, start_date, end_date, locked, active, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Locked, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) PeriodByDate(ctx context.Context, date time.Time) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+`
FROM periods WHERE $1::date BETWEEN start_date AND end_date ORDER BY start_date DESC LIMIT 1 FOR SHARE`, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) PeriodByID(ctx context.Context, id int64) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1 FOR SHARE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: period %d", shared.ErrPeriodNotFound, id)
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) InsertPeriod(ctx context.Context, period Period) (Period, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO periods (code, start_date, end_date, locked, active)
VALUES ($1,$2,$3,$4,$5) RETURNING `+periodColumns, period.Code, period.StartDate, period.EndDate, period.Locked, period.Active)
	return scanPeriod(row)
}

func (r *txRepository) CountOverlappingPeriods(ctx context.Context, start, end time.Time) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM periods WHERE start_date <= $2::date AND end_date >= $1::date`, start, end).Scan(&count)
	return count, err
}

func (r *txRepository) UpdatePeriodLocked(ctx context.Context, id int64, locked bool) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE periods SET locked=$2, updated_at=NOW() WHERE id=$1`, id, locked)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: period %d", shared.ErrPeriodNotFound, id)
	}
	return nil
}

func (r *txRepository) ListPeriods(ctx context.Context) ([]Period, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *txRepository) DeactivateVouchers(ctx context.Context, ref Reference) (int64, error) {
	var (
		query string
		args  []any
	)
	if len(ref.Types) > 0 {
		types := make([]string, 0, len(ref.Types))
		for _, vt := range ref.Types {
			types = append(types, string(vt))
		}
		query = `UPDATE vouchers SET active=FALSE WHERE active AND reference_id=$1 AND voucher_type = ANY($2)`
		args = []any{ref.ID, types}
	} else {
		query = `UPDATE vouchers SET active=FALSE WHERE active AND reference_number=$1`
		args = []any{ref.Number}
	}
	cmd, err := r.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) InsertVoucher(ctx context.Context, v Voucher) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vouchers (voucher_type, reference_number, reference_id, source_id, period_id, location_id, voucher_date, total_debit, total_credit, active, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10) RETURNING id`,
		v.Type, v.ReferenceNumber, v.ReferenceID, v.SourceID, v.PeriodID, nullInt(v.LocationID), v.Date, v.TotalDebit, v.TotalCredit, nullInt(v.CreatedBy)).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, line := range v.Lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO voucher_lines (voucher_id, account_id, debit, credit, reference_id, reference_type, remarks)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, id, line.AccountID, line.Debit, line.Credit, line.ReferenceID, line.ReferenceType, line.Remarks); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *txRepository) VouchersByReference(ctx context.Context, number string, includeInactive bool) ([]Voucher, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_type, reference_number, reference_id, source_id, period_id, COALESCE(location_id, 0),
voucher_date, total_debit, total_credit, active, COALESCE(created_by, 0), created_at
FROM vouchers WHERE reference_number=$1 AND (active OR $2) ORDER BY id`, number, includeInactive)
	if err != nil {
		return nil, err
	}
	var vouchers []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.Type, &v.ReferenceNumber, &v.ReferenceID, &v.SourceID, &v.PeriodID, &v.LocationID,
			&v.Date, &v.TotalDebit, &v.TotalCredit, &v.Active, &v.CreatedBy, &v.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range vouchers {
		lines, err := r.voucherLines(ctx, vouchers[i].ID)
		if err != nil {
			return nil, err
		}
		vouchers[i].Lines = lines
	}
	return vouchers, nil
}

func (r *txRepository) voucherLines(ctx context.Context, voucherID int64) ([]VoucherLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, voucher_id, account_id, debit, credit, reference_id, reference_type, remarks
FROM voucher_lines WHERE voucher_id=$1 ORDER BY id`, voucherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []VoucherLine
	for rows.Next() {
		var line VoucherLine
		if err := rows.Scan(&line.ID, &line.VoucherID, &line.AccountID, &line.Debit, &line.Credit, &line.ReferenceID, &line.ReferenceType, &line.Remarks); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) UnbalancedVouchers(ctx context.Context, from time.Time) ([]Imbalance, error) {
	rows, err := r.tx.Query(ctx, `SELECT v.id, v.voucher_type, v.reference_number, v.total_debit, v.total_credit,
COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM vouchers v LEFT JOIN voucher_lines l ON l.voucher_id = v.id
WHERE v.active AND v.voucher_date >= $1
GROUP BY v.id
HAVING v.total_debit <> v.total_credit
    OR COALESCE(SUM(l.debit), 0) <> v.total_debit
    OR COALESCE(SUM(l.credit), 0) <> v.total_credit
ORDER BY v.id`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.VoucherID, &im.Type, &im.ReferenceNumber, &im.TotalDebit, &im.TotalCredit, &im.LineDebit, &im.LineCredit); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
