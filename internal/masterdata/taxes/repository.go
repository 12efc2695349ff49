package taxes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error)
	Get(ctx context.Context, id int64) (Tax, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Tax, error)
	Create(ctx context.Context, tax Tax) (Tax, error)
	Update(ctx context.Context, id int64, tax Tax) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const taxColumns = `id, code, name, cgst_percent, sgst_percent, igst_percent, is_active, created_at, updated_at`

func scanTax(row pgx.Row) (Tax, error) {
	var t Tax
	err := row.Scan(&t.ID, &t.Code, &t.Name, &t.CGSTPercent, &t.SGSTPercent, &t.IGSTPercent, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM taxes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taxColumns + ` FROM taxes` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var taxes []Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, 0, err
		}
		taxes = append(taxes, t)
	}
	return taxes, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Tax, error) {
	t, err := scanTax(r.pool.QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Tax{}, fmt.Errorf("%w: tax %d", internalShared.ErrNotFound, id)
	}
	return t, err
}

func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]Tax, error) {
	out := make(map[int64]Tax, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		out[t.ID] = t
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, tax Tax) (Tax, error) {
	query := `INSERT INTO taxes (code, name, cgst_percent, sgst_percent, igst_percent, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	now := time.Now()
	err := r.pool.QueryRow(ctx, query, tax.Code, tax.Name, tax.CGSTPercent, tax.SGSTPercent, tax.IGSTPercent, tax.IsActive, now, now).Scan(&tax.ID)
	if err != nil {
		return Tax{}, err
	}
	tax.CreatedAt = now
	tax.UpdatedAt = now
	return tax, nil
}

func (r *repository) Update(ctx context.Context, id int64, tax Tax) error {
	query := `UPDATE taxes SET code = $1, name = $2, cgst_percent = $3, sgst_percent = $4, igst_percent = $5, is_active = $6, updated_at = $7 WHERE id = $8`
	cmd, err := r.pool.Exec(ctx, query, tax.Code, tax.Name, tax.CGSTPercent, tax.SGSTPercent, tax.IGSTPercent, tax.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: tax %d", internalShared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE taxes SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: tax %d", internalShared.ErrNotFound, id)
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "name " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "code " + dir
	}
}
