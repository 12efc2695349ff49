package locations

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
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const locationColumns = `id, code, name, address, is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Code, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM locations`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.SortDir == shared.SortDesc {
		dir = "DESC"
	}
	order := "name"
	if filters.SortBy == "code" {
		order = "code"
	}
	query := `SELECT ` + locationColumns + ` FROM locations` + where + ` ORDER BY ` + order + ` ` + dir
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, 0, err
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	l, err := scanLocation(r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("%w: location %d", internalShared.ErrNotFound, id)
	}
	return l, err
}

func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]Location, error) {
	out := make(map[int64]Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out[l.ID] = l
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO locations (code, name, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, location.Code, location.Name, location.Address, location.IsActive, now, now).Scan(&location.ID)
	if err != nil {
		return Location{}, err
	}
	location.CreatedAt = now
	location.UpdatedAt = now
	return location, nil
}

func (r *repository) Update(ctx context.Context, id int64, location Location) error {
	cmd, err := r.db.Exec(ctx, `UPDATE locations SET code = $1, name = $2, address = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		location.Code, location.Name, location.Address, location.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: location %d", internalShared.ErrNotFound, id)
	}
	return nil
}
