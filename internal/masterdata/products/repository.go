package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/bakery-erp/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
	Recipes(ctx context.Context, ids []int64) (inventory.Recipes, error)
	ReplaceRecipe(ctx context.Context, id int64, components []inventory.Component) error
	UpdateRate(ctx context.Context, id int64, rate decimal.Decimal) error
}

// Execer is satisfied by both a pool and an open transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, rate, centrally_produced, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Rate, &p.CentrallyProduced, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", internalShared.ErrNotFound, id)
	}
	return p, err
}

func (r *repository) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	query := `INSERT INTO products (code, name, rate, centrally_produced, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, product.Code, product.Name, product.Rate, product.CentrallyProduced, product.IsActive, now, now).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	query := `UPDATE products SET code = $1, name = $2, rate = $3, centrally_produced = $4, is_active = $5, updated_at = $6 WHERE id = $7`
	cmd, err := r.db.Exec(ctx, query, product.Code, product.Name, product.Rate, product.CentrallyProduced, product.IsActive, time.Now(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", internalShared.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (r *repository) Recipes(ctx context.Context, ids []int64) (inventory.Recipes, error) {
	out := inventory.Recipes{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT product_id, material_id, quantity_per_unit FROM product_recipes
WHERE product_id = ANY($1) ORDER BY product_id, material_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID int64
			c         inventory.Component
		)
		if err := rows.Scan(&productID, &c.MaterialID, &c.QuantityPerUnit); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], c)
	}
	return out, rows.Err()
}

func (r *repository) ReplaceRecipe(ctx context.Context, id int64, components []inventory.Component) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM product_recipes WHERE product_id = $1`, id); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, c := range components {
		batch.Queue(`INSERT INTO product_recipes (product_id, material_id, quantity_per_unit) VALUES ($1, $2, $3)`, id, c.MaterialID, c.QuantityPerUnit)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *repository) UpdateRate(ctx context.Context, id int64, rate decimal.Decimal) error {
	return UpdateRate(ctx, r.db, id, rate)
}

// UpdateRate overwrites a product's master rate using exec, which may be
// a transaction owned by the caller.
func UpdateRate(ctx context.Context, exec Execer, id int64, rate decimal.Decimal) error {
	cmd, err := exec.Exec(ctx, `UPDATE products SET rate = $1, updated_at = NOW() WHERE id = $2`, rate, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", internalShared.ErrNotFound, id)
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "rate":
		return "rate " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
