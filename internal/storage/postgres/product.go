package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/product"
)

const (
	productColumns = `p.id, p.category_id, p.name, p.description, p.price, p.stock, p.image,
		p.created_at, p.updated_at,
		c.id, c.name, c.description, c.created_at, c.updated_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.id`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`

	listCategoriesSQL = `SELECT id, name, description, created_at, updated_at
		FROM categories ORDER BY id`

	upsertCategorySQL = `INSERT INTO categories (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	findCategoryByNameSQL = `SELECT id FROM categories WHERE name = $1`

	upsertProductSQL = `INSERT INTO products (category_id, name, description, price, stock, image)
		SELECT $1::bigint, $2::text, $3::text, $4::numeric, $5::integer, $6::text
		WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $2::text)
		RETURNING id`

	updateProductPriceSQL = `UPDATE products SET price = $2, updated_at = LOCALTIMESTAMP(0) WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products with their categories, ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByIDs returns products matching any of the given IDs in one query.
// Missing IDs are simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ListCategories returns every category ordered by ID.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Category, error) {
		var c product.Category
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		return c, err
	})
}

// EnsureCategory returns the ID of the category with the given name,
// creating it when missing.
func (r *ProductRepository) EnsureCategory(ctx context.Context, name, description string) (int64, error) {
	if _, err := r.pool.Exec(ctx, upsertCategorySQL, name, description); err != nil {
		return 0, fmt.Errorf("inserting category %q: %w", name, err)
	}
	var id int64
	if err := r.pool.QueryRow(ctx, findCategoryByNameSQL, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("finding category %q: %w", name, err)
	}
	return id, nil
}

// Insert adds p unless a product with the same name exists. It reports
// whether a row was written.
func (r *ProductRepository) Insert(ctx context.Context, p *product.Product) (bool, error) {
	err := r.pool.QueryRow(ctx, upsertProductSQL,
		p.CategoryID, p.Name, p.Description, p.Price, p.Stock, p.Image,
	).Scan(&p.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("inserting product %q: %w", p.Name, err)
	}
	return true, nil
}

// UpdatePrice changes the catalog price of a product.
func (r *ProductRepository) UpdatePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, updateProductPriceSQL, id, price); err != nil {
		return fmt.Errorf("updating price of product %d: %w", id, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p        product.Product
		price    decimal.Decimal
		catID    *int64
		catName  *string
		catDesc  *string
		catCrAt  *time.Time
		catUpdAt *time.Time
	)
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &price, &p.Stock, &p.Image,
		&p.CreatedAt, &p.UpdatedAt,
		&catID, &catName, &catDesc, &catCrAt, &catUpdAt,
	)
	p.Price = price
	if catID != nil {
		p.Category = &product.Category{
			ID:          *catID,
			Name:        deref(catName),
			Description: deref(catDesc),
			CreatedAt:   deref(catCrAt),
			UpdatedAt:   deref(catUpdAt),
		}
	}
	return p, err
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
