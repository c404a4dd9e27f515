package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/report"
)

// Windows are bound as TIMESTAMP(0) wall-clock values: both bounds are
// inclusive, matching the whole-second resolution of the stored timestamps.
const (
	revenueSQL = `SELECT COALESCE(SUM(total), 0)
		FROM orders
		WHERE deleted_at IS NULL
		  AND created_at BETWEEN $1 AND $2`

	soldQuantitySQL = `SELECT COALESCE(SUM(oi.quantity), 0)::bigint
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.deleted_at IS NULL
		  AND o.created_at BETWEEN $1 AND $2`

	productSalesSQL = `SELECT p.id, p.name, p.price,
		       SUM(oi.quantity)::bigint AS total_quantity,
		       SUM(oi.total_item) AS total_item
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.deleted_at IS NULL
		  AND oi.created_at BETWEEN $1 AND $2
		GROUP BY p.id, p.name, p.price
		ORDER BY total_quantity DESC, MIN(oi.id)`
)

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository implements report.Repository backed by PostgreSQL.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Revenue sums the totals of live orders created within w.
func (r *ReportRepository) Revenue(ctx context.Context, w report.Window) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := r.pool.QueryRow(ctx, revenueSQL, w.Start, w.End).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing revenue: %w", err)
	}
	return sum, nil
}

// SoldQuantity sums item quantities of live orders created within w.
func (r *ReportRepository) SoldQuantity(ctx context.Context, w report.Window) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, soldQuantitySQL, w.Start, w.End).Scan(&n); err != nil {
		return 0, fmt.Errorf("summing sold quantity: %w", err)
	}
	return n, nil
}

// ProductSales aggregates items created within w by product.
func (r *ReportRepository) ProductSales(ctx context.Context, w report.Window) ([]report.ProductSales, error) {
	rows, err := r.pool.Query(ctx, productSalesSQL, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("querying product sales: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.ProductSales, error) {
		var s report.ProductSales
		err := row.Scan(&s.ProductID, &s.ProductName, &s.ProductPrice, &s.TotalQuantity, &s.TotalItem)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning product sales: %w", err)
	}
	return out, nil
}
