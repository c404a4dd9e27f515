package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pos-backend/internal/domain/order"
)

const (
	transactionNumberConstraint = "orders_transaction_number_key"

	insertOrderSQL = `INSERT INTO orders
		(cashier_id, transaction_number, total, total_quantity, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, product_id, quantity, product_price, total_item, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	listOrdersSQL = `SELECT id, cashier_id, transaction_number, total, total_quantity,
		payment_method, created_at, updated_at
		FROM orders
		WHERE deleted_at IS NULL
		ORDER BY id`

	listOrderItemsSQL = `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.product_price,
		oi.total_item, oi.created_at, oi.updated_at, p.name, p.price
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`

	transactionNumberExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE transaction_number = $1)`

	eachTransactionNumberSQL = `SELECT transaction_number FROM orders`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order header and then all items in a single batch, inside
// one transaction. A clash on the transaction number is reported as
// order.ErrDuplicateTransactionNumber and nothing is written.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.CashierID, o.TransactionNumber, o.Total, o.TotalQuantity,
			o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
		).Scan(&o.ID)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			batch.Queue(insertOrderItemSQL,
				o.ID, it.ProductID, it.Quantity, it.ProductPrice, it.TotalItem,
				it.CreatedAt, it.UpdatedAt,
			).QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		o.ID = 0
		for i := range o.Items {
			o.Items[i].ID = 0
			o.Items[i].OrderID = 0
		}
		if isUniqueViolation(err, transactionNumberConstraint) {
			return errors.Wrapf(order.ErrDuplicateTransactionNumber, "transaction number %q", o.TransactionNumber)
		}
		return fmt.Errorf("creating order %q: %w", o.TransactionNumber, err)
	}

	return nil
}

// List returns live orders in insertion order. Items are loaded with a second
// query and attached to their orders.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		var o order.Order
		err := row.Scan(&o.ID, &o.CashierID, &o.TransactionNumber, &o.Total, &o.TotalQuantity,
			&o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err = r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.ProductPrice,
			&it.TotalItem, &it.CreatedAt, &it.UpdatedAt, &it.Product.Name, &it.Product.Price)
		it.Product.ID = it.ProductID
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning order items: %w", err)
	}
	for _, it := range items {
		i := byID[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}

	return orders, nil
}

// TransactionNumberExists reports whether any order, live or soft-deleted,
// carries the given transaction number.
func (r *OrderRepository) TransactionNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, transactionNumberExistsSQL, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking transaction number %q: %w", number, err)
	}
	return exists, nil
}

// EachTransactionNumber calls fn for every stored transaction number.
func (r *OrderRepository) EachTransactionNumber(ctx context.Context, fn func(string)) error {
	rows, err := r.pool.Query(ctx, eachTransactionNumberSQL)
	if err != nil {
		return fmt.Errorf("listing transaction numbers: %w", err)
	}
	defer rows.Close()

	var number string
	_, err = pgx.ForEachRow(rows, []any{&number}, func() error {
		fn(number)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning transaction numbers: %w", err)
	}
	return nil
}
