package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/validate"
)

// DefaultPaymentMethod is used when a request does not name one.
const DefaultPaymentMethod = "cash"

// ErrDuplicateTransactionNumber is returned by Repository.Create when the
// generated transaction number is already taken. The order was not written.
var ErrDuplicateTransactionNumber = errors.New("duplicate transaction number")

// Order is a completed sale recorded at the till.
type Order struct {
	ID                int64
	TransactionNumber string
	CashierID         *int64
	Total             decimal.Decimal
	TotalQuantity     int
	PaymentMethod     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []Item
}

// Item is a single line of an order, priced when the order was placed.
type Item struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	Quantity     int
	ProductPrice decimal.Decimal
	TotalItem    decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Product      ProductRef
}

// ProductRef is the product detail shown next to an order line.
type ProductRef struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// ItemRequest is one requested line. Nil fields were absent from the request.
type ItemRequest struct {
	ProductID *int64
	Quantity  *int64
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	CashierID     *int64
	Items         []ItemRequest
	PaymentMethod string

	// Malformed carries decode-time type errors (e.g. "items" not being an
	// array). They are reported together with the checks done by the service.
	Malformed *validate.Errors
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create writes the order and all of its items in one transaction and
	// fills in the generated IDs. Either every row is written or none is.
	Create(ctx context.Context, o *Order) error
	// List returns all orders that are not soft-deleted, with items and
	// their products, oldest first.
	List(ctx context.Context) ([]Order, error)
}
