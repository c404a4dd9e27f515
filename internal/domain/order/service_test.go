package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pos-backend/internal/domain/product"
	"github.com/xenking/pos-backend/internal/domain/validate"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[int64]*product.Product
	calls  int
	getErr error
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockUsers struct {
	ids map[int64]bool
	err error
}

func (m *mockUsers) UsersExist(_ context.Context, ids []int64) (map[int64]bool, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = m.ids[id]
	}
	return out, nil
}

type mockOrderRepo struct {
	saved     []*Order
	numbers   []string
	failFirst int
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.numbers = append(m.numbers, o.TransactionNumber)
	if m.failFirst > 0 {
		m.failFirst--
		return errors.Wrap(ErrDuplicateTransactionNumber, "insert order")
	}
	if m.err != nil {
		return m.err
	}
	o.ID = int64(len(m.saved) + 1)
	for i := range o.Items {
		o.Items[i].ID = int64(i + 1)
		o.Items[i].OrderID = o.ID
	}
	m.saved = append(m.saved, o)
	return nil
}

func (m *mockOrderRepo) List(_ context.Context) ([]Order, error) {
	out := make([]Order, len(m.saved))
	for i, o := range m.saved {
		out[i] = *o
	}
	return out, m.err
}

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

func newTestProduct(id int64, name, price string) product.Product {
	return product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: 10}
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func newService(t *testing.T, products *mockProductRepo, orders *mockOrderRepo, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(products, &mockUsers{ids: map[int64]bool{1: true}}, orders, opts...)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 7, 8, 14, 44, 13, 500, time.Local) }
	return svc
}

func item(productID, qty int64) ItemRequest {
	return ItemRequest{ProductID: ptr(productID), Quantity: ptr(qty)}
}

func requireValidation(t *testing.T, err error) *validate.Error {
	t.Helper()
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	return verr
}

// --- Tests ---

func TestCreateOrder_Totals(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(t, newProductRepo(
		newTestProduct(10, "Nasi Goreng", "100"),
		newTestProduct(20, "Es Teh", "50"),
	), orders)

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(10, 2), item(20, 3)},
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(350).Equal(o.Total), "total %s", o.Total)
	assert.Equal(t, 5, o.TotalQuantity)
	assert.Equal(t, DefaultPaymentMethod, o.PaymentMethod)
	assert.Equal(t, int64(1), *o.CashierID)
	assert.Equal(t, 0, o.CreatedAt.Nanosecond())

	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(10), o.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(200).Equal(o.Items[0].TotalItem))
	assert.True(t, decimal.NewFromInt(100).Equal(o.Items[0].ProductPrice))
	assert.Equal(t, "Nasi Goreng", o.Items[0].Product.Name)
	assert.True(t, decimal.NewFromInt(150).Equal(o.Items[1].TotalItem))
	assert.Equal(t, o.CreatedAt, o.Items[1].CreatedAt)

	require.Len(t, orders.saved, 1)
}

func TestCreateOrder_ExactDecimalArithmetic(t *testing.T) {
	svc := newService(t, newProductRepo(
		newTestProduct(1, "Kopi", "0.10"),
		newTestProduct(2, "Roti", "0.20"),
	), &mockOrderRepo{})

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 3), item(2, 7)},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.70", o.Total.StringFixed(2))
	assert.True(t, decimal.RequireFromString("1.7").Equal(o.Total))
}

func TestCreateOrder_PaymentMethod(t *testing.T) {
	svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "18000")), &mockOrderRepo{})

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID:     ptr(int64(1)),
		Items:         []ItemRequest{item(1, 1)},
		PaymentMethod: "credit_card",
	})
	require.NoError(t, err)
	assert.Equal(t, "credit_card", o.PaymentMethod)

	o, err = svc.CreateOrder(context.Background(), CreateRequest{
		CashierID:     ptr(int64(1)),
		Items:         []ItemRequest{item(1, 1)},
		PaymentMethod: "   ",
	})
	require.NoError(t, err)
	assert.Equal(t, "cash", o.PaymentMethod)
}

func TestCreateOrder_PriceSnapshot(t *testing.T) {
	products := newProductRepo(newTestProduct(1, "Kopi", "100"))
	orders := &mockOrderRepo{}
	svc := newService(t, products, orders)

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 2)},
	})
	require.NoError(t, err)

	products.byID[1].Price = decimal.NewFromInt(999)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(listed[0].Items[0].ProductPrice))
	assert.True(t, decimal.NewFromInt(200).Equal(listed[0].Items[0].TotalItem))
	assert.True(t, decimal.NewFromInt(200).Equal(o.Total))
}

func TestCreateOrder_SingleBatchRead(t *testing.T) {
	products := newProductRepo(newTestProduct(1, "Kopi", "10"), newTestProduct(2, "Teh", "5"))
	svc := newService(t, products, &mockOrderRepo{})

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 1), item(2, 1), item(1, 4)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, products.calls)
}

func TestCreateOrder_UniqueTransactionNumbers(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "10")), orders)

	req := CreateRequest{CashierID: ptr(int64(1)), Items: []ItemRequest{item(1, 1)}}
	a, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.TransactionNumber, TransactionPrefix))
	assert.True(t, strings.HasPrefix(b.TransactionNumber, TransactionPrefix))
	assert.NotEqual(t, a.TransactionNumber, b.TransactionNumber)
}

func TestCreateOrder_RetriesDuplicateTransactionNumber(t *testing.T) {
	orders := &mockOrderRepo{failFirst: 2}
	svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "10")), orders)

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 1)},
	})
	require.NoError(t, err)
	require.Len(t, orders.numbers, 3)
	assert.Equal(t, orders.numbers[2], o.TransactionNumber)
	assert.NotEqual(t, orders.numbers[0], orders.numbers[1])
}

func TestCreateOrder_RetriesExhausted(t *testing.T) {
	orders := &mockOrderRepo{failFirst: 10}
	svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "10")), orders, WithMaxAttempts(3))

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 1)},
	})
	require.ErrorIs(t, err, ErrDuplicateTransactionNumber)
	assert.Len(t, orders.numbers, 3)
}

func TestCreateOrder_RepositoryError(t *testing.T) {
	orders := &mockOrderRepo{err: errors.New("db write failed")}
	svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "10")), orders)

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
	assert.Len(t, orders.numbers, 1, "non-collision errors are not retried")
}

func TestCreateOrder_Validation(t *testing.T) {
	malformedItems := &validate.Errors{}
	malformedItems.Add("items", "The items field must be an array.")

	malformedQty := &validate.Errors{}
	malformedQty.Add("items.0.quantity", "The items.0.quantity field must be an integer.")

	tests := []struct {
		name       string
		req        CreateRequest
		wantFields []string
	}{
		{
			name:       "empty request",
			req:        CreateRequest{},
			wantFields: []string{"cashier_id", "items"},
		},
		{
			name:       "empty items",
			req:        CreateRequest{CashierID: ptr(int64(1)), Items: []ItemRequest{}},
			wantFields: []string{"items"},
		},
		{
			name:       "items not an array",
			req:        CreateRequest{CashierID: ptr(int64(1)), Malformed: malformedItems},
			wantFields: []string{"items"},
		},
		{
			name: "missing product id and quantity",
			req: CreateRequest{
				CashierID: ptr(int64(1)),
				Items:     []ItemRequest{{}},
			},
			wantFields: []string{"items.0.product_id", "items.0.quantity"},
		},
		{
			name: "quantity below one",
			req: CreateRequest{
				CashierID: ptr(int64(1)),
				Items:     []ItemRequest{item(1, 1), item(1, 0)},
			},
			wantFields: []string{"items.1.quantity"},
		},
		{
			name: "non-integer quantity",
			req: CreateRequest{
				CashierID: ptr(int64(1)),
				Items:     []ItemRequest{{ProductID: ptr(int64(1))}},
				Malformed: malformedQty,
			},
			wantFields: []string{"items.0.quantity"},
		},
		{
			name: "unknown product",
			req: CreateRequest{
				CashierID: ptr(int64(1)),
				Items:     []ItemRequest{item(1, 1), item(999, 1)},
			},
			wantFields: []string{"items.1.product_id"},
		},
		{
			name: "unknown cashier",
			req: CreateRequest{
				CashierID: ptr(int64(42)),
				Items:     []ItemRequest{item(1, 1)},
			},
			wantFields: []string{"cashier_id"},
		},
		{
			name: "all failures reported together",
			req: CreateRequest{
				Items: []ItemRequest{item(999, 0), {Quantity: ptr(int64(1))}},
			},
			wantFields: []string{"cashier_id", "items.0.quantity", "items.1.product_id", "items.0.product_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderRepo{}
			svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", "10")), orders)

			_, err := svc.CreateOrder(context.Background(), tt.req)
			verr := requireValidation(t, err)
			assert.ElementsMatch(t, tt.wantFields, verr.Fields)
			assert.Empty(t, orders.numbers, "nothing may be persisted")
		})
	}
}

func TestCreateOrder_ValidationMessages(t *testing.T) {
	svc := newService(t, newProductRepo(), &mockOrderRepo{})

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(5, 0)},
	})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"The items.0.quantity field must be at least 1."}, verr.Messages["items.0.quantity"])
	assert.Equal(t, []string{"The selected items.0.product_id is invalid."}, verr.Messages["items.0.product_id"])
}

func TestCreateOrder_QuantityLimits(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		items   []ItemRequest
		field   string
		message string
	}{
		{
			name:    "quantity above column range",
			price:   "1",
			items:   []ItemRequest{item(1, math.MaxInt32+1)},
			field:   "items.0.quantity",
			message: fmt.Sprintf("The items.0.quantity field must not be greater than %d.", math.MaxInt32),
		},
		{
			name:    "line total overflows money column",
			price:   "10000",
			items:   []ItemRequest{item(1, 1_000_000)},
			field:   "items.0.quantity",
			message: "The items.0.quantity field makes the line total exceed 9999999999.99.",
		},
		{
			name:    "order total overflows money column",
			price:   "6000000000",
			items:   []ItemRequest{item(1, 1), item(1, 1)},
			field:   "items",
			message: "The order total must not be greater than 9999999999.99.",
		},
		{
			name:    "total quantity overflows column",
			price:   "0",
			items:   []ItemRequest{item(1, math.MaxInt32), item(1, 1)},
			field:   "items",
			message: fmt.Sprintf("The total quantity must not be greater than %d.", math.MaxInt32),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderRepo{}
			svc := newService(t, newProductRepo(newTestProduct(1, "Kopi", tt.price)), orders)

			_, err := svc.CreateOrder(context.Background(), CreateRequest{
				CashierID: ptr(int64(1)),
				Items:     tt.items,
			})
			verr := requireValidation(t, err)
			assert.Contains(t, verr.Messages[tt.field], tt.message)
			assert.Empty(t, orders.numbers, "nothing may be persisted")
		})
	}
}

func TestCreateOrder_QuantityAtLimit(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(t, newProductRepo(newTestProduct(1, "Permen", "0.01")), orders)

	o, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, math.MaxInt32)},
	})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, o.TotalQuantity)
	assert.True(t, decimal.RequireFromString("21474836.47").Equal(o.Total), o.Total.String())
}

func TestCreateOrder_LookupErrors(t *testing.T) {
	products := newProductRepo()
	products.getErr = errors.New("db down")
	svc := newService(t, products, &mockOrderRepo{})

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		CashierID: ptr(int64(1)),
		Items:     []ItemRequest{item(1, 1)},
	})
	require.Error(t, err)
	var verr *validate.Error
	assert.False(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "get products")
}

func TestPrice(t *testing.T) {
	totals := Price([]Line{
		{Product: ProductRef{ID: 1, Price: decimal.RequireFromString("19.99")}, Quantity: 3},
		{Product: ProductRef{ID: 2, Price: decimal.RequireFromString("0.01")}, Quantity: 1},
	})

	assert.Equal(t, "59.97", totals.Items[0].TotalItem.StringFixed(2))
	assert.Equal(t, "59.98", totals.Total.StringFixed(2))
	assert.Equal(t, 4, totals.Quantity)

	sum := decimal.Zero
	for _, it := range totals.Items {
		assert.True(t, it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Equal(it.TotalItem))
		sum = sum.Add(it.TotalItem)
	}
	assert.True(t, sum.Equal(totals.Total))
}

func TestNewTransactionNumber(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := range 1000 {
		n, err := NewTransactionNumber()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(n, TransactionPrefix), "number %d: %s", i, n)
		assert.Len(t, n, len(TransactionPrefix)+32)
		assert.Equal(t, strings.ToUpper(n), n)
		_, dup := seen[n]
		require.False(t, dup, fmt.Sprintf("duplicate %s", n))
		seen[n] = struct{}{}
	}
}
