package order

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pos-backend/internal/domain/product"
	"github.com/xenking/pos-backend/internal/domain/validate"
)

const instrumentationName = "github.com/xenking/pos-backend/internal/domain/order"

// DefaultMaxAttempts bounds transaction number generation per order.
const DefaultMaxAttempts = 5

// Column limits: quantities are INTEGER, money is NUMERIC(12,2).
const maxQuantity = math.MaxInt32

var maxTotal = decimal.RequireFromString("9999999999.99")

// ProductReader resolves products by ID in a single batch.
type ProductReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
}

// UserDirectory reports which user IDs exist.
type UserDirectory interface {
	UsersExist(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider sets the meter provider for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider for order spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// WithMaxAttempts sets how many transaction numbers are tried before an
// order is given up on. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock sets the source of order timestamps. Orders are stored at the
// wall-clock time of the returned value, truncated to whole seconds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service encapsulates order intake: validation, pricing and atomic persistence.
type Service struct {
	products ProductReader
	users    UserDirectory
	orders   Repository

	now         func() time.Time
	newNumber   func() (string, error)
	maxAttempts int

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	created        metric.Int64Counter
	retries        metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products ProductReader,
	users UserDirectory,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products:       products,
		users:          users,
		orders:         orders,
		now:            time.Now,
		newNumber:      NewTransactionNumber,
		maxAttempts:    DefaultMaxAttempts,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter(instrumentationName)
	var err error
	if s.created, err = meter.Int64Counter("pos.orders.created",
		metric.WithDescription("Orders persisted by order intake"),
	); err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	if s.retries, err = meter.Int64Counter("pos.orders.transaction_number.retries",
		metric.WithDescription("Transaction numbers regenerated after a uniqueness violation"),
	); err != nil {
		return nil, errors.Wrap(err, "create retries counter")
	}
	s.tracer = s.tracerProvider.Tracer(instrumentationName)

	return s, nil
}

// CreateOrder validates the request, prices every line against the current
// catalog, and persists the order with its items atomically. Validation
// failures are returned together as a *validate.Error.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.CreateOrder",
		trace.WithAttributes(attribute.Int("order.items", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	lines, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	totals := Price(lines)
	if err := checkBounds(totals); err != nil {
		return nil, err
	}
	now := s.now().Truncate(time.Second)
	for i := range totals.Items {
		totals.Items[i].CreatedAt = now
		totals.Items[i].UpdatedAt = now
	}

	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	o := &Order{
		CashierID:     req.CashierID,
		Total:         totals.Total,
		TotalQuantity: totals.Quantity,
		PaymentMethod: paymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         totals.Items,
	}
	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", paymentMethod)))
	span.SetAttributes(attribute.String("order.transaction_number", o.TransactionNumber))

	return o, nil
}

// List returns all live orders with their items and products.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// resolve runs every validation rule, batch-reads the referenced products and
// returns the priced lines in request order.
func (s *Service) resolve(ctx context.Context, req CreateRequest) ([]Line, error) {
	var v validate.Errors
	v.Merge(req.Malformed)

	if req.CashierID == nil && !v.Has("cashier_id") {
		v.Add("cashier_id", validate.Required("cashier_id"))
	}
	if len(req.Items) == 0 && !v.Has("items") {
		v.Add("items", validate.Required("items"))
	}

	ids := make([]int64, 0, len(req.Items))
	seen := make(map[int64]struct{}, len(req.Items))
	for i, item := range req.Items {
		pf, qf := productField(i), quantityField(i)

		if item.ProductID == nil {
			if !v.Has(pf) {
				v.Add(pf, validate.Required(pf))
			}
		} else if _, ok := seen[*item.ProductID]; !ok {
			seen[*item.ProductID] = struct{}{}
			ids = append(ids, *item.ProductID)
		}

		switch {
		case item.Quantity == nil:
			if !v.Has(qf) {
				v.Add(qf, validate.Required(qf))
			}
		case *item.Quantity < 1:
			v.Addf(qf, "The %s field must be at least 1.", qf)
		case *item.Quantity > maxQuantity:
			v.Addf(qf, "The %s field must not be greater than %d.", qf, maxQuantity)
		}
	}

	byID := make(map[int64]product.Product, len(ids))
	if len(ids) > 0 {
		fetched, err := s.products.GetByIDs(ctx, ids)
		if err != nil {
			return nil, errors.Wrap(err, "get products")
		}
		for _, p := range fetched {
			byID[p.ID] = p
		}
		for i, item := range req.Items {
			if item.ProductID == nil {
				continue
			}
			if _, ok := byID[*item.ProductID]; !ok {
				pf := productField(i)
				v.Addf(pf, "The selected %s is invalid.", pf)
			}
		}
	}

	if req.CashierID != nil {
		exists, err := s.users.UsersExist(ctx, []int64{*req.CashierID})
		if err != nil {
			return nil, errors.Wrap(err, "check cashier")
		}
		if !exists[*req.CashierID] {
			v.Add("cashier_id", "The selected cashier id is invalid.")
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}

	lines := make([]Line, len(req.Items))
	for i, item := range req.Items {
		p := byID[*item.ProductID]
		lines[i] = Line{
			Product:  ProductRef{ID: p.ID, Name: p.Name, Price: p.Price},
			Quantity: int(*item.Quantity),
		}
	}
	return lines, nil
}

// persist writes the order, regenerating the transaction number whenever the
// repository reports it as taken.
func (s *Service) persist(ctx context.Context, o *Order) error {
	for attempt := 1; ; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return errors.Wrap(err, "generate transaction number")
		}
		o.TransactionNumber = number

		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateTransactionNumber) || attempt >= s.maxAttempts {
			return errors.Wrap(err, "create order")
		}

		s.retries.Add(ctx, 1)
		zctx.From(ctx).Warn("Transaction number collision, retrying",
			zap.String("transaction_number", number),
			zap.Int("attempt", attempt),
		)
	}
}

// checkBounds rejects orders whose totals would not fit the order columns.
func checkBounds(t Totals) error {
	var v validate.Errors
	if t.Quantity > maxQuantity {
		v.Addf("items", "The total quantity must not be greater than %d.", maxQuantity)
	}
	if t.Total.GreaterThan(maxTotal) {
		v.Addf("items", "The order total must not be greater than %s.", maxTotal.StringFixed(2))
	}
	for i, it := range t.Items {
		if it.TotalItem.GreaterThan(maxTotal) {
			qf := quantityField(i)
			v.Addf(qf, "The %s field makes the line total exceed %s.", qf, maxTotal.StringFixed(2))
		}
	}
	return v.Err()
}

func productField(i int) string  { return fmt.Sprintf("items.%d.product_id", i) }
func quantityField(i int) string { return fmt.Sprintf("items.%d.quantity", i) }
