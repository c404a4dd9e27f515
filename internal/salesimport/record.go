// Package salesimport loads order exports from legacy tills.
//
// An export is newline-delimited JSON, optionally gzip-compressed, one order
// per line:
//
//	{"transaction_number":"TRX-...","cashier_id":1,"payment_method":"cash",
//	 "created_at":"2025-07-01 10:00:00",
//	 "items":[{"product_id":3,"quantity":2,"product_price":"18000.00"}]}
//
// Totals are recomputed from the exported unit prices with order.Price, never
// read from the file.
package salesimport

import (
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/order"
)

// Record is one decoded export line.
type Record struct {
	TransactionNumber string
	CashierID         *int64
	PaymentMethod     string
	CreatedAt         time.Time
	Items             []RecordItem
}

// RecordItem is one exported order line with the unit price it was sold at.
type RecordItem struct {
	ProductID    int64
	Quantity     int
	ProductPrice decimal.Decimal
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// decodeRecord parses and checks a single line. Wall-clock timestamps without
// an offset are read in loc.
func decodeRecord(line []byte, loc *time.Location) (*Record, error) {
	var (
		rec       Record
		createdAt string
	)
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "transaction_number":
			s, err := d.Str()
			rec.TransactionNumber = s
			return err
		case "cashier_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			id, err := d.Int64()
			if err != nil {
				return err
			}
			rec.CashierID = &id
			return nil
		case "payment_method":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			rec.PaymentMethod = s
			return err
		case "created_at":
			s, err := d.Str()
			createdAt = s
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return errors.Wrapf(err, "item %d", len(rec.Items))
				}
				rec.Items = append(rec.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if rec.TransactionNumber == "" {
		return nil, errors.New("transaction_number is required")
	}
	if len(rec.Items) == 0 {
		return nil, errors.New("items must not be empty")
	}
	if rec.PaymentMethod == "" {
		rec.PaymentMethod = order.DefaultPaymentMethod
	}
	if rec.CreatedAt, err = parseTime(createdAt, loc); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeItem(d *jx.Decoder) (RecordItem, error) {
	var (
		item     RecordItem
		hasPrice bool
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "product_id":
			id, err := d.Int64()
			item.ProductID = id
			return err
		case "quantity":
			q, err := d.Int()
			item.Quantity = q
			return err
		case "product_price":
			p, err := decodeMoney(d)
			item.ProductPrice = p
			hasPrice = err == nil
			return err
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
		return item, err
	case item.ProductID <= 0:
		return item, errors.New("product_id must be positive")
	case item.Quantity < 1:
		return item, errors.New("quantity must be at least 1")
	case !hasPrice:
		return item, errors.New("product_price is required")
	case item.ProductPrice.IsNegative():
		return item, errors.New("product_price must not be negative")
	}
	return item, nil
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s", d.Next())
	}
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("created_at is required")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, errors.Errorf("created_at %s is not a timestamp", strconv.Quote(s))
}

// toOrder prices the record into an order ready to persist.
func (r *Record) toOrder() *order.Order {
	lines := make([]order.Line, len(r.Items))
	for i, it := range r.Items {
		lines[i] = order.Line{
			Product:  order.ProductRef{ID: it.ProductID, Price: it.ProductPrice},
			Quantity: it.Quantity,
		}
	}
	totals := order.Price(lines)
	for i := range totals.Items {
		totals.Items[i].CreatedAt = r.CreatedAt
		totals.Items[i].UpdatedAt = r.CreatedAt
	}
	return &order.Order{
		TransactionNumber: r.TransactionNumber,
		CashierID:         r.CashierID,
		Total:             totals.Total,
		TotalQuantity:     totals.Quantity,
		PaymentMethod:     r.PaymentMethod,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.CreatedAt,
		Items:             totals.Items,
	}
}
