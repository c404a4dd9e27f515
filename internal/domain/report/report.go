package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/pos-backend/internal/domain/validate"
)

// DateLayout is the only accepted format for report dates (Y-m-d).
const DateLayout = "2006-01-02"

// Window is a closed reporting interval at second resolution: it includes
// both Start (00:00:00 of the first day) and End (23:59:59 of the last day).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ParseWindow validates the start_date and end_date query values and builds
// the window in loc. Every violated field is reported in the returned
// *validate.Error.
func ParseWindow(start, end string, loc *time.Location) (Window, error) {
	var v validate.Errors

	startDay, startOK := parseDate(&v, "start_date", start, loc)
	endDay, endOK := parseDate(&v, "end_date", end, loc)
	if startOK && endOK && endDay.Before(startDay) {
		v.Add("end_date", "The end date field must be a date after or equal to start date.")
	}
	if err := v.Err(); err != nil {
		return Window{}, err
	}

	return Window{
		Start: startDay,
		End:   time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 23, 59, 59, 0, loc),
	}, nil
}

func parseDate(v *validate.Errors, field, value string, loc *time.Location) (time.Time, bool) {
	if value == "" {
		v.Add(field, validate.Required(field))
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil || len(value) != len(DateLayout) {
		v.Addf(field, "The %s field must match the format Y-m-d.", validate.Label(field))
		return time.Time{}, false
	}
	return t, true
}

// Summary is the revenue and unit count of orders placed within a window.
type Summary struct {
	TotalRevenue      decimal.Decimal
	TotalSoldQuantity int64
}

// ProductSales is the per-product aggregate of order lines within a window.
type ProductSales struct {
	ProductID     int64
	ProductName   string
	ProductPrice  decimal.Decimal
	TotalQuantity int64
	TotalItem     decimal.Decimal
}

// Repository runs the report aggregations.
type Repository interface {
	// Revenue sums orders.total of live orders created within w.
	Revenue(ctx context.Context, w Window) (decimal.Decimal, error)
	// SoldQuantity sums the quantities of items whose order was created
	// within w, regardless of the items' own timestamps.
	SoldQuantity(ctx context.Context, w Window) (int64, error)
	// ProductSales groups items whose own created_at falls within w by
	// product, ordered by total quantity descending, ties by first sale.
	ProductSales(ctx context.Context, w Window) ([]ProductSales, error)
}
