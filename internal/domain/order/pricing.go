package order

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionPrefix starts every transaction number.
const TransactionPrefix = "TRX-"

// currencyPlaces is the number of decimal places money is kept at.
const currencyPlaces = 2

// Line is a product resolved at its current price together with the
// requested quantity.
type Line struct {
	Product  ProductRef
	Quantity int
}

// Totals is the result of pricing a set of lines.
type Totals struct {
	Items    []Item
	Total    decimal.Decimal
	Quantity int
}

// Price folds lines into order items and order totals. The unit price of
// every line is captured into Item.ProductPrice; no further reads happen.
func Price(lines []Line) Totals {
	t := Totals{
		Items: make([]Item, len(lines)),
		Total: decimal.Zero,
	}
	for i, l := range lines {
		price := l.Product.Price.Round(currencyPlaces)
		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(currencyPlaces)

		t.Items[i] = Item{
			ProductID:    l.Product.ID,
			Quantity:     l.Quantity,
			ProductPrice: price,
			TotalItem:    lineTotal,
			Product:      l.Product,
		}
		t.Total = t.Total.Add(lineTotal)
		t.Quantity += l.Quantity
	}
	t.Total = t.Total.Round(currencyPlaces)
	return t
}

// NewTransactionNumber returns "TRX-" followed by the 32 upper-case hex
// digits of a UUIDv7: a millisecond timestamp plus 74 random bits.
func NewTransactionNumber() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return TransactionPrefix + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")), nil
}
