package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-backend/internal/domain/report"
	"github.com/xenking/pos-backend/internal/domain/validate"
)

// Summary handles GET /api/reports/summary?start_date=&end_date=.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	win, ok := h.reportWindow(w, r)
	if !ok {
		return
	}

	s, err := h.reports.Summary(r.Context(), win)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeReport(w, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total_revenue", func(e *jx.Encoder) { encodeMoney(e, s.TotalRevenue) })
			e.Field("total_sold_quantity", func(e *jx.Encoder) { e.Int64(s.TotalSoldQuantity) })
		})
	})
}

// ProductSales handles GET /api/reports/product-sales?start_date=&end_date=.
func (h *Handler) ProductSales(w http.ResponseWriter, r *http.Request) {
	win, ok := h.reportWindow(w, r)
	if !ok {
		return
	}

	rows, err := h.reports.ProductSales(r.Context(), win)
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeReport(w, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, row := range rows {
				e.Obj(func(e *jx.Encoder) {
					e.Field("product_id", func(e *jx.Encoder) { e.Int64(row.ProductID) })
					e.Field("product_name", func(e *jx.Encoder) { e.Str(row.ProductName) })
					e.Field("product_price", func(e *jx.Encoder) { encodeMoney(e, row.ProductPrice) })
					e.Field("total_quantity", func(e *jx.Encoder) { e.Int64(row.TotalQuantity) })
					e.Field("total_item", func(e *jx.Encoder) { encodeMoney(e, row.TotalItem) })
				})
			}
		})
	})
}

// reportWindow parses the date query parameters. On failure it writes the
// report error envelope and returns false.
func (h *Handler) reportWindow(w http.ResponseWriter, r *http.Request) (report.Window, bool) {
	q := r.URL.Query()
	win, err := report.ParseWindow(q.Get("start_date"), q.Get("end_date"), h.loc)
	if err == nil {
		return win, true
	}

	var verr *validate.Error
	if !errors.As(err, &verr) {
		internalError(w, r, err)
		return report.Window{}, false
	}
	writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("error") })
			e.Field("message", func(e *jx.Encoder) { encodeFieldErrors(e, verr) })
		})
	})
	return report.Window{}, false
}

func writeReport(w http.ResponseWriter, data func(e *jx.Encoder)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("status", func(e *jx.Encoder) { e.Str("success") })
			e.Field("data", data)
		})
	})
}
