package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-backend/internal/domain/order"
)

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		h.badBody(w, r, err)
		return
	}
	req, err := decodeCreateOrder(data)
	if err != nil {
		h.badBody(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("Order created successfully") })
			e.Field("data", func(e *jx.Encoder) { h.encodeOrder(e, o) })
		})
	})
}

// ListOrders handles GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("data", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range orders {
						h.encodeOrder(e, &orders[i])
					}
				})
			})
		})
	})
}

// badBody answers requests whose body is not a JSON object.
func (h *Handler) badBody(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMalformedBody) {
		writeMessage(w, http.StatusBadRequest, "The request body must be a valid JSON object.")
		return
	}
	internalError(w, r, err)
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("transaction_number", func(e *jx.Encoder) { e.Str(o.TransactionNumber) })
		e.Field("cashier_id", func(e *jx.Encoder) { encodeOptInt(e, o.CashierID) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("total_quantity", func(e *jx.Encoder) { e.Int(o.TotalQuantity) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("created_at", func(e *jx.Encoder) { h.encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { h.encodeTime(e, o.UpdatedAt) })
		e.Field("order_items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range o.Items {
					h.encodeOrderItem(e, &o.Items[i])
				}
			})
		})
	})
}

func (h *Handler) encodeOrderItem(e *jx.Encoder, it *order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(it.OrderID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(it.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("product_price", func(e *jx.Encoder) { encodeMoney(e, it.ProductPrice) })
		e.Field("total_item", func(e *jx.Encoder) { encodeMoney(e, it.TotalItem) })
		e.Field("created_at", func(e *jx.Encoder) { h.encodeTime(e, it.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { h.encodeTime(e, it.UpdatedAt) })
		e.Field("product", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Int64(it.Product.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Product.Name) })
				e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Product.Price) })
			})
		})
	})
}
