package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pos-backend/internal/domain/order"
	"github.com/xenking/pos-backend/internal/domain/validate"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed JSON body")

// readBody returns the request body, treating an empty body as "{}".
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	if !jx.Valid(data) {
		return nil, errMalformedBody
	}
	return data, nil
}

// intState describes an integer field after decoding.
type intState int

const (
	intAbsent intState = iota
	intOK
	intInvalid
)

// decodeInt reads an integer given either as a JSON number without a
// fractional part or as a string of digits. Null counts as absent.
func decodeInt(d *jx.Decoder) (int64, intState, error) {
	switch d.Next() {
	case jx.Null:
		return 0, intAbsent, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return 0, intInvalid, err
		}
		if !n.IsInt() {
			return 0, intInvalid, nil
		}
		v, err := n.Int64()
		if err != nil {
			return 0, intInvalid, nil
		}
		return v, intOK, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, intInvalid, err
		}
		if strings.TrimSpace(s) == "" {
			return 0, intAbsent, nil
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, intInvalid, nil
		}
		return v, intOK, nil
	default:
		return 0, intInvalid, d.Skip()
	}
}

// decodeCreateOrder maps the request body onto an order.CreateRequest. Type
// mismatches do not abort decoding: they are collected in req.Malformed so
// they are reported together with every other validation failure.
func decodeCreateOrder(data []byte) (order.CreateRequest, error) {
	var (
		req       order.CreateRequest
		malformed validate.Errors
	)
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, errMalformedBody
	}

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "cashier_id":
			v, state, err := decodeInt(d)
			switch state {
			case intOK:
				req.CashierID = &v
			case intInvalid:
				malformed.Add("cashier_id", "The cashier id field must be an integer.")
			}
			return err
		case "items":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.Array:
			default:
				malformed.Add("items", "The items field must be an array.")
				return d.Skip()
			}
			req.Items = []order.ItemRequest{}
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d, len(req.Items), &malformed)
				req.Items = append(req.Items, item)
				return err
			})
		case "payment_method":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.String:
				s, err := d.Str()
				req.PaymentMethod = s
				return err
			default:
				malformed.Add("payment_method", "The payment method field must be a string.")
				return d.Skip()
			}
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, errors.Wrap(errMalformedBody, err.Error())
	}

	if malformed.Len() > 0 {
		req.Malformed = &malformed
	}
	return req, nil
}

func decodeItem(d *jx.Decoder, i int, malformed *validate.Errors) (order.ItemRequest, error) {
	var item order.ItemRequest
	if d.Next() != jx.Object {
		// Neither field can be read; both are then reported as required.
		return item, d.Skip()
	}

	pf := fmt.Sprintf("items.%d.product_id", i)
	qf := fmt.Sprintf("items.%d.quantity", i)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "product_id":
			v, state, err := decodeInt(d)
			switch state {
			case intOK:
				item.ProductID = &v
			case intInvalid:
				malformed.Addf(pf, "The selected %s is invalid.", pf)
			}
			return err
		case "quantity":
			v, state, err := decodeInt(d)
			switch state {
			case intOK:
				item.Quantity = &v
			case intInvalid:
				malformed.Addf(qf, "The %s field must be an integer.", qf)
			}
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

// loginRequest is the decoded body of POST /api/login.
type loginRequest struct {
	Email    string
	Password string
}

func decodeLogin(data []byte) (loginRequest, *validate.Errors, error) {
	var (
		req       loginRequest
		malformed validate.Errors
	)
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, nil, errMalformedBody
	}

	readString := func(d *jx.Decoder, field string, dst *string) error {
		switch d.Next() {
		case jx.Null:
			return d.Null()
		case jx.String:
			s, err := d.Str()
			*dst = s
			return err
		default:
			malformed.Addf(field, "The %s field must be a string.", validate.Label(field))
			return d.Skip()
		}
	}

	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "email":
			return readString(d, "email", &req.Email)
		case "password":
			return readString(d, "password", &req.Password)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return req, nil, errors.Wrap(errMalformedBody, err.Error())
	}
	return req, &malformed, nil
}
