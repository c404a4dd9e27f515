package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pos-backend/internal/domain/validate"
)

// timestampLayout renders stored wall-clock timestamps with microseconds and
// the zone offset ("Z" for UTC).
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// writeJSON encodes one JSON value produced by fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeMessage writes {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// writeValidation writes the 422 body used by order intake and login:
// {"message": "<first> (and N more errors)", "errors": {field: [msgs]}}.
func writeValidation(w http.ResponseWriter, verr *validate.Error) {
	writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(verr.Error()) })
			e.Field("errors", func(e *jx.Encoder) { encodeFieldErrors(e, verr) })
		})
	})
}

func encodeFieldErrors(e *jx.Encoder, verr *validate.Error) {
	e.Obj(func(e *jx.Encoder) {
		for _, f := range verr.Fields {
			e.Field(f, func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, m := range verr.Messages[f] {
						e.Str(m)
					}
				})
			})
		}
	})
}

// handleError answers with 422 for validation failures and a generic 500 for
// anything else. Internal details are logged, never returned.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	if errors.As(err, &verr) {
		writeValidation(w, verr)
		return
	}
	internalError(w, r, err)
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeMessage(w, http.StatusInternalServerError, "Server Error")
}

// encodeMoney writes d as an exact JSON number with two decimal places.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

// encodeTime writes the wall clock of t in the handler's location. Stored
// timestamps carry no zone, so only the clock reading is meaningful.
func (h *Handler) encodeTime(e *jx.Encoder, t time.Time) {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), h.loc)
	e.Str(wall.Format(timestampLayout))
}

func encodeOptInt(e *jx.Encoder, v *int64) {
	if v == nil {
		e.Null()
		return
	}
	e.Int64(*v)
}
