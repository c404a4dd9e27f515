// Package validate collects field-level validation failures so that every
// violated field of a request can be reported in a single response.
package validate

import (
	"fmt"
	"strings"
)

// Errors accumulates messages keyed by field path (e.g. "items.0.product_id").
// Field order is preserved in the order fields were first reported.
// The zero value is ready to use.
type Errors struct {
	fields   []string
	messages map[string][]string
}

// Add records a message for the given field path.
func (e *Errors) Add(field, message string) {
	if e.messages == nil {
		e.messages = make(map[string][]string)
	}
	if _, ok := e.messages[field]; !ok {
		e.fields = append(e.fields, field)
	}
	e.messages[field] = append(e.messages[field], message)
}

// Addf records a formatted message for the given field path.
func (e *Errors) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Has reports whether any message was recorded for field.
func (e *Errors) Has(field string) bool {
	_, ok := e.messages[field]
	return ok
}

// Len returns the number of fields with at least one message.
func (e *Errors) Len() int {
	return len(e.fields)
}

// Merge appends every message of other into e.
func (e *Errors) Merge(other *Errors) {
	if other == nil {
		return
	}
	for _, f := range other.fields {
		for _, m := range other.messages[f] {
			e.Add(f, m)
		}
	}
}

// Err returns nil when nothing was recorded, or an *Error snapshot otherwise.
func (e *Errors) Err() error {
	if e.Len() == 0 {
		return nil
	}
	out := &Error{
		Fields:   append([]string(nil), e.fields...),
		Messages: make(map[string][]string, len(e.messages)),
	}
	for k, v := range e.messages {
		out.Messages[k] = append([]string(nil), v...)
	}
	return out
}

// Error is a validation failure covering one or more fields.
type Error struct {
	Fields   []string
	Messages map[string][]string
}

// Error renders the first message and the number of remaining failures, the
// same way the JSON "message" summary is built.
func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	first := e.Messages[e.Fields[0]][0]
	total := 0
	for _, msgs := range e.Messages {
		total += len(msgs)
	}
	if total == 1 {
		return first
	}
	rest := total - 1
	noun := "errors"
	if rest == 1 {
		noun = "error"
	}
	return fmt.Sprintf("%s (and %d more %s)", first, rest, noun)
}

// Label turns a field path into the human-readable attribute name used in
// messages: "cashier_id" becomes "cashier id", while nested paths such as
// "items.0.product_id" are kept verbatim.
func Label(field string) string {
	if strings.Contains(field, ".") {
		return field
	}
	return strings.ReplaceAll(field, "_", " ")
}

// Required is the message for a missing field.
func Required(field string) string {
	return fmt.Sprintf("The %s field is required.", Label(field))
}
