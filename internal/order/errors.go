package order

import (
	"errors"
	"strings"
)

// ErrNothingToOrder is returned when a submission has no acceptable lines.
var ErrNothingToOrder = errors.New("nothing valid to order")

// ErrPersistence is wrapped around any failure to store the order.
var ErrPersistence = errors.New("could not save order")

// InputError is a malformed or missing field, rejected before any data access.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// RejectedError lists one reason per cart line that failed validation.
type RejectedError struct {
	Reasons []string
}

func (e *RejectedError) Error() string {
	return "order rejected: " + strings.Join(e.Reasons, "; ")
}
