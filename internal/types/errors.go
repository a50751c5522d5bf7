package types

import "errors"

// Sentinel errors for the order engine. pkg/response maps these onto the
// HTTP surface; internally they are matched with errors.Is.
var (
	// ErrOrderNotFound is returned when an order id has no ledger entry
	ErrOrderNotFound = errors.New("order not found")

	// ErrCancelStatus is returned when canceling an order that is not
	// pending, or a market order (markets settle in the same transaction
	// and never sit pending)
	ErrCancelStatus = errors.New("order cannot be canceled in its current state")

	// ErrUnauthorized is returned when the caller does not own the order
	ErrUnauthorized = errors.New("order does not belong to caller")

	// ErrOverflow is returned when an id counter is exhausted
	ErrOverflow = errors.New("id space exhausted")

	// ErrMarketOrderGroupKey is returned when a group key is requested for
	// a market order; market orders never enter the trigger index
	ErrMarketOrderGroupKey = errors.New("cannot derive group key for market order")

	// ErrTriggerPriceNotFound is returned when a non-market order carries
	// no trigger price
	ErrTriggerPriceNotFound = errors.New("trigger price not found")

	// ErrIndexNotFound is a consistency-check failure: an order id was
	// expected in its trigger-index neighborhood but is absent
	ErrIndexNotFound = errors.New("order not found in trigger index")

	// ErrPriceUnavailable is returned by the price service when a pair
	// cannot be quoted. The dispatcher converts it into cancel-and-refund
	// for the affected group rather than failing the tick.
	ErrPriceUnavailable = errors.New("market price unavailable")

	// ErrPositionNotFound is returned when a perpetual position no longer
	// exists at evaluation time
	ErrPositionNotFound = errors.New("position not found")

	// ErrReplyNotFound is returned when a reply id has no correlation record
	ErrReplyNotFound = errors.New("reply correlation not found")

	// ErrReplyConsumed is returned on a second resolution attempt for the
	// same reply id; settlement is applied at most once
	ErrReplyConsumed = errors.New("reply correlation already consumed")
)

// ValidationError is a creation-time rejection; no state is changed
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
