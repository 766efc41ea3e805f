package fix

import (
	"errors"
	"fmt"

	"fix-match-engine/src/engine"
)

// RejectReason classifies why a request produced a Rejected report.
type RejectReason string

const (
	ReasonValidation       RejectReason = "validation"
	ReasonNotFound         RejectReason = "not_found"
	ReasonState            RejectReason = "state"
	ReasonHalted           RejectReason = "halted"
	ReasonStrategyDisabled RejectReason = "strategy_disabled"
	ReasonInternal         RejectReason = "internal"
)

// ValidationError is returned for malformed or out-of-range order fields.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// StateError reports a transition out of a terminal order state.
type StateError struct {
	OrderID string
	From    engine.OrderStatus
	To      engine.OrderStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("order %s is %s, cannot become %s", e.OrderID, e.From, e.To)
}

type HaltedError struct {
	Reason string
}

func (e *HaltedError) Error() string {
	if e.Reason == "" {
		return "exchange halted"
	}
	return "exchange halted: " + e.Reason
}

type DisabledError struct {
	Source string
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("strategy %s is disabled", e.Source)
}

// ReasonFor maps an error from any layer to the reject reason reported on
// the wire.
func ReasonFor(err error) RejectReason {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		state      *StateError
		halted     *HaltedError
		disabled   *DisabledError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return ReasonValidation
	case errors.As(err, &notFound):
		return ReasonNotFound
	case errors.As(err, &state):
		return ReasonState
	case errors.As(err, &halted):
		return ReasonHalted
	case errors.As(err, &disabled):
		return ReasonStrategyDisabled
	case errors.Is(err, engine.ErrOrderNotFound):
		return ReasonNotFound
	case errors.Is(err, engine.ErrInvalidSide),
		errors.Is(err, engine.ErrInvalidPrice),
		errors.Is(err, engine.ErrInvalidQuantity),
		errors.Is(err, engine.ErrUnknownSymbol),
		errors.Is(err, engine.ErrDuplicateOrder),
		errors.Is(err, ErrMissingField),
		errors.Is(err, ErrMalformedMessage):
		return ReasonValidation
	default:
		return ReasonInternal
	}
}
