package engine

import "errors"

var (
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrOrderNotFound   = errors.New("order not found")
	ErrDuplicateOrder  = errors.New("duplicate order id")
	ErrWouldCross      = errors.New("order would cross the opposite side")
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrInvariant       = errors.New("order book invariant violated")
)
