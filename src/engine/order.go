package engine

import (
	"fmt"
	"time"
)

type Side uint8

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "BUY", "buy", "Buy":
		*s = SideBuy
	case "SELL", "sell", "Sell":
		*s = SideSell
	default:
		return fmt.Errorf("side %q: %w", b, ErrInvalidSide)
	}
	return nil
}

// Opposite returns the side an incoming order of side s matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderStatus uint8

const (
	StatusNew OrderStatus = iota + 1
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected
}

// edge case: price stored as int64 ticks to avoid floating-point precision errors
type Order struct {
	ID            string
	ClientOrderID string
	Source        string
	Symbol        string
	Side          Side
	Price         int64 // price in ticks
	Quantity      int64
	Remaining     int64
	Status        OrderStatus
	Timestamp     time.Time
	Sequence      uint64 // arrival order, assigned by the matcher
}

// NewOrder builds an order with its full quantity remaining. Sequence and
// Timestamp are stamped by the matcher on submission.
func NewOrder(id, clientOrderID, source, symbol string, side Side, price, quantity int64) *Order {
	return &Order{
		ID:            id,
		ClientOrderID: clientOrderID,
		Source:        source,
		Symbol:        symbol,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		Remaining:     quantity,
		Status:        StatusNew,
	}
}

func (o *Order) Filled() int64 {
	return o.Quantity - o.Remaining
}

func (o *Order) IsFilled() bool {
	return o.Remaining == 0
}

func (o *Order) validate() error {
	if !o.Side.Valid() {
		return fmt.Errorf("order %s: side %d: %w", o.ID, o.Side, ErrInvalidSide)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order %s: quantity %d: %w", o.ID, o.Quantity, ErrInvalidQuantity)
	}
	if o.Price <= 0 {
		return fmt.Errorf("order %s: price %d: %w", o.ID, o.Price, ErrInvalidPrice)
	}
	if o.Remaining <= 0 || o.Remaining > o.Quantity {
		return fmt.Errorf("order %s: remaining %d of %d: %w", o.ID, o.Remaining, o.Quantity, ErrInvalidQuantity)
	}
	return nil
}

// fill decrements the remaining quantity. It refuses to overfill so a bad
// caller can never drive Remaining negative.
func (o *Order) fill(qty int64) error {
	if qty <= 0 || qty > o.Remaining {
		return fmt.Errorf("order %s: fill %d with %d remaining: %w", o.ID, qty, o.Remaining, ErrInvariant)
	}
	o.Remaining -= qty
	if o.Remaining == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	return nil
}

// Trade is one match between a resting maker and an incoming taker. Trades
// are created by the matching engine only and never mutated afterwards.
type Trade struct {
	ID           string
	Sequence     uint64
	Symbol       string
	Price        int64
	Quantity     int64
	Timestamp    time.Time
	TakerOrderID string
	MakerOrderID string
	TakerSource  string
	MakerSource  string
	TakerSide    Side
}

// BuyOrderID and SellOrderID resolve the taker/maker pair by side.
func (t Trade) BuyOrderID() string {
	if t.TakerSide == SideBuy {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}

func (t Trade) SellOrderID() string {
	if t.TakerSide == SideSell {
		return t.TakerOrderID
	}
	return t.MakerOrderID
}
