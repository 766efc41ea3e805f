package fix

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

// wirePriceDecimals is the fixed precision of prices written to tag 44/31.
const wirePriceDecimals = 8

// PriceCodec converts decimal prices to integer ticks and back. A tick is
// 10^-Decimals of a price unit.
type PriceCodec struct {
	Decimals int32
}

func (c PriceCodec) TickSize() decimal.Decimal {
	return decimal.New(1, -c.Decimals)
}

// ToTicks rejects prices that are not on the tick grid.
func (c PriceCodec) ToTicks(price decimal.Decimal) (int64, error) {
	scaled := price.Shift(c.Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, &ValidationError{
			Field:  "price",
			Reason: fmt.Sprintf("%s is not a multiple of tick size %s", price, c.TickSize()),
		}
	}
	return scaled.IntPart(), nil
}

func (c PriceCodec) FromTicks(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -c.Decimals)
}

// Round snaps a price onto the tick grid.
func (c PriceCodec) Round(price decimal.Decimal) decimal.Decimal {
	return price.Round(c.Decimals)
}

func formatPrice(p decimal.Decimal) string {
	return p.StringFixed(wirePriceDecimals)
}

// Limits are the boundary checks applied before an order reaches matching.
type Limits struct {
	MaxSymbolLength int
	MinPrice        decimal.Decimal
	MaxPrice        decimal.Decimal
	MinQuantity     int64
	MaxQuantity     int64
}

func DefaultLimits() Limits {
	return Limits{
		MaxSymbolLength: 8,
		MinPrice:        decimal.RequireFromString("0.01"),
		MaxPrice:        decimal.NewFromInt(1_000_000),
		MinQuantity:     1,
		MaxQuantity:     10_000,
	}
}

func (l Limits) Validate(req OrderRequest) error {
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "required"}
	}
	if l.MaxSymbolLength > 0 && len(symbol) > l.MaxSymbolLength {
		return &ValidationError{
			Field:  "symbol",
			Reason: fmt.Sprintf("%q longer than %d characters", symbol, l.MaxSymbolLength),
		}
	}
	if !req.Side.Valid() {
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if !req.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if req.Price.LessThan(l.MinPrice) || req.Price.GreaterThan(l.MaxPrice) {
		return &ValidationError{
			Field:  "price",
			Reason: fmt.Sprintf("%s outside [%s, %s]", req.Price, l.MinPrice, l.MaxPrice),
		}
	}
	if req.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if req.Quantity < l.MinQuantity || (l.MaxQuantity > 0 && req.Quantity > l.MaxQuantity) {
		return &ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("%d outside [%d, %d]", req.Quantity, l.MinQuantity, l.MaxQuantity),
		}
	}
	return nil
}

func encodeSide(s engine.Side) string {
	switch s {
	case engine.SideBuy:
		return "1"
	case engine.SideSell:
		return "2"
	default:
		return ""
	}
}

func decodeSide(v string) (engine.Side, error) {
	switch v {
	case "1":
		return engine.SideBuy, nil
	case "2":
		return engine.SideSell, nil
	default:
		return 0, &ValidationError{Field: "side", Reason: fmt.Sprintf("tag 54 must be 1 or 2, got %q", v)}
	}
}

// ParseSide accepts BUY/SELL in any case as well as the FIX codes.
func ParseSide(v string) (engine.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "BUY", "1":
		return engine.SideBuy, nil
	case "SELL", "2":
		return engine.SideSell, nil
	default:
		return 0, &ValidationError{Field: "side", Reason: fmt.Sprintf("must be BUY or SELL, got %q", v)}
	}
}
