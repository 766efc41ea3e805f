package strategy

import (
	"sync"

	"github.com/shopspring/decimal"

	"fix-match-engine/src/engine"
)

// Portfolio tracks a signed inventory at average cost. Closing quantity
// realizes PnL against the average entry price; a fill that flips the
// position opens the remainder at the fill price.
type Portfolio struct {
	mu        sync.Mutex
	inventory int64
	avgPrice  decimal.Decimal
	realized  decimal.Decimal
	trades    int
	wins      int
}

func NewPortfolio() *Portfolio {
	return &Portfolio{}
}

// Apply books one fill and returns the PnL it realized.
func (p *Portfolio) Apply(side engine.Side, price decimal.Decimal, qty int64) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	signed := qty
	if side == engine.SideSell {
		signed = -qty
	}

	pnl := decimal.Zero
	switch {
	case p.inventory == 0 || sameSign(p.inventory, signed):
		held := decimal.NewFromInt(abs(p.inventory))
		cost := p.avgPrice.Mul(held).Add(price.Mul(decimal.NewFromInt(qty)))
		p.inventory += signed
		p.avgPrice = cost.Div(decimal.NewFromInt(abs(p.inventory)))
	default:
		closed := min(abs(p.inventory), qty)
		diff := price.Sub(p.avgPrice)
		if p.inventory < 0 {
			diff = diff.Neg()
		}
		pnl = diff.Mul(decimal.NewFromInt(closed))
		p.realized = p.realized.Add(pnl)
		p.inventory += signed
		switch {
		case p.inventory == 0:
			p.avgPrice = decimal.Zero
		case !sameSign(p.inventory, -signed):
			p.avgPrice = price
		}
	}

	p.trades++
	if pnl.IsPositive() {
		p.wins++
	}
	return pnl
}

func (p *Portfolio) Inventory() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inventory
}

// Unrealized values the open position at mark.
func (p *Portfolio) Unrealized(mark decimal.Decimal) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unrealized(mark)
}

func (p *Portfolio) unrealized(mark decimal.Decimal) decimal.Decimal {
	if p.inventory == 0 {
		return decimal.Zero
	}
	return mark.Sub(p.avgPrice).Mul(decimal.NewFromInt(p.inventory))
}

func (p *Portfolio) Realized() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

func (p *Portfolio) WinRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trades == 0 {
		return 0
	}
	return float64(p.wins) / float64(p.trades)
}

func (p *Portfolio) fill(s *Status, mark decimal.Decimal, hasMark bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s.Inventory = p.inventory
	s.AvgPrice = p.avgPrice
	s.RealizedPnL = p.realized
	if hasMark {
		s.UnrealizedPnL = p.unrealized(mark)
	}
	s.TotalPnL = s.RealizedPnL.Add(s.UnrealizedPnL)
	s.Trades = p.trades
	s.Wins = p.wins
	if p.trades > 0 {
		s.WinRate = float64(p.wins) / float64(p.trades)
	}
}

func sameSign(a, b int64) bool {
	return (a > 0) == (b > 0)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
