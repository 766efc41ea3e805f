package control

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerLimits caps order and trade counts per fixed window. A zero cap
// disables that check.
type BreakerLimits struct {
	MaxOrders int
	MaxTrades int
	Window    time.Duration
}

// CircuitBreaker halts the exchange through TradingState when flow in the
// current window exceeds its caps. The halt stays until an operator
// resumes, which also starts a fresh window.
type CircuitBreaker struct {
	state  *TradingState
	limits BreakerLimits
	now    func() time.Time
	log    zerolog.Logger

	mu     sync.Mutex
	number int64
	orders int
	trades int
	trips  uint64
	reason string
}

type BreakerOption func(*CircuitBreaker)

func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.now = now }
}

func NewCircuitBreaker(state *TradingState, limits BreakerLimits, log zerolog.Logger, opts ...BreakerOption) *CircuitBreaker {
	if limits.Window <= 0 {
		limits.Window = time.Second
	}
	b := &CircuitBreaker{
		state:  state,
		limits: limits,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(b)
	}
	state.OnChange(func(s Snapshot) {
		if !s.ExchangeHalted {
			b.reset()
		}
	})
	return b
}

// roll requires b.mu held.
func (b *CircuitBreaker) roll() {
	n := b.now().UnixNano() / b.limits.Window.Nanoseconds()
	if n != b.number {
		b.number = n
		b.orders = 0
		b.trades = 0
	}
}

// AllowOrder counts one order and reports whether it stays within the cap.
// The order that crosses the cap trips the breaker.
func (b *CircuitBreaker) AllowOrder() bool {
	b.mu.Lock()
	b.roll()
	b.orders++
	over := b.limits.MaxOrders > 0 && b.orders > b.limits.MaxOrders
	count := b.orders
	b.mu.Unlock()

	if over {
		b.trip("order rate", count, b.limits.MaxOrders)
	}
	return !over
}

// RecordTrades counts n trades and trips the breaker past the cap.
func (b *CircuitBreaker) RecordTrades(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	b.roll()
	b.trades += n
	over := b.limits.MaxTrades > 0 && b.trades > b.limits.MaxTrades
	count := b.trades
	b.mu.Unlock()

	if over {
		b.trip("trade rate", count, b.limits.MaxTrades)
	}
}

func (b *CircuitBreaker) trip(reason string, count, limit int) {
	if !b.state.SetHalted(true) {
		return
	}
	b.mu.Lock()
	b.trips++
	b.reason = reason
	b.mu.Unlock()

	b.log.Warn().
		Str("reason", reason).
		Int("count", count).
		Int("limit", limit).
		Dur("window", b.limits.Window).
		Msg("Circuit breaker tripped")
}

func (b *CircuitBreaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.number = 0
	b.orders = 0
	b.trades = 0
}

func (b *CircuitBreaker) Trips() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// LastReason is empty until the breaker first trips.
func (b *CircuitBreaker) LastReason() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}
