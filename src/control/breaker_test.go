package control

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newBreaker(limits BreakerLimits) (*CircuitBreaker, *TradingState, *fakeClock) {
	s := NewTradingState(zerolog.Nop())
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	return NewCircuitBreaker(s, limits, zerolog.Nop(), WithBreakerClock(clock.now)), s, clock
}

func TestBreakerTripsOnOrderRate(t *testing.T) {
	b, s, _ := newBreaker(BreakerLimits{MaxOrders: 3, Window: time.Second})

	for i := 0; i < 3; i++ {
		assert.True(t, b.AllowOrder())
	}
	assert.False(t, s.IsHalted())

	assert.False(t, b.AllowOrder())
	assert.True(t, s.IsHalted())
	assert.Equal(t, uint64(1), b.Trips())
	assert.Equal(t, "order rate", b.LastReason())

	assert.False(t, b.AllowOrder())
	assert.Equal(t, uint64(1), b.Trips(), "an already halted exchange does not trip again")
}

func TestBreakerWindowRolls(t *testing.T) {
	b, s, clock := newBreaker(BreakerLimits{MaxOrders: 2, Window: 100 * time.Millisecond})

	assert.True(t, b.AllowOrder())
	assert.True(t, b.AllowOrder())
	clock.t = clock.t.Add(100 * time.Millisecond)
	assert.True(t, b.AllowOrder())
	assert.True(t, b.AllowOrder())
	assert.False(t, s.IsHalted())
}

func TestBreakerTripsOnTradeRate(t *testing.T) {
	b, s, _ := newBreaker(BreakerLimits{MaxTrades: 5})

	b.RecordTrades(3)
	b.RecordTrades(2)
	assert.False(t, s.IsHalted())
	b.RecordTrades(1)
	assert.True(t, s.IsHalted())
	assert.Equal(t, "trade rate", b.LastReason())
}

func TestBreakerResumeStartsFreshWindow(t *testing.T) {
	b, s, _ := newBreaker(BreakerLimits{MaxOrders: 1})

	assert.True(t, b.AllowOrder())
	assert.False(t, b.AllowOrder())
	assert.True(t, s.IsHalted())

	s.SetHalted(false)
	assert.True(t, b.AllowOrder(), "resume clears the counters")
	assert.False(t, s.IsHalted())
}

func TestBreakerZeroCapsNeverTrip(t *testing.T) {
	b, s, _ := newBreaker(BreakerLimits{})
	for i := 0; i < 1000; i++ {
		assert.True(t, b.AllowOrder())
	}
	b.RecordTrades(1000)
	assert.False(t, s.IsHalted())
	assert.Zero(t, b.Trips())
}
