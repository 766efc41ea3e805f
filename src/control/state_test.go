package control

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaltFlag(t *testing.T) {
	s := NewTradingState(zerolog.Nop())
	assert.False(t, s.IsHalted())

	assert.True(t, s.SetHalted(true))
	assert.False(t, s.SetHalted(true), "setting the same value is not a change")
	assert.True(t, s.IsHalted())

	assert.False(t, s.ToggleHalted())
	assert.False(t, s.IsHalted())
	assert.True(t, s.ToggleHalted())
}

func TestStrategyEnabled(t *testing.T) {
	s := NewTradingState(zerolog.Nop())
	assert.True(t, s.StrategyEnabled("my_strategy"), "unknown strategies default to enabled")

	assert.False(t, s.ToggleStrategy("my_strategy"))
	assert.False(t, s.StrategyEnabled("my_strategy"))
	assert.Equal(t, []string{"my_strategy"}, s.DisabledStrategies())

	s.SetStrategyEnabled("my_strategy", true)
	assert.True(t, s.StrategyEnabled("my_strategy"))
	assert.Empty(t, s.DisabledStrategies())
}

func TestOnChange(t *testing.T) {
	s := NewTradingState(zerolog.Nop())

	var seen []Snapshot
	s.OnChange(func(snap Snapshot) { seen = append(seen, snap) })

	s.SetHalted(true)
	s.SetStrategyEnabled("momentum", false)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].ExchangeHalted)
	assert.True(t, seen[1].StrategyDisabled["momentum"])
}
