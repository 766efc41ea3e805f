package control

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// TradingState holds the exchange-wide switches an operator toggles at
// runtime: the exchange halt and per-strategy enablement. It is created once
// in main and injected wherever the flags are read.
type TradingState struct {
	halted atomic.Bool

	mu       sync.RWMutex
	disabled map[string]bool
	onChange []func(Snapshot)

	log zerolog.Logger
}

type Snapshot struct {
	ExchangeHalted   bool            `json:"exchange_halted"`
	StrategyDisabled map[string]bool `json:"strategy_disabled,omitempty"`
}

func NewTradingState(log zerolog.Logger) *TradingState {
	return &TradingState{
		disabled: make(map[string]bool),
		log:      log,
	}
}

func (s *TradingState) IsHalted() bool {
	return s.halted.Load()
}

// SetHalted reports whether the flag changed.
func (s *TradingState) SetHalted(halted bool) bool {
	if s.halted.Swap(halted) == halted {
		return false
	}
	if halted {
		s.log.Warn().Msg("Exchange halted - new orders will be rejected")
	} else {
		s.log.Info().Msg("Exchange resumed")
	}
	s.notify()
	return true
}

// ToggleHalted flips the halt flag and returns the new value.
func (s *TradingState) ToggleHalted() bool {
	for {
		cur := s.halted.Load()
		if s.halted.CompareAndSwap(cur, !cur) {
			if !cur {
				s.log.Warn().Msg("Exchange halted - new orders will be rejected")
			} else {
				s.log.Info().Msg("Exchange resumed")
			}
			s.notify()
			return !cur
		}
	}
}

// StrategyEnabled defaults to true for sources never toggled.
func (s *TradingState) StrategyEnabled(source string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.disabled[source]
}

func (s *TradingState) SetStrategyEnabled(source string, enabled bool) {
	s.mu.Lock()
	if enabled {
		delete(s.disabled, source)
	} else {
		s.disabled[source] = true
	}
	s.mu.Unlock()

	s.log.Info().
		Str("strategy", source).
		Bool("enabled", enabled).
		Msg("Strategy toggled")
	s.notify()
}

// ToggleStrategy flips enablement for source and returns the new value.
func (s *TradingState) ToggleStrategy(source string) bool {
	s.mu.Lock()
	enabled := s.disabled[source]
	if enabled {
		delete(s.disabled, source)
	} else {
		s.disabled[source] = true
	}
	s.mu.Unlock()

	s.log.Info().
		Str("strategy", source).
		Bool("enabled", enabled).
		Msg("Strategy toggled")
	s.notify()
	return enabled
}

func (s *TradingState) DisabledStrategies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.disabled))
	for source := range s.disabled {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

func (s *TradingState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{ExchangeHalted: s.halted.Load()}
	if len(s.disabled) > 0 {
		snap.StrategyDisabled = make(map[string]bool, len(s.disabled))
		for k := range s.disabled {
			snap.StrategyDisabled[k] = true
		}
	}
	return snap
}

// OnChange registers fn to run after every flag change.
func (s *TradingState) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *TradingState) notify() {
	s.mu.RLock()
	listeners := make([]func(Snapshot), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}
