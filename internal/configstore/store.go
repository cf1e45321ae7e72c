package configstore

import (
	"fmt"
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// Publisher is the subset of bus.Bus the store needs.
type Publisher interface {
	Publish(evt model.Event)
}

// PositionChecker lets the store enforce its testnet/live switch guard
// without importing internal/position directly (avoids an import cycle:
// position imports model only, configstore is wired to it at cmd/engine
// level).
type PositionChecker interface {
	HasOpenPositions() bool
}

// SymbolValidator reports whether a symbol is known to the exchange.
type SymbolValidator func(model.SymbolId) bool

// DefaultHistoryCap bounds the rollback stack.
const DefaultHistoryCap = 20

// ValidationError is returned by Update* when a patch would violate a
// validation rule.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configstore: invalid %s: %s", e.Field, e.Detail)
}

// SwitchBlockedError is returned when switching testnet/live while positions
// are open.
type SwitchBlockedError struct{ Reason string }

func (e *SwitchBlockedError) Error() string { return "configstore: switch blocked: " + e.Reason }

// Store is a versioned Settings document with copy-on-write updates, a
// bounded rollback stack, and ConfigUpdated event emission on every commit.
type Store struct {
	mu         sync.RWMutex
	current    Settings
	version    int
	history    []Settings // most recent last
	historyCap int

	bus        Publisher
	symbolOK   SymbolValidator
	positions  PositionChecker
}

// Option configures a Store at construction.
type Option func(*Store)

// WithHistoryCap overrides DefaultHistoryCap.
func WithHistoryCap(n int) Option {
	return func(s *Store) { s.historyCap = n }
}

// WithSymbolValidator injects the known-symbol check used by UpdateMarket.
func WithSymbolValidator(v SymbolValidator) Option {
	return func(s *Store) { s.symbolOK = v }
}

// WithPositionChecker injects the open-positions check used by
// UpdateBinance's testnet/live switch guard.
func WithPositionChecker(p PositionChecker) Option {
	return func(s *Store) { s.positions = p }
}

// New creates a Store seeded with initial settings.
func New(bus Publisher, initial Settings, opts ...Option) *Store {
	s := &Store{
		current:    initial.Clone(),
		historyCap: DefaultHistoryCap,
		bus:        bus,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a read-only copy of the current settings and version.
func (s *Store) Snapshot() (Settings, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), s.version
}

// pushHistory saves prev onto the bounded history stack, evicting the
// oldest entry if it would exceed historyCap.
func (s *Store) pushHistory(prev Settings) {
	s.history = append(s.history, prev)
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}
}

// commit validates the candidate, then swaps it in, pushing the previous
// value onto history and emitting ConfigUpdated.
func (s *Store) commit(section Section, candidate Settings) error {
	if err := validate(candidate); err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.current
	s.pushHistory(prev)
	s.current = candidate
	s.version++
	v := s.version
	s.mu.Unlock()

	s.publishUpdated(section, v)
	return nil
}

func (s *Store) publishUpdated(section Section, version int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(model.Event{
		Type:      model.ConfigUpdated,
		Priority:  3,
		Payload:   ConfigUpdatedPayload{Section: section, Version: version},
		Source:    "configstore",
		CreatedAt: time.Now().UTC(),
	})
}

// ConfigUpdatedPayload is the ConfigUpdated event payload.
type ConfigUpdatedPayload struct {
	Section Section
	Version int
}

// UpdateBinance applies p to the binance section. Switching testnet<->live
// while positions are open is rejected.
func (s *Store) UpdateBinance(p BinancePatch) error {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if p.Testnet != nil && *p.Testnet != cur.Binance.Testnet {
		if s.positions != nil && s.positions.HasOpenPositions() {
			return &SwitchBlockedError{Reason: "cannot switch testnet/live with open positions"}
		}
	}

	candidate := cur.Clone()
	applyBinance(&candidate, p)
	return s.commit(SectionBinance, candidate)
}

// UpdateTrading applies p to the trading section.
func (s *Store) UpdateTrading(p TradingPatch) error {
	s.mu.RLock()
	candidate := s.current.Clone()
	s.mu.RUnlock()
	applyTrading(&candidate, p)
	return s.commit(SectionTrading, candidate)
}

// UpdateStrategy applies p to the strategy section.
func (s *Store) UpdateStrategy(p StrategyPatch) error {
	s.mu.RLock()
	candidate := s.current.Clone()
	s.mu.RUnlock()
	applyStrategy(&candidate, p)
	return s.commit(SectionStrategy, candidate)
}

// UpdateICT applies p to the ict section.
func (s *Store) UpdateICT(p ICTPatch) error {
	s.mu.RLock()
	candidate := s.current.Clone()
	s.mu.RUnlock()
	applyICT(&candidate, p)
	return s.commit(SectionICT, candidate)
}

// UpdateMarket applies p to the market section. Unknown symbols are
// rejected via the injected SymbolValidator, if any.
func (s *Store) UpdateMarket(p MarketPatch) error {
	if p.ActiveSymbols != nil && s.symbolOK != nil {
		for _, sym := range p.ActiveSymbols {
			if !s.symbolOK(sym) {
				return &ValidationError{Field: "market.active_symbols", Detail: fmt.Sprintf("unknown symbol %q", sym)}
			}
		}
	}
	s.mu.RLock()
	candidate := s.current.Clone()
	s.mu.RUnlock()
	applyMarket(&candidate, p)
	return s.commit(SectionMarket, candidate)
}

// BatchUpdate applies all given patches atomically: either every patch
// validates and commits as one version bump, or none do.
type BatchPatch struct {
	Binance  *BinancePatch
	Trading  *TradingPatch
	Strategy *StrategyPatch
	ICT      *ICTPatch
	Market   *MarketPatch
}

func (s *Store) BatchUpdate(p BatchPatch) error {
	if p.Market != nil && p.Market.ActiveSymbols != nil && s.symbolOK != nil {
		for _, sym := range p.Market.ActiveSymbols {
			if !s.symbolOK(sym) {
				return &ValidationError{Field: "market.active_symbols", Detail: fmt.Sprintf("unknown symbol %q", sym)}
			}
		}
	}

	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if p.Binance != nil && p.Binance.Testnet != nil && *p.Binance.Testnet != cur.Binance.Testnet {
		if s.positions != nil && s.positions.HasOpenPositions() {
			return &SwitchBlockedError{Reason: "cannot switch testnet/live with open positions"}
		}
	}

	candidate := cur.Clone()
	if p.Binance != nil {
		applyBinance(&candidate, *p.Binance)
	}
	if p.Trading != nil {
		applyTrading(&candidate, *p.Trading)
	}
	if p.Strategy != nil {
		applyStrategy(&candidate, *p.Strategy)
	}
	if p.ICT != nil {
		applyICT(&candidate, *p.ICT)
	}
	if p.Market != nil {
		applyMarket(&candidate, *p.Market)
	}
	return s.commit(SectionTrading, candidate) // section tag best-effort for batch
}

// Rollback moves the current settings back `steps` versions. steps must be
// <= len(history); otherwise an error is returned and nothing changes.
func (s *Store) Rollback(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("configstore: rollback steps must be positive, got %d", steps)
	}
	s.mu.Lock()
	if steps > len(s.history) {
		s.mu.Unlock()
		return fmt.Errorf("configstore: cannot rollback %d steps, only %d available", steps, len(s.history))
	}

	target := s.history[len(s.history)-steps]
	s.history = s.history[:len(s.history)-steps]
	s.current = target
	s.version++
	v := s.version
	s.mu.Unlock()

	s.publishUpdated(SectionTrading, v)
	return nil
}

// HistoryDepth reports how many rollback steps are currently available.
func (s *Store) HistoryDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
