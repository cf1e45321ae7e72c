// Package strategy routes IndicatorSnapshots to a registry of pluggable
// Strategy objects and collects the Signals they emit. Each strategy sees
// a snapshot plus recent candles and returns at most one signal; it holds
// no state of its own between calls.
package strategy

import (
	"log"
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// Strategy is the pluggable trading-logic contract. Implementations MUST
// be stateless across events; all state lives in the
// IndicatorSnapshot and recent candles passed to Evaluate.
type Strategy interface {
	ID() string
	Timeframes() []model.Timeframe
	Evaluate(snapshot model.IndicatorSnapshot, recentCandles []model.Candle) *model.Signal
}

// Publisher is the subset of bus.Bus the layer needs.
type Publisher interface {
	Publish(evt model.Event)
}

// CandleSource supplies recent candles for a StreamKey, the
// "recent_candles" argument passed to Evaluate.
type CandleSource interface {
	Get(symbol model.SymbolId, tf model.Timeframe, limit int) []model.Candle
}

// EnableChecker reports whether a named strategy toggle is currently on,
// read live from ConfigStore so a toggle flipped to false takes effect
// before the next event is processed.
type EnableChecker func(strategyID string) bool

// Layer evaluates every registered strategy against incoming indicator
// snapshots and publishes the signals they emit.
type Layer struct {
	mu         sync.RWMutex
	strategies []Strategy

	bus      Publisher
	candles  CandleSource
	enabled  EnableChecker
	idSeq    uint64
	idSeqMu  sync.Mutex
}

// New creates an empty Layer. enabled may be nil, meaning every registered
// strategy is always enabled.
func New(bus Publisher, candles CandleSource, enabled EnableChecker) *Layer {
	if enabled == nil {
		enabled = func(string) bool { return true }
	}
	return &Layer{bus: bus, candles: candles, enabled: enabled}
}

// Register adds a strategy to the layer.
func (l *Layer) Register(s Strategy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.strategies = append(l.strategies, s)
}

// HandleIndicatorUpdated is the IndicatorUpdated subscriber entrypoint.
func (l *Layer) HandleIndicatorUpdated(evt model.Event) error {
	snap, ok := evt.Payload.(model.IndicatorSnapshot)
	if !ok {
		return nil
	}
	l.Process(snap)
	return nil
}

// Process evaluates every enabled strategy whose timeframes include
// snap.Timeframe. Strategy panics are isolated: one failing strategy must
// not block the others nor propagate.
func (l *Layer) Process(snap model.IndicatorSnapshot) {
	l.mu.RLock()
	strategies := append([]Strategy(nil), l.strategies...)
	l.mu.RUnlock()

	var recent []model.Candle
	if l.candles != nil {
		recent = l.candles.Get(snap.Symbol, snap.Timeframe, 0)
	}

	for _, s := range strategies {
		if !l.enabled(s.ID()) {
			continue
		}
		if !supportsTimeframe(s, snap.Timeframe) {
			continue
		}
		l.evaluateSafely(s, snap, recent)
	}
}

func supportsTimeframe(s Strategy, tf model.Timeframe) bool {
	for _, t := range s.Timeframes() {
		if t == tf {
			return true
		}
	}
	return false
}

func (l *Layer) evaluateSafely(s Strategy, snap model.IndicatorSnapshot, recent []model.Candle) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[strategy] %q panicked: %v", s.ID(), r)
		}
	}()

	sig := s.Evaluate(snap, recent)
	if sig == nil {
		return
	}
	sig.ID = l.nextSignalID(s.ID())
	sig.StrategyID = s.ID()
	l.publish(*sig)
}

func (l *Layer) nextSignalID(strategyID string) string {
	l.idSeqMu.Lock()
	l.idSeq++
	n := l.idSeq
	l.idSeqMu.Unlock()
	return strategyID + "-" + model.Itoa64(int64(n))
}

func (l *Layer) publish(sig model.Signal) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(model.Event{
		Type:          model.SignalGenerated,
		Priority:      5,
		Payload:       sig,
		Source:        "strategy:" + sig.StrategyID,
		CreatedAt:     time.Now().UTC(),
		CorrelationID: sig.ID,
	})
}
