// Package position is the sole owner of live Position records, derived
// from OrderFilled fills and refreshed against CandleReceived prices.
// Positions are keyed by symbol with an explicit LONG/SHORT side; entries
// weight-average on same-direction fills and realize P&L on reduction.
package position

import (
	"sync"
	"time"

	"trading-systemv1/internal/execution"
	"trading-systemv1/internal/model"
)

// Publisher is the subset of bus.Bus the tracker needs.
type Publisher interface {
	Publish(evt model.Event)
}

// Tracker is the sole owner of live Position state.
type Tracker struct {
	mu        sync.RWMutex
	positions map[model.SymbolId]*model.Position

	dailyRealizedPnL float64
	dayStart         time.Time

	bus Publisher
}

// New creates an empty Tracker.
func New(bus Publisher) *Tracker {
	return &Tracker{
		positions: make(map[model.SymbolId]*model.Position),
		dayStart:  time.Now().UTC().Truncate(24 * time.Hour),
		bus:       bus,
	}
}

// HandleOrderFilled is the OrderFilled subscriber entrypoint.
func (t *Tracker) HandleOrderFilled(evt model.Event) error {
	fe, ok := evt.Payload.(execution.FillEvent)
	if !ok {
		return nil
	}
	t.ApplyFill(fe.Order, fe.Fill)
	return nil
}

// ApplyFill applies a fill to its symbol's position: opening fill creates
// a position, same-direction fill weights the average entry,
// opposite-direction fill reduces (and on reaching zero, closes with
// realized P&L).
func (t *Tracker) ApplyFill(order model.Order, fill model.Fill) {
	t.rolloverDayIfNeeded()

	side := model.Long
	if order.Side == model.Sell {
		side = model.Short
	}

	t.mu.Lock()
	pos, exists := t.positions[fill.Symbol]
	if !exists {
		pos = &model.Position{
			Symbol: fill.Symbol, Side: side, OpenedAt: time.Now().UTC(),
		}
		t.positions[fill.Symbol] = pos
	}

	var closeEvt *model.Position
	switch {
	case !exists || pos.Side == side:
		// Opening or same-direction: weight the average entry.
		totalQty := int64(pos.Quantity) + int64(fill.Quantity)
		if totalQty > 0 {
			pos.AvgEntry = model.Price((int64(pos.AvgEntry)*int64(pos.Quantity) + int64(fill.Price)*int64(fill.Quantity)) / totalQty)
		}
		pos.Quantity = model.Quantity(totalQty)
		pos.Side = side

	default:
		// Opposite direction: reduce, realizing P&L on the closed portion.
		reduceQty := fill.Quantity
		if reduceQty > pos.Quantity {
			reduceQty = pos.Quantity
		}
		delta := int64(fill.Price) - int64(pos.AvgEntry)
		if pos.Side == model.Short {
			delta = -delta
		}
		realized := delta * int64(reduceQty) / model.PriceScale
		pos.RealizedPnL += realized
		t.dailyRealizedPnL += float64(realized) / float64(model.PriceScale)

		remaining := int64(pos.Quantity) - int64(reduceQty)
		pos.Quantity = model.Quantity(remaining)
		if remaining <= 0 {
			closed := *pos
			closeEvt = &closed
			delete(t.positions, fill.Symbol)
		}
	}
	t.mu.Unlock()

	if closeEvt != nil {
		t.publish(model.PositionClosed, *closeEvt, order.CorrelationID)
	} else {
		t.mu.RLock()
		snapshot := *t.positions[fill.Symbol]
		t.mu.RUnlock()
		t.publish(model.PositionOpened, snapshot, order.CorrelationID)
	}
}

// HandleCandle refreshes unrealized PnL for a held symbol on each
// CandleReceived.
func (t *Tracker) HandleCandle(evt model.Event) error {
	candle, ok := evt.Payload.(model.Candle)
	if !ok {
		return nil
	}
	t.mu.Lock()
	pos, held := t.positions[candle.Symbol]
	if held {
		pos.RefreshUnrealized(candle.Close)
	}
	t.mu.Unlock()
	return nil
}

func (t *Tracker) rolloverDayIfNeeded() {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	t.mu.Lock()
	if today.After(t.dayStart) {
		t.dayStart = today
		t.dailyRealizedPnL = 0
	}
	t.mu.Unlock()
}

// Positions returns a snapshot of all open positions.
func (t *Tracker) Positions() []model.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	return out
}

// EquityUSDT implements risk.AccountState: equity is the sum of realized
// and unrealized P&L across all currently open positions. Wallet balance
// from the gateway is not included, and cmd/engine passes the tracker to
// risk.New as is.
func (t *Tracker) EquityUSDT() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	for _, p := range t.positions {
		total += float64(p.RealizedPnL+p.UnrealizedPnL) / float64(model.PriceScale)
	}
	return total
}

// DailyRealizedPnLUSDT implements risk.AccountState.
func (t *Tracker) DailyRealizedPnLUSDT() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dailyRealizedPnL
}

// OpenPositionCount implements risk.AccountState.
func (t *Tracker) OpenPositionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.positions)
}

// HasOpenPositions implements configstore.PositionChecker.
func (t *Tracker) HasOpenPositions() bool {
	return t.OpenPositionCount() > 0
}

func (t *Tracker) publish(eventType model.EventType, pos model.Position, correlationID string) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(model.Event{
		Type:          eventType,
		Priority:      4,
		Payload:       pos,
		Source:        "position",
		CreatedAt:     time.Now().UTC(),
		CorrelationID: correlationID,
	})
}
