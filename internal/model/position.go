package model

import "time"

// Position is derived state; only PositionTracker ever mutates it.
type Position struct {
	Symbol        SymbolId
	Side          Direction // LONG or SHORT
	Quantity      Quantity  // always >= 0; Side carries direction
	AvgEntry      Price
	OpenedAt      time.Time
	LastPrice     Price
	UnrealizedPnL int64
	RealizedPnL   int64
}

// RefreshUnrealized recomputes UnrealizedPnL against the latest market price.
func (p *Position) RefreshUnrealized(lastPrice Price) {
	p.LastPrice = lastPrice
	delta := int64(lastPrice) - int64(p.AvgEntry)
	if p.Side == Short {
		delta = -delta
	}
	p.UnrealizedPnL = delta * int64(p.Quantity) / PriceScale
}
