// Package indicator maintains per-(symbol,timeframe) swing-point and ICT
// pattern lifecycle state, recomputed incrementally on each CandleReceived
// event. One bus subscription drives Process serially, so the per-key state
// map needs no extra locking against itself; state still guards against the
// bus running concurrent subscriptions.
package indicator

import "trading-systemv1/internal/model"

// DefaultSwingWindow is the default swing-detection window width.
const DefaultSwingWindow = 5

// DefaultLookback bounds how many swing points / candles are retained.
const DefaultLookback = 50

// streamContext is the per-StreamKey rolling pattern-detection state.
type streamContext struct {
	candles []model.Candle // recent closed+live candles, bounded, oldest first

	swings []model.SwingPoint

	orderBlocks    []model.OrderBlock
	fvgs           []model.FVG
	breakerBlocks  []model.BreakerBlock
	liquidityZones []model.LiquidityZone

	trend model.Trend

	warnedUnconfigured bool
}

func newStreamContext() *streamContext {
	return &streamContext{trend: model.TrendFlat}
}

func (c *streamContext) pushCandle(candle model.Candle, lookback int) {
	n := len(c.candles)
	if n > 0 && c.candles[n-1].OpenTimeMs == candle.OpenTimeMs {
		c.candles[n-1] = candle
		return
	}
	c.candles = append(c.candles, candle)
	if len(c.candles) > lookback*4 {
		c.candles = append(c.candles[:0], c.candles[len(c.candles)-lookback*4:]...)
	}
}

func (c *streamContext) snapshot(symbol model.SymbolId, tf model.Timeframe, sourceMs int64, provisional bool) model.IndicatorSnapshot {
	return model.IndicatorSnapshot{
		Symbol:             symbol,
		Timeframe:          tf,
		OrderBlocks:        append([]model.OrderBlock(nil), c.orderBlocks...),
		FVGs:               append([]model.FVG(nil), c.fvgs...),
		BreakerBlocks:      append([]model.BreakerBlock(nil), c.breakerBlocks...),
		LiquidityZones:     append([]model.LiquidityZone(nil), c.liquidityZones...),
		Trend:              c.trend,
		SourceCandleTimeMs: sourceMs,
		Provisional:        provisional,
	}
}
