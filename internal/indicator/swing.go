package indicator

import "trading-systemv1/internal/model"

// detectSwings scans for newly-confirmed swing highs/lows using a symmetric
// window of size W: a bar at index i is a swing high iff its High strictly
// exceeds the highs of the W bars on each side (analogous for lows).
// Because a swing at index i can only be confirmed once W bars exist after
// it, this only ever confirms the bar at len(candles)-1-W: each call
// confirms at most one swing high and one swing low. It runs on every
// candle event, including live updates of the same bar, and updateSwings
// drops repeats of a swing already recorded.
func detectSwings(candles []model.Candle, w int) (highs, lows []model.SwingPoint) {
	n := len(candles)
	i := n - 1 - w
	if i < w {
		return nil, nil
	}

	candidate := candles[i]
	isHigh, isLow := true, true
	for d := 1; d <= w; d++ {
		if candles[i-d].High >= candidate.High || candles[i+d].High >= candidate.High {
			isHigh = false
		}
		if candles[i-d].Low <= candidate.Low || candles[i+d].Low <= candidate.Low {
			isLow = false
		}
	}

	if isHigh {
		highs = append(highs, model.SwingPoint{OpenTimeMs: candidate.OpenTimeMs, Price: candidate.High, IsHigh: true})
	}
	if isLow {
		lows = append(lows, model.SwingPoint{OpenTimeMs: candidate.OpenTimeMs, Price: candidate.Low, IsHigh: false})
	}
	return highs, lows
}

// updateSwings merges newly-confirmed swings into ctx, keeping only the
// `lookback` most recent swing points. A swing already recorded for the same
// bar and side (re-confirmed by a live update of the latest candle) is not
// appended again.
func (c *streamContext) updateSwings(w, lookback int) {
	highs, lows := detectSwings(c.candles, w)
	for _, sp := range append(highs, lows...) {
		if !c.hasSwing(sp) {
			c.swings = append(c.swings, sp)
		}
	}

	if len(c.swings) > lookback {
		c.swings = c.swings[len(c.swings)-lookback:]
	}
}

func (c *streamContext) hasSwing(sp model.SwingPoint) bool {
	for _, s := range c.swings {
		if s.OpenTimeMs == sp.OpenTimeMs && s.IsHigh == sp.IsHigh {
			return true
		}
	}
	return false
}

// classifyTrend derives a coarse trend from the sequence of confirmed
// swings: higher highs and higher lows is an uptrend, the reverse a
// downtrend, otherwise flat. This only needs to produce a stable,
// inspectable classification, not a precise indicator.
func (c *streamContext) classifyTrend() model.Trend {
	var lastHigh, prevHigh, lastLow, prevLow *model.SwingPoint
	for i := len(c.swings) - 1; i >= 0; i-- {
		sp := c.swings[i]
		if sp.IsHigh {
			if lastHigh == nil {
				lastHigh = &c.swings[i]
			} else if prevHigh == nil {
				prevHigh = &c.swings[i]
			}
		} else {
			if lastLow == nil {
				lastLow = &c.swings[i]
			} else if prevLow == nil {
				prevLow = &c.swings[i]
			}
		}
		if lastHigh != nil && prevHigh != nil && lastLow != nil && prevLow != nil {
			break
		}
	}

	if lastHigh != nil && prevHigh != nil && lastLow != nil && prevLow != nil {
		higherHigh := lastHigh.Price > prevHigh.Price
		higherLow := lastLow.Price > prevLow.Price
		switch {
		case higherHigh && higherLow:
			return model.TrendUp
		case !higherHigh && !higherLow:
			return model.TrendDown
		}
	}
	return model.TrendFlat
}
