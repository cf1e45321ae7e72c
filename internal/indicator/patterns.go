package indicator

import "trading-systemv1/internal/model"

// liquidityEpsilon is the equal-highs/lows clustering tolerance, expressed
// as a fraction of price. It's a detector tuning constant, not a fixed rule.
const liquidityEpsilon = 0.0005

// updateFVGs applies the three-candle fair-value-gap rule: a gap between
// candle[i-2] and candle[i] with no overlap is an imbalance. MITIGATED when
// price retraces into the gap; INVALIDATED when fully filled.
func (c *streamContext) updateFVGs() {
	n := len(c.candles)
	if n >= 3 {
		a, _, b := c.candles[n-3], c.candles[n-2], c.candles[n-1]
		if b.Low > a.High {
			c.fvgs = append(c.fvgs, model.FVG{
				State: model.Active, DetectedAtOpenMs: b.OpenTimeMs,
				Bullish: true, GapHigh: b.Low, GapLow: a.High,
			})
		}
		if b.High < a.Low {
			c.fvgs = append(c.fvgs, model.FVG{
				State: model.Active, DetectedAtOpenMs: b.OpenTimeMs,
				Bullish: false, GapHigh: a.Low, GapLow: b.High,
			})
		}
	}

	if n == 0 {
		return
	}
	last := c.candles[n-1]
	for i := range c.fvgs {
		fvg := &c.fvgs[i]
		if fvg.State == model.Invalidated {
			continue
		}
		if fvg.Bullish {
			switch {
			case last.Low <= fvg.GapLow:
				fvg.State = model.Invalidated
			case last.Low < fvg.GapHigh:
				fvg.State = model.Mitigated
			}
		} else {
			switch {
			case last.High >= fvg.GapHigh:
				fvg.State = model.Invalidated
			case last.High > fvg.GapLow:
				fvg.State = model.Mitigated
			}
		}
	}
}

// updateOrderBlocks: the last opposite-color candle before an impulsive
// move that breaks structure (here: a close beyond the most recent
// confirmed swing) becomes an Order Block. MITIGATED on first touch;
// INVALIDATED on close beyond the OB body.
func (c *streamContext) updateOrderBlocks() {
	n := len(c.candles)
	if n < 2 {
		return
	}
	impulse := c.candles[n-1]
	prior := c.candles[n-2]

	brokeUp := c.brokeStructure(true, impulse)
	brokeDown := c.brokeStructure(false, impulse)

	priorBullish := prior.Close >= prior.Open
	if brokeUp && !priorBullish {
		c.orderBlocks = append(c.orderBlocks, model.OrderBlock{
			State: model.Active, DetectedAtOpenMs: prior.OpenTimeMs,
			Bullish: true, High: prior.High, Low: prior.Low,
		})
	}
	if brokeDown && priorBullish {
		c.orderBlocks = append(c.orderBlocks, model.OrderBlock{
			State: model.Active, DetectedAtOpenMs: prior.OpenTimeMs,
			Bullish: false, High: prior.High, Low: prior.Low,
		})
	}

	for i := range c.orderBlocks {
		ob := &c.orderBlocks[i]
		if ob.State == model.Invalidated {
			continue
		}
		if ob.Bullish {
			switch {
			case impulse.Close < ob.Low:
				c.invalidateToBreaker(ob, impulse)
			case impulse.Low <= ob.High:
				ob.State = model.Mitigated
			}
		} else {
			switch {
			case impulse.Close > ob.High:
				c.invalidateToBreaker(ob, impulse)
			case impulse.High >= ob.Low:
				ob.State = model.Mitigated
			}
		}
	}
}

// invalidateToBreaker: a Breaker Block is a former Order Block invalidated
// and then retested from the opposite side. The OB transitions to
// INVALIDATED and a Breaker is seeded at the same levels awaiting the
// opposite-side retest.
func (c *streamContext) invalidateToBreaker(ob *model.OrderBlock, impulse model.Candle) {
	ob.State = model.Invalidated
	c.breakerBlocks = append(c.breakerBlocks, model.BreakerBlock{
		State: model.Active, DetectedAtOpenMs: impulse.OpenTimeMs,
		Bullish: !ob.Bullish, High: ob.High, Low: ob.Low,
	})
}

func (c *streamContext) updateBreakerBlocks() {
	n := len(c.candles)
	if n == 0 {
		return
	}
	last := c.candles[n-1]
	for i := range c.breakerBlocks {
		bb := &c.breakerBlocks[i]
		if bb.State != model.Active {
			continue
		}
		if bb.Bullish && last.Low <= bb.High && last.Close > bb.High {
			bb.State = model.Mitigated
		} else if !bb.Bullish && last.High >= bb.Low && last.Close < bb.Low {
			bb.State = model.Mitigated
		}
	}
}

// brokeStructure reports whether the impulse candle's close breaks beyond
// the most recent confirmed swing in the given direction.
func (c *streamContext) brokeStructure(up bool, impulse model.Candle) bool {
	for i := len(c.swings) - 1; i >= 0; i-- {
		sp := c.swings[i]
		if up && sp.IsHigh {
			return impulse.Close > sp.Price
		}
		if !up && !sp.IsHigh {
			return impulse.Close < sp.Price
		}
	}
	return false
}

// updateLiquidityZones: each confirmed swing seeds a liquidity zone at its
// price unless an active zone on the same side already lies within ε
// tolerance of it, so equal highs/lows collapse into one zone. A single
// swing is enough to create a zone. A zone is INVALIDATED on a sweep whose
// close passes beyond it.
func (c *streamContext) updateLiquidityZones() {
	n := len(c.candles)
	if n == 0 {
		return
	}
	last := c.candles[n-1]

	for _, sp := range c.swings {
		tol := float64(sp.Price) * liquidityEpsilon
		found := false
		for i := range c.liquidityZones {
			lz := &c.liquidityZones[i]
			if lz.State != model.Active || lz.IsHighSide != sp.IsHigh {
				continue
			}
			if absDelta(float64(lz.Level), float64(sp.Price)) <= tol {
				found = true
				break
			}
		}
		if !found {
			c.liquidityZones = append(c.liquidityZones, model.LiquidityZone{
				State: model.Active, DetectedAtOpenMs: sp.OpenTimeMs,
				IsHighSide: sp.IsHigh, Level: sp.Price,
			})
		}
	}

	for i := range c.liquidityZones {
		lz := &c.liquidityZones[i]
		if lz.State != model.Active {
			continue
		}
		if lz.IsHighSide && last.High >= lz.Level && last.Close > lz.Level {
			lz.State = model.Invalidated
		} else if !lz.IsHighSide && last.Low <= lz.Level && last.Close < lz.Level {
			lz.State = model.Invalidated
		}
	}
}

func absDelta(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
