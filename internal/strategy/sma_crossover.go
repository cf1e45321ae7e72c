package strategy

import "trading-systemv1/internal/model"

// OrderBlockStrategy is a reference Strategy implementation: it enters in
// the direction of the prevailing trend when an ACTIVE order block sits
// near the current close. It is stateless across events: all state comes
// from the IndicatorSnapshot and recentCandles arguments passed to
// Evaluate, nothing is held on the struct besides static parameters.
type OrderBlockStrategy struct {
	id              string
	timeframes      []model.Timeframe
	stopDistPercent float64 // stop-loss distance as a fraction of entry
	rewardMultiple  float64 // take-profit distance as a multiple of stop distance
}

// NewOrderBlockStrategy creates a stateless order-block strategy.
func NewOrderBlockStrategy(id string, timeframes []model.Timeframe, stopDistPercent, rewardMultiple float64) *OrderBlockStrategy {
	if stopDistPercent <= 0 {
		stopDistPercent = 0.005
	}
	if rewardMultiple <= 0 {
		rewardMultiple = 2
	}
	return &OrderBlockStrategy{
		id: id, timeframes: timeframes,
		stopDistPercent: stopDistPercent, rewardMultiple: rewardMultiple,
	}
}

func (s *OrderBlockStrategy) ID() string                       { return s.id }
func (s *OrderBlockStrategy) Timeframes() []model.Timeframe    { return s.timeframes }

// Evaluate looks for the most recently detected ACTIVE order block aligned
// with the snapshot's trend and, if the last candle's close sits inside
// it, emits a Signal in the trend direction.
func (s *OrderBlockStrategy) Evaluate(snap model.IndicatorSnapshot, recentCandles []model.Candle) *model.Signal {
	if len(recentCandles) == 0 || snap.Trend == model.TrendFlat {
		return nil
	}
	last := recentCandles[len(recentCandles)-1]
	wantBullish := snap.Trend == model.TrendUp

	var ob *model.OrderBlock
	for i := len(snap.OrderBlocks) - 1; i >= 0; i-- {
		cand := snap.OrderBlocks[i]
		if cand.State != model.Active || cand.Bullish != wantBullish {
			continue
		}
		ob = &snap.OrderBlocks[i]
		break
	}
	if ob == nil {
		return nil
	}
	if last.Close < ob.Low || last.Close > ob.High {
		return nil // price has not returned into the block
	}

	entry := last.Close
	var stop, target model.Price
	var direction model.Direction
	stopDist := model.Price(float64(entry) * s.stopDistPercent)
	if stopDist <= 0 {
		stopDist = 1
	}

	if wantBullish {
		direction = model.Long
		stop = entry - stopDist
		target = entry + model.Price(float64(stopDist)*s.rewardMultiple)
	} else {
		direction = model.Short
		stop = entry + stopDist
		target = entry - model.Price(float64(stopDist)*s.rewardMultiple)
	}

	return &model.Signal{
		Symbol:           snap.Symbol,
		Timeframe:        snap.Timeframe,
		Direction:        direction,
		EntryPrice:       entry,
		StopLoss:         stop,
		TakeProfit:       target,
		Confidence:       0.5,
		SourceSnapshotAt: snap.SourceCandleTimeMs,
	}
}
