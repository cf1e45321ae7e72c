package model

import (
	"encoding/json"
	"fmt"
)

// Price and Quantity are fixed-point decimals scaled by 1e8 (satoshi-style),
// stored as int64. No float equality anywhere in the pipeline: comparisons
// on these are plain integer ops. Risk sizing and strategy stop distances
// convert them to float64 for their arithmetic.
type Price int64
type Quantity int64

const PriceScale = 100_000_000

// Candle is immutable once closed. Within a StreamKey, the last candle is
// mutable (IsClosed=false) and is overwritten in place until a newer
// OpenTimeMs arrives.
type Candle struct {
	Symbol     SymbolId  `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	OpenTimeMs int64     `json:"open_time_ms"`
	Open       Price     `json:"open"`
	High       Price     `json:"high"`
	Low        Price     `json:"low"`
	Close      Price     `json:"close"`
	Volume     Quantity  `json:"volume"`
	IsClosed   bool      `json:"is_closed"`
}

// Key returns this candle's StreamKey.
func (c *Candle) Key() StreamKey {
	return StreamKey{Symbol: c.Symbol, Timeframe: c.Timeframe}
}

// Validate checks the OHLC and alignment invariants.
func (c *Candle) Validate() error {
	if c.Volume < 0 {
		return fmt.Errorf("model: candle %s volume %d < 0", c.Key(), c.Volume)
	}
	lo := c.Open
	if c.Close < lo {
		lo = c.Close
	}
	hi := c.Open
	if c.Close > hi {
		hi = c.Close
	}
	if c.Low > lo || hi > c.High {
		return fmt.Errorf("model: candle %s violates low<=min(open,close)<=max(open,close)<=high", c.Key())
	}
	if tfSec := c.Timeframe.Seconds(); tfSec > 0 {
		if c.OpenTimeMs%(tfSec*1000) != 0 {
			return fmt.Errorf("model: candle %s open_time_ms %d not aligned to %s boundary", c.Key(), c.OpenTimeMs, c.Timeframe)
		}
	}
	return nil
}

// JSON returns the JSON-encoded candle (errors ignored, hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
