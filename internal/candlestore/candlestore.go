// Package candlestore keeps one bounded buffer per StreamKey, the last
// entry mutable until a newer open_time_ms supersedes it. Unlike a plain
// ring buffer, the buffer needs live in-place overwrite of the trailing
// element plus concurrent multi-reader access, so it's a per-key
// mutex-guarded ordered slice rather than head/tail ring semantics.
package candlestore

import (
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// DefaultCapacity is the per-key buffer depth used when callers don't
// override it.
const DefaultCapacity = 1000

type buffer struct {
	mu       sync.RWMutex
	candles  []model.Candle // oldest first; last may be live (IsClosed=false)
	capacity int
}

func newBuffer(capacity int) *buffer {
	return &buffer{candles: make([]model.Candle, 0, capacity), capacity: capacity}
}

// append: newer open_time pushes, equal open_time replaces the live last
// candle, older is ignored.
func (b *buffer) append(c model.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.candles)
	if n == 0 {
		b.candles = append(b.candles, c)
		return
	}
	last := b.candles[n-1]
	switch {
	case c.OpenTimeMs > last.OpenTimeMs:
		b.candles = append(b.candles, c)
		if len(b.candles) > b.capacity {
			b.candles = append(b.candles[:0], b.candles[1:]...)
		}
	case c.OpenTimeMs == last.OpenTimeMs:
		b.candles[n-1] = c
	default:
		// out-of-order, ignore
	}
}

// snapshot returns the most recent `limit` candles (0 means all), oldest
// first. Copies the slice so callers observe a consistent view even if a
// concurrent append is in flight.
func (b *buffer) snapshot(limit int) []model.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.candles)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]model.Candle, limit)
	copy(out, b.candles[n-limit:])
	return out
}

// Store holds one buffer per StreamKey across every tracked symbol/timeframe.
type Store struct {
	mu       sync.RWMutex
	buffers  map[model.StreamKey]*buffer
	capacity int
}

// New creates a Store with the given per-key capacity (0 means
// DefaultCapacity).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buffers: make(map[model.StreamKey]*buffer), capacity: capacity}
}

func (s *Store) bufferFor(key model.StreamKey) *buffer {
	s.mu.RLock()
	b, ok := s.buffers[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.buffers[key]; ok {
		return b
	}
	b = newBuffer(s.capacity)
	s.buffers[key] = b
	return b
}

// Append adds or overwrites the live candle for its StreamKey.
func (s *Store) Append(c model.Candle) {
	s.bufferFor(c.Key()).append(c)
}

// HandleCandle is the CandleReceived subscriber entrypoint. The store owns
// its buffers exclusively and learns about new candles the same way every
// other consumer does, by subscribing to the bus, rather than the ingress
// manager holding a reference and writing into it directly.
func (s *Store) HandleCandle(evt model.Event) error {
	c, ok := evt.Payload.(model.Candle)
	if !ok {
		return nil
	}
	s.Append(c)
	return nil
}

// Remove deletes the buffer for a StreamKey immediately.
func (s *Store) Remove(key model.StreamKey) {
	s.mu.Lock()
	delete(s.buffers, key)
	s.mu.Unlock()
}

// EvictAfter removes a StreamKey's buffer after a delay, so in-flight
// consumers can still read it for the grace period before it disappears.
func (s *Store) EvictAfter(key model.StreamKey, delay time.Duration) {
	time.AfterFunc(delay, func() { s.Remove(key) })
}

// Get returns up to `limit` most recent candles for (symbol, timeframe),
// oldest first. limit<=0 returns the full buffer. Unknown keys yield an
// empty (never nil-panicking) sequence.
func (s *Store) Get(symbol model.SymbolId, tf model.Timeframe, limit int) []model.Candle {
	key := model.StreamKey{Symbol: symbol, Timeframe: tf}
	s.mu.RLock()
	b, ok := s.buffers[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return b.snapshot(limit)
}

// Len reports the current number of candles buffered for a key.
func (s *Store) Len(symbol model.SymbolId, tf model.Timeframe) int {
	key := model.StreamKey{Symbol: symbol, Timeframe: tf}
	s.mu.RLock()
	b, ok := s.buffers[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}
