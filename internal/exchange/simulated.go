package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"trading-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

// SimulatedConfig configures the Simulated gateway's websocket connection.
type SimulatedConfig struct {
	// URL of a JSON-over-websocket candle feed, e.g. "ws://localhost:9001/ws".
	// Each inbound message is a JSON-encoded model.Candle.
	URL string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

func (c *SimulatedConfig) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Simulated is a Gateway backed by a plain JSON websocket feed, for testing
// and paper trading without a real exchange connection. It's the one
// reference implementation the core ships with.
type Simulated struct {
	cfg SimulatedConfig

	mu        sync.Mutex
	positions map[model.SymbolId]model.Position
	balances  map[string]float64
	orderSeq  uint64
}

// NewSimulated validates cfg.URL and returns a Simulated gateway.
func NewSimulated(cfg SimulatedConfig) (*Simulated, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Simulated{
		cfg:       cfg,
		positions: make(map[model.SymbolId]model.Position),
		balances:  map[string]float64{"USDT": 10_000},
	}, nil
}

// WatchCandles connects to cfg.URL and returns a stream of candles for the
// given symbol/timeframe. The simulated feed is expected to multiplex all
// streams over one socket and tag messages with symbol/timeframe; this
// client filters client-side.
func (s *Simulated) WatchCandles(ctx context.Context, symbol model.SymbolId, tf model.Timeframe) (CandleStream, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, &model.GatewayError{Kind: model.NetworkError, Message: "dial failed", Err: err}
	}
	return &wsCandleStream{conn: conn, symbol: symbol, tf: tf}, nil
}

type wsCandleStream struct {
	conn   *websocket.Conn
	symbol model.SymbolId
	tf     model.Timeframe
}

func (w *wsCandleStream) Next(ctx context.Context) (model.Candle, error) {
	type result struct {
		c   model.Candle
		err error
	}
	done := make(chan result, 1)
	go func() {
		for {
			_, raw, err := w.conn.ReadMessage()
			if err != nil {
				done <- result{err: &model.GatewayError{Kind: model.NetworkError, Message: "read failed", Err: err}}
				return
			}
			var c model.Candle
			if err := json.Unmarshal(raw, &c); err != nil {
				continue // skip malformed frames, keep reading
			}
			if c.Symbol != w.symbol || c.Timeframe != w.tf {
				continue
			}
			done <- result{c: c}
			return
		}
	}()

	select {
	case <-ctx.Done():
		w.conn.Close()
		return model.Candle{}, ctx.Err()
	case r := <-done:
		return r.c, r.err
	}
}

func (w *wsCandleStream) Close() error {
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
	return w.conn.Close()
}

// FetchOHLCV is not wired to a real historical-data source; callers that
// need warm-up over a live feed should connect FetchOHLCV to a recorded
// fixture. Returns an empty history (warm-up becomes a no-op) rather than
// failing, so IngressManager proceeds straight to the live stream.
func (s *Simulated) FetchOHLCV(ctx context.Context, symbol model.SymbolId, tf model.Timeframe, limit int) ([]model.Candle, error) {
	return nil, nil
}

func (s *Simulated) PlaceOrder(ctx context.Context, spec model.OrderSpec) (model.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderAck{}, err
	}
	s.mu.Lock()
	s.orderSeq++
	id := fmt.Sprintf("sim-%d", s.orderSeq)
	s.mu.Unlock()
	return model.OrderAck{ExchangeOrderID: id, Status: model.OrderPlacedSt}, nil
}

func (s *Simulated) CancelOrder(ctx context.Context, id string) error {
	return nil
}

func (s *Simulated) GetPosition(ctx context.Context, symbol model.SymbolId) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[symbol], nil
}

func (s *Simulated) GetBalances(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out, nil
}
