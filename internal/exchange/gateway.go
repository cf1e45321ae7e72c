// Package exchange defines the abstract gateway contract the pipeline talks
// to, plus a simulated implementation backed by a plain JSON-over-websocket
// candle feed for testing and paper trading.
package exchange

import (
	"context"

	"trading-systemv1/internal/model"
)

// CandleStream is the infinite, non-restartable stream returned by
// WatchCandles: the caller reconnects on failure by calling WatchCandles
// again.
type CandleStream interface {
	// Next blocks until a candle is available, the stream ends, or ctx is
	// cancelled. A non-nil error always ends the stream.
	Next(ctx context.Context) (model.Candle, error)
	Close() error
}

// Gateway is the abstract exchange contract every downstream component
// depends on. A production CCXT-style HTTP/WebSocket client is not included;
// this package ships the contract plus a Simulated implementation.
type Gateway interface {
	// WatchCandles opens an infinite candle stream for (symbol, timeframe).
	WatchCandles(ctx context.Context, symbol model.SymbolId, tf model.Timeframe) (CandleStream, error)

	// FetchOHLCV returns a finite, chronologically ordered history used to
	// warm up buffers before switching to the live stream.
	FetchOHLCV(ctx context.Context, symbol model.SymbolId, tf model.Timeframe, limit int) ([]model.Candle, error)

	PlaceOrder(ctx context.Context, spec model.OrderSpec) (model.OrderAck, error)
	CancelOrder(ctx context.Context, id string) error
	GetPosition(ctx context.Context, symbol model.SymbolId) (model.Position, error)
	GetBalances(ctx context.Context) (map[string]float64, error)
}
