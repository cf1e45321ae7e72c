package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/candlestore"
	"trading-systemv1/internal/configstore"
	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/ingress"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/supervisor"
)

type fakeGateway struct {
	mu        sync.Mutex
	watchCh   chan model.Candle
	fetchErr  error
	liveErr   error
}

func (g *fakeGateway) WatchCandles(ctx context.Context, symbol model.SymbolId, tf model.Timeframe) (exchange.CandleStream, error) {
	return &fakeStream{ch: g.watchCh}, nil
}

func (g *fakeGateway) FetchOHLCV(ctx context.Context, symbol model.SymbolId, tf model.Timeframe, limit int) ([]model.Candle, error) {
	return nil, g.fetchErr
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, spec model.OrderSpec) (model.OrderAck, error) {
	return model.OrderAck{}, nil
}
func (g *fakeGateway) CancelOrder(ctx context.Context, id string) error { return nil }
func (g *fakeGateway) GetPosition(ctx context.Context, symbol model.SymbolId) (model.Position, error) {
	return model.Position{}, nil
}
func (g *fakeGateway) GetBalances(ctx context.Context) (map[string]float64, error) { return nil, nil }

type fakeStream struct{ ch chan model.Candle }

func (s *fakeStream) Next(ctx context.Context) (model.Candle, error) {
	select {
	case c, ok := <-s.ch:
		if !ok {
			return model.Candle{}, context.Canceled
		}
		return c, nil
	case <-ctx.Done():
		return model.Candle{}, ctx.Err()
	}
}
func (s *fakeStream) Close() error { return nil }

func newHarness(t *testing.T) (*Controller, *bus.Bus, *fakeGateway) {
	t.Helper()
	b := bus.New(nil, nil)
	gw := &fakeGateway{watchCh: make(chan model.Candle, 4)}
	candles := candlestore.New(0)
	b.Subscribe(model.CandleReceived, func(ctx context.Context, evt model.Event) error {
		return candles.HandleCandle(evt)
	})
	sup := supervisor.New(nil, nil, nil)
	ingressMgr := ingress.New(gw, candles, b, sup, ingress.Config{})
	settings := configstore.New(nil, configstore.DefaultSettings())

	ctrl := New(gw, ingressMgr, candles, settings, b, Config{WarmupTimeout: 2 * time.Second})
	return ctrl, b, gw
}

func TestController_AddSymbolCommitsOnSuccessfulWarmup(t *testing.T) {
	ctrl, _, gw := newHarness(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		gw.watchCh <- model.Candle{Symbol: "ETHUSDT", Timeframe: model.M5, OpenTimeMs: 100, IsClosed: true}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := ctrl.AddSymbol(ctx, "ETHUSDT", []model.Timeframe{model.M5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings, _ := ctrl.settings.Snapshot()
	found := false
	for _, s := range settings.Market.ActiveSymbols {
		if s == "ETHUSDT" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected ETHUSDT committed to active symbols")
	}
}

func TestController_AddSymbolRollsBackOnWarmupTimeout(t *testing.T) {
	ctrl, _, _ := newHarness(t)
	ctrl.warmupTimeout = 30 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ctrl.AddSymbol(ctx, "SOLUSDT", []model.Timeframe{model.M5})
	if err == nil {
		t.Fatal("expected warm-up timeout error")
	}

	settings, _ := ctrl.settings.Snapshot()
	for _, s := range settings.Market.ActiveSymbols {
		if s == "SOLUSDT" {
			t.Fatal("expected no commit on warm-up failure")
		}
	}
}

func TestController_RemoveSymbolCommitsAndEvicts(t *testing.T) {
	ctrl, _, _ := newHarness(t)
	key := model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5}
	ctrl.candles.Append(model.Candle{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 100})

	if err := ctrl.RemoveSymbol("BTCUSDT", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctrl.candles.Len(key.Symbol, key.Timeframe) != 0 {
		t.Fatal("expected buffer removed immediately when grace is zero")
	}
	settings, _ := ctrl.settings.Snapshot()
	for _, s := range settings.Market.ActiveSymbols {
		if s == "BTCUSDT" {
			t.Fatal("expected BTCUSDT removed from active symbols")
		}
	}
}
