package ingress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trading-systemv1/internal/candlestore"
	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/supervisor"
)

type fakeStream struct {
	candles []model.Candle
	i       int
	closed  bool
}

func (f *fakeStream) Next(ctx context.Context) (model.Candle, error) {
	if f.i >= len(f.candles) {
		<-ctx.Done()
		return model.Candle{}, ctx.Err()
	}
	c := f.candles[f.i]
	f.i++
	return c, nil
}

func (f *fakeStream) Close() error { f.closed = true; return nil }

type fakeGateway struct {
	mu       sync.Mutex
	warmup   []model.Candle
	live     []model.Candle
	watchErr error
}

func (g *fakeGateway) WatchCandles(ctx context.Context, symbol model.SymbolId, tf model.Timeframe) (exchange.CandleStream, error) {
	if g.watchErr != nil {
		return nil, g.watchErr
	}
	return &fakeStream{candles: g.live}, nil
}

func (g *fakeGateway) FetchOHLCV(ctx context.Context, symbol model.SymbolId, tf model.Timeframe, limit int) ([]model.Candle, error) {
	return g.warmup, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, spec model.OrderSpec) (model.OrderAck, error) {
	return model.OrderAck{}, nil
}
func (g *fakeGateway) CancelOrder(ctx context.Context, id string) error { return nil }
func (g *fakeGateway) GetPosition(ctx context.Context, symbol model.SymbolId) (model.Position, error) {
	return model.Position{}, nil
}
func (g *fakeGateway) GetBalances(ctx context.Context) (map[string]float64, error) { return nil, nil }

type collectingBus struct {
	mu     sync.Mutex
	events []model.Event
}

func (b *collectingBus) Publish(evt model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *collectingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestManager_WarmupThenLivePublishesInOrder(t *testing.T) {
	gw := &fakeGateway{
		warmup: []model.Candle{
			{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 100, IsClosed: true},
			{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 200, IsClosed: true},
		},
		live: []model.Candle{
			{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 300, IsClosed: false},
		},
	}
	store := candlestore.New(0)
	bus := &collectingBus{}
	sup := supervisor.New(nil, nil, nil)
	defer sup.Close()

	m := New(gw, store, bus, sup, Config{Warmup: 10, MinAmt: 1})
	key := model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5}
	if err := m.Watch(key); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bus.count() < 3 {
		time.Sleep(time.Millisecond)
	}
	if bus.count() < 3 {
		t.Fatalf("expected at least 3 published events (2 warmup + 1 live), got %d", bus.count())
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	if bus.events[0].Source != "warmup" || bus.events[1].Source != "warmup" || bus.events[2].Source != "live" {
		t.Fatalf("expected warmup-then-live order, got %v %v %v", bus.events[0].Source, bus.events[1].Source, bus.events[2].Source)
	}
	m.Stop(key)
}

func TestManager_SkipsWarmupWhenStoreAlreadyWarm(t *testing.T) {
	gw := &fakeGateway{
		warmup: []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 999}},
		live:   []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: 1000}},
	}
	store := candlestore.New(0)
	for i := int64(1); i <= 5; i++ {
		store.Append(model.Candle{Symbol: "BTCUSDT", Timeframe: model.M5, OpenTimeMs: i, IsClosed: true})
	}
	bus := &collectingBus{}
	sup := supervisor.New(nil, nil, nil)
	defer sup.Close()

	m := New(gw, store, bus, sup, Config{Warmup: 10, MinAmt: 2})
	key := model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5}
	if err := m.Watch(key); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bus.count() < 1 {
		time.Sleep(time.Millisecond)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for _, e := range bus.events {
		if e.Source == "warmup" {
			t.Fatal("expected warm-up to be skipped when store already has >= MinAmt candles")
		}
	}
	m.Stop(key)
}

func TestManager_WatchFailureIsRetried(t *testing.T) {
	gw := &fakeGateway{watchErr: errors.New("boom")}
	store := candlestore.New(0)
	sup := supervisor.New(nil, nil, nil)
	defer sup.Close()

	m := New(gw, store, nil, sup, Config{Warmup: 1, MinAmt: 0})
	key := model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5}
	if err := m.Watch(key); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	st, ok := sup.State(taskName(key))
	if !ok {
		t.Fatal("expected task to be registered")
	}
	if st != supervisor.TaskFailed && st != supervisor.TaskRunning {
		t.Fatalf("expected task retrying (FAILED or RUNNING), got %v", st)
	}
	m.Stop(key)
}
