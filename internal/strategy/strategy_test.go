package strategy

import (
	"sync"
	"testing"

	"trading-systemv1/internal/model"
)

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

type fakeCandleSource struct{ candles []model.Candle }

func (f fakeCandleSource) Get(symbol model.SymbolId, tf model.Timeframe, limit int) []model.Candle {
	return f.candles
}

type panicStrategy struct{}

func (panicStrategy) ID() string                    { return "panicker" }
func (panicStrategy) Timeframes() []model.Timeframe { return []model.Timeframe{model.M5} }
func (panicStrategy) Evaluate(model.IndicatorSnapshot, []model.Candle) *model.Signal {
	panic("boom")
}

func TestLayer_PanickingStrategyIsolated(t *testing.T) {
	bus := &collectingBus{}
	candles := fakeCandleSource{candles: []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, Close: 100}}}
	l := New(bus, candles, nil)
	l.Register(panicStrategy{})

	l.Process(model.IndicatorSnapshot{Symbol: "BTCUSDT", Timeframe: model.M5, Trend: model.TrendUp})

	if bus.count() != 0 {
		t.Fatal("expected no signal from panicking strategy")
	}
}

func TestLayer_DisabledStrategySkipped(t *testing.T) {
	bus := &collectingBus{}
	candles := fakeCandleSource{candles: []model.Candle{
		{Symbol: "BTCUSDT", Timeframe: model.M5, Close: 100},
	}}
	l := New(bus, candles, func(id string) bool { return false })
	l.Register(NewOrderBlockStrategy("ob1", []model.Timeframe{model.M5}, 0.01, 2))

	l.Process(model.IndicatorSnapshot{
		Symbol: "BTCUSDT", Timeframe: model.M5, Trend: model.TrendUp,
		OrderBlocks: []model.OrderBlock{{State: model.Active, Bullish: true, High: 110, Low: 90}},
	})

	if bus.count() != 0 {
		t.Fatal("expected disabled strategy to be skipped")
	}
}

func TestLayer_TimeframeMismatchSkipped(t *testing.T) {
	bus := &collectingBus{}
	candles := fakeCandleSource{candles: []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.H1, Close: 100}}}
	l := New(bus, candles, nil)
	l.Register(NewOrderBlockStrategy("ob1", []model.Timeframe{model.M5}, 0.01, 2))

	l.Process(model.IndicatorSnapshot{Symbol: "BTCUSDT", Timeframe: model.H1, Trend: model.TrendUp})
	if bus.count() != 0 {
		t.Fatal("expected strategy not subscribed to H1 to be skipped")
	}
}

func TestOrderBlockStrategy_EmitsLongInUptrendInsideBlock(t *testing.T) {
	s := NewOrderBlockStrategy("ob1", []model.Timeframe{model.M5}, 0.01, 2)
	snap := model.IndicatorSnapshot{
		Symbol: "BTCUSDT", Timeframe: model.M5, Trend: model.TrendUp,
		OrderBlocks: []model.OrderBlock{{State: model.Active, Bullish: true, High: 110, Low: 90}},
	}
	recent := []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, Close: 100}}

	sig := s.Evaluate(snap, recent)
	if sig == nil {
		t.Fatal("expected a signal")
	}
	if sig.Direction != model.Long {
		t.Fatalf("expected LONG, got %v", sig.Direction)
	}
	if sig.StopLoss >= sig.EntryPrice {
		t.Fatal("expected stop below entry for a long")
	}
	if sig.TakeProfit <= sig.EntryPrice {
		t.Fatal("expected target above entry for a long")
	}
}

func TestOrderBlockStrategy_NoSignalOutsideBlock(t *testing.T) {
	s := NewOrderBlockStrategy("ob1", []model.Timeframe{model.M5}, 0.01, 2)
	snap := model.IndicatorSnapshot{
		Symbol: "BTCUSDT", Timeframe: model.M5, Trend: model.TrendUp,
		OrderBlocks: []model.OrderBlock{{State: model.Active, Bullish: true, High: 110, Low: 90}},
	}
	recent := []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, Close: 200}}

	if sig := s.Evaluate(snap, recent); sig != nil {
		t.Fatal("expected no signal when price is outside the order block")
	}
}

func TestLayer_AssignsFreshSignalIDs(t *testing.T) {
	bus := &collectingBus{}
	candles := fakeCandleSource{candles: []model.Candle{{Symbol: "BTCUSDT", Timeframe: model.M5, Close: 100}}}
	l := New(bus, candles, nil)
	l.Register(NewOrderBlockStrategy("ob1", []model.Timeframe{model.M5}, 0.01, 2))

	snap := model.IndicatorSnapshot{
		Symbol: "BTCUSDT", Timeframe: model.M5, Trend: model.TrendUp,
		OrderBlocks: []model.OrderBlock{{State: model.Active, Bullish: true, High: 110, Low: 90}},
	}
	l.Process(snap)
	l.Process(snap)

	if bus.count() != 2 {
		t.Fatalf("expected 2 signals, got %d", bus.count())
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	id1 := bus.events[0].Payload.(model.Signal).ID
	id2 := bus.events[1].Payload.(model.Signal).ID
	if id1 == "" || id1 == id2 {
		t.Fatalf("expected distinct non-empty signal IDs, got %q and %q", id1, id2)
	}
}
