package risk

import (
	"sync"
	"testing"

	"trading-systemv1/internal/configstore"
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

func (b *collectingBus) last() model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type fakeAccount struct {
	equity       float64
	dailyPnL     float64
	openPosCount int
}

func (a fakeAccount) EquityUSDT() float64           { return a.equity }
func (a fakeAccount) DailyRealizedPnLUSDT() float64 { return a.dailyPnL }
func (a fakeAccount) OpenPositionCount() int        { return a.openPosCount }

func baseSignal() model.Signal {
	return model.Signal{
		ID: "sig-1", Symbol: "BTCUSDT", Timeframe: model.M5,
		Direction: model.Long, EntryPrice: 100 * model.PriceScale,
		StopLoss: 95 * model.PriceScale, TakeProfit: 110 * model.PriceScale,
	}
}

func TestValidator_ApprovesValidSignal(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	bus := &collectingBus{}
	v := New(store, fakeAccount{equity: 100_000, openPosCount: 0}, bus, Config{})

	result := v.Validate(baseSignal())
	if !result.Approved {
		t.Fatalf("expected approval, got rejection: %s %s", result.RejectionReason, result.Detail)
	}
	if bus.last().Type != model.RiskCheckPassed {
		t.Fatal("expected RiskCheckPassed event")
	}
}

func TestValidator_RejectsDailyLossLimit(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	bus := &collectingBus{}
	v := New(store, fakeAccount{equity: 100_000, dailyPnL: -1000}, bus, Config{})

	result := v.Validate(baseSignal())
	if result.Approved || result.RejectionReason != model.ReasonDailyLossLimit {
		t.Fatalf("expected DAILY_LOSS_LIMIT rejection, got %+v", result)
	}
}

func TestValidator_RejectsStopOnWrongSide(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	v := New(store, fakeAccount{equity: 100_000}, nil, Config{})

	sig := baseSignal()
	sig.StopLoss = 105 * model.PriceScale // above entry for a LONG — wrong side

	result := v.Validate(sig)
	if result.Approved || result.RejectionReason != model.ReasonStopInvalid {
		t.Fatalf("expected STOP_INVALID, got %+v", result)
	}
}

func TestValidator_RejectsStopTooTight(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	v := New(store, fakeAccount{equity: 100_000}, nil, Config{})

	sig := baseSignal()
	sig.StopLoss = sig.EntryPrice - model.Price(float64(sig.EntryPrice)*0.0001) // 0.01% < 0.05% min

	result := v.Validate(sig)
	if result.Approved || result.RejectionReason != model.ReasonStopTooTight {
		t.Fatalf("expected STOP_TOO_TIGHT, got %+v", result)
	}
}

func TestValidator_RejectsPositionCap(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	v := New(store, fakeAccount{equity: 100_000, openPosCount: 3}, nil, Config{MaxPositions: 3})

	result := v.Validate(baseSignal())
	if result.Approved || result.RejectionReason != model.ReasonPositionCap {
		t.Fatalf("expected POSITION_CAP, got %+v", result)
	}
}

func TestValidator_RejectsConfigInvalid(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	// Force an invalid trading config by rolling back past a bad patch is
	// awkward to set up through the public API, so exercise the check via
	// a store whose risk_per_trade_percent could not be zero through normal
	// Update* validation — instead verify the zero-leverage guard directly
	// using a freshly constructed Settings with DefaultLeverage left at 0.
	bad := configstore.DefaultSettings()
	bad.Trading.DefaultLeverage = 0
	store2 := configstore.New(nil, bad)
	v := New(store2, fakeAccount{equity: 100_000}, nil, Config{})

	result := v.Validate(baseSignal())
	if result.Approved || result.RejectionReason != model.ReasonConfigInvalid {
		t.Fatalf("expected CONFIG_INVALID, got %+v", result)
	}
}

func TestValidator_PositionSizeArithmetic(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	v := New(store, fakeAccount{equity: 100_000}, nil, Config{MinNotionalUSDT: 1})

	// equity=100_000, risk_per_trade=1% -> risk_capital=1000
	// stop_dist = |100-95| = 5, size_by_risk = 1000/5 = 200
	// max_position_size_usdt=1000, entry=100 -> size_by_notional = 10
	// leverage=1 -> position_size = min(200,10)*1 = 10
	result := v.Validate(baseSignal())
	if !result.Approved {
		t.Fatalf("expected approval, got %+v", result)
	}
	wantSize := model.Quantity(10 * model.PriceScale)
	if result.PositionSize != wantSize {
		t.Fatalf("expected position size %d, got %d", wantSize, result.PositionSize)
	}
}

func TestValidator_RejectsMinNotional(t *testing.T) {
	store := configstore.New(nil, configstore.DefaultSettings())
	v := New(store, fakeAccount{equity: 1}, nil, Config{MinNotionalUSDT: 10})

	result := v.Validate(baseSignal())
	if result.Approved || result.RejectionReason != model.ReasonMinNotional {
		t.Fatalf("expected MIN_NOTIONAL, got %+v", result)
	}
}
