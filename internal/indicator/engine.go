package indicator

import (
	"log"
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// Publisher is the subset of bus.Bus the engine needs.
type Publisher interface {
	Publish(evt model.Event)
}

// Config declares the timeframes the engine supports and its tuning
// constants. Supported timeframes must be declared at construction; candles
// for any other timeframe are dropped with a one-time warning.
type Config struct {
	Timeframes      []model.Timeframe
	SwingWindow     int // W, default 5
	LookbackPeriods int // ob_lookback_periods, default DefaultLookback
}

func (c *Config) defaults() {
	if c.SwingWindow <= 0 {
		c.SwingWindow = DefaultSwingWindow
	}
	if c.LookbackPeriods <= 0 {
		c.LookbackPeriods = DefaultLookback
	}
}

// Engine holds one map of per-key pattern state, driven by a single bus
// subscription so updates to any one key never race with another handler
// for the same key.
type Engine struct {
	cfg Config
	bus Publisher

	mu       sync.Mutex // guards state, since bus may run concurrent subscriptions; warned has warnedMu
	state    map[model.StreamKey]*streamContext
	allowed  map[model.Timeframe]bool
	warnedMu sync.Mutex
	warned   map[model.StreamKey]bool
}

// New creates an Engine for the declared set of timeframes.
func New(bus Publisher, cfg Config) *Engine {
	cfg.defaults()
	allowed := make(map[model.Timeframe]bool, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		allowed[tf] = true
	}
	return &Engine{
		cfg:     cfg,
		bus:     bus,
		state:   make(map[model.StreamKey]*streamContext),
		allowed: allowed,
		warned:  make(map[model.StreamKey]bool),
	}
}

// HandleCandle is the CandleReceived subscriber entrypoint.
func (e *Engine) HandleCandle(evt model.Event) error {
	candle, ok := evt.Payload.(model.Candle)
	if !ok {
		return nil
	}
	e.Process(candle)
	return nil
}

// Process recomputes indicator state for one incoming candle and publishes
// IndicatorUpdated.
func (e *Engine) Process(candle model.Candle) {
	if !e.allowed[candle.Timeframe] {
		e.warnUnconfigured(candle)
		return
	}

	key := candle.Key()
	e.mu.Lock()
	ctx, ok := e.state[key]
	if !ok {
		ctx = newStreamContext()
		e.state[key] = ctx
	}

	ctx.pushCandle(candle, e.cfg.LookbackPeriods)
	ctx.updateSwings(e.cfg.SwingWindow, e.cfg.LookbackPeriods)
	ctx.updateFVGs()
	ctx.updateOrderBlocks()
	ctx.updateBreakerBlocks()
	ctx.updateLiquidityZones()
	ctx.trend = ctx.classifyTrend()

	snap := ctx.snapshot(candle.Symbol, candle.Timeframe, candle.OpenTimeMs, !candle.IsClosed)
	e.mu.Unlock()

	e.publish(snap)
}

func (e *Engine) warnUnconfigured(candle model.Candle) {
	key := candle.Key()
	e.warnedMu.Lock()
	defer e.warnedMu.Unlock()
	if e.warned[key] {
		return
	}
	e.warned[key] = true
	log.Printf("[indicator] dropping CandleReceived for unconfigured timeframe %s (%s)", candle.Timeframe, key)
}

func (e *Engine) publish(snap model.IndicatorSnapshot) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(model.Event{
		Type:      model.IndicatorUpdated,
		Priority:  5,
		Payload:   snap,
		Source:    "indicator",
		CreatedAt: time.Now().UTC(),
	})
}

// Snapshot returns the current IndicatorSnapshot for a key, if any state
// exists for it yet.
func (e *Engine) Snapshot(key model.StreamKey) (model.IndicatorSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, ok := e.state[key]
	if !ok {
		return model.IndicatorSnapshot{}, false
	}
	sourceMs := int64(0)
	if n := len(ctx.candles); n > 0 {
		sourceMs = ctx.candles[n-1].OpenTimeMs
	}
	return ctx.snapshot(key.Symbol, key.Timeframe, sourceMs, false), true
}
