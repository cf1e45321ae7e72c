// Package ingress runs one supervised task per active StreamKey doing
// warm-up-then-live candle ingestion: historical backfill replays first, in
// order, then the task switches to the live gateway stream. Reconnect-with-
// backoff is NOT reimplemented here: the supervisor already owns that job,
// so each watch task simply returns its error and lets the supervisor's
// backoff retry it.
package ingress

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"trading-systemv1/internal/candlestore"
	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/supervisor"
)

// Default tuning for warm-up behavior.
const (
	DefaultWarmup = 1000 // candles fetched on cold warm-up
	DefaultMinAmt = 50   // buffer depth below which a warm-up is triggered
)

// Publisher is the subset of bus.Bus the manager needs.
type Publisher interface {
	Publish(evt model.Event)
}

// Manager owns one supervised ingestion task per active StreamKey.
type Manager struct {
	gateway exchange.Gateway
	store   *candlestore.Store
	bus     Publisher
	sup     *supervisor.Supervisor

	warmup int
	minAmt int
}

// Config configures a Manager; zero values take the package defaults.
type Config struct {
	Warmup int
	MinAmt int
}

// New creates a Manager. sup is the supervisor that will own every
// per-key watch task.
func New(gateway exchange.Gateway, store *candlestore.Store, bus Publisher, sup *supervisor.Supervisor, cfg Config) *Manager {
	if cfg.Warmup <= 0 {
		cfg.Warmup = DefaultWarmup
	}
	if cfg.MinAmt <= 0 {
		cfg.MinAmt = DefaultMinAmt
	}
	return &Manager{gateway: gateway, store: store, bus: bus, sup: sup, warmup: cfg.Warmup, minAmt: cfg.MinAmt}
}

func taskName(key model.StreamKey) string { return "ingress:" + key.String() }

// Watch starts (or ensures running) the supervised watch task for key.
func (m *Manager) Watch(key model.StreamKey) error {
	return m.sup.Submit(supervisor.TaskConfig{
		Name:             taskName(key),
		Func:             func(ctx context.Context) error { return m.watch(ctx, key) },
		RestartOnFailure: true,
		MaxRestarts:      math.MaxInt32, // ingress streams retry indefinitely
		BackoffBaseMs:    1000,
		BackoffCapMs:     30_000,
		Timeout:          24 * time.Hour, // the watch loop itself runs until error/cancel
		Group:            "ingress",
		Priority:         supervisor.High,
	})
}

// Stop cancels the watch task for key.
func (m *Manager) Stop(key model.StreamKey) {
	m.sup.Cancel(taskName(key))
}

// watch runs one pass of warm-up (if needed) then live streaming for
// (symbol, timeframe). Returns on stream error so the supervisor can
// restart it with backoff.
func (m *Manager) watch(ctx context.Context, key model.StreamKey) error {
	if m.store.Len(key.Symbol, key.Timeframe) < m.minAmt {
		if err := m.warmUp(ctx, key); err != nil {
			return fmt.Errorf("ingress: warm-up %s: %w", key, err)
		}
	}

	stream, err := m.gateway.WatchCandles(ctx, key.Symbol, key.Timeframe)
	if err != nil {
		return fmt.Errorf("ingress: watch_candles %s: %w", key, err)
	}
	defer stream.Close()

	for {
		c, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ingress: stream %s: %w", key, err)
		}
		m.publishCandle(c, "live", 6)
	}
}

// warmUp fetches historical candles and replays them as CandleReceived
// events in chronological order before live streaming begins.
func (m *Manager) warmUp(ctx context.Context, key model.StreamKey) error {
	candles, err := m.gateway.FetchOHLCV(ctx, key.Symbol, key.Timeframe, m.warmup)
	if err != nil {
		return err
	}
	for _, c := range candles {
		m.publishCandle(c, "warmup", 4)
	}
	if len(candles) > 0 {
		log.Printf("[ingress] warmed up %s with %d candles", key, len(candles))
	}
	return nil
}

// publishCandle emits CandleReceived; the candle store and indicator engine
// each subscribe and update their own state independently, rather than
// this manager holding references into either and writing directly.
func (m *Manager) publishCandle(c model.Candle, source string, priority int) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(model.Event{
		Type:      model.CandleReceived,
		Priority:  priority,
		Payload:   c,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	})
}
