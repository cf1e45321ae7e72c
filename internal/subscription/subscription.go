// Package subscription manages atomic add/remove of symbols into the live
// subscription set: starting or stopping the ingress tasks that feed a
// symbol's candles, and committing the resulting active-symbol set to
// ConfigStore only once the change has proven itself out (or cleanly
// rolling it back on failure).
package subscription

import (
	"context"
	"fmt"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/candlestore"
	"trading-systemv1/internal/configstore"
	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/ingress"
	"trading-systemv1/internal/model"
)

// DefaultWarmupTimeout is the warm-up wait ceiling for a newly added symbol.
const DefaultWarmupTimeout = 30 * time.Second

// Controller manages the live subscription set. It needs the bus's
// Subscribe/Unsubscribe as well as Publish (to watch for a new StreamKey's
// first CandleReceived during AddSymbol's warm-up wait), so it depends on
// the concrete *bus.Bus rather than a narrow interface.
type Controller struct {
	gateway  exchange.Gateway
	ingress  *ingress.Manager
	candles  *candlestore.Store
	settings *configstore.Store
	bus      *bus.Bus

	warmupTimeout time.Duration
}

// Config configures a Controller; zero values take the package defaults.
type Config struct {
	WarmupTimeout time.Duration
}

// New creates a Controller.
func New(gateway exchange.Gateway, ingressMgr *ingress.Manager, candles *candlestore.Store, settings *configstore.Store, eventBus *bus.Bus, cfg Config) *Controller {
	if cfg.WarmupTimeout <= 0 {
		cfg.WarmupTimeout = DefaultWarmupTimeout
	}
	return &Controller{
		gateway: gateway, ingress: ingressMgr, candles: candles, settings: settings, bus: eventBus,
		warmupTimeout: cfg.WarmupTimeout,
	}
}

// AddSymbol validates the symbol with the gateway, starts a supervised
// ingress task per new StreamKey,
// waits for at least one warm-up batch (or times out), then commits the
// new active-symbol set to ConfigStore. On warm-up failure the started
// tasks are cancelled and the config change is not committed.
func (c *Controller) AddSymbol(ctx context.Context, symbol model.SymbolId, timeframes []model.Timeframe) error {
	settings, _ := c.settings.Snapshot()
	if timeframes == nil {
		timeframes = []model.Timeframe{settings.Market.PrimaryTimeframe}
	}

	if _, err := c.gateway.FetchOHLCV(ctx, symbol, timeframes[0], 1); err != nil {
		if gerr, ok := err.(*model.GatewayError); ok && gerr.Kind == model.NotFound {
			return fmt.Errorf("subscription: unknown symbol %q: %w", symbol, err)
		}
	}

	keys := make([]model.StreamKey, 0, len(timeframes))
	for _, tf := range timeframes {
		keys = append(keys, model.StreamKey{Symbol: symbol, Timeframe: tf})
	}

	started := make([]model.StreamKey, 0, len(keys))
	rollback := func() {
		for _, k := range started {
			c.ingress.Stop(k)
		}
	}

	for _, key := range keys {
		if err := c.ingress.Watch(key); err != nil {
			rollback()
			return fmt.Errorf("subscription: start ingress for %s: %w", key, err)
		}
		started = append(started, key)
	}

	if err := c.waitForWarmup(ctx, keys); err != nil {
		rollback()
		return fmt.Errorf("subscription: warm-up %s: %w", symbol, err)
	}

	next := append([]model.SymbolId(nil), settings.Market.ActiveSymbols...)
	next = append(next, symbol)
	if err := c.settings.UpdateMarket(configstore.MarketPatch{ActiveSymbols: next}); err != nil {
		rollback()
		return fmt.Errorf("subscription: commit active symbols: %w", err)
	}

	c.publishChanged([]model.SymbolId{symbol}, nil)
	return nil
}

// waitForWarmup blocks until every key has produced at least one
// CandleReceived, or ctx/the warm-up timeout elapses first.
func (c *Controller) waitForWarmup(ctx context.Context, keys []model.StreamKey) error {
	pending := make(map[model.StreamKey]bool, len(keys))
	for _, k := range keys {
		pending[k] = true
	}

	done := make(chan struct{})
	token := c.bus.Subscribe(model.CandleReceived, func(_ context.Context, evt model.Event) error {
		candle, ok := evt.Payload.(model.Candle)
		if !ok {
			return nil
		}
		key := candle.Key()
		if pending[key] {
			delete(pending, key)
			if len(pending) == 0 {
				close(done)
			}
		}
		return nil
	})
	defer c.bus.Unsubscribe(token)

	waitCtx, cancel := context.WithTimeout(ctx, c.warmupTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("timed out waiting for warm-up after %s", c.warmupTimeout)
	}
}

// RemoveSymbol cancels all ingress tasks for the symbol, flushes its
// candle buffers with a grace
// period for in-flight events, and commits the reduced active-symbol set.
func (c *Controller) RemoveSymbol(symbol model.SymbolId, evictGrace time.Duration) error {
	settings, _ := c.settings.Snapshot()

	for _, tf := range []model.Timeframe{settings.Market.PrimaryTimeframe, settings.Market.HigherTimeframe, settings.Market.LowerTimeframe} {
		key := model.StreamKey{Symbol: symbol, Timeframe: tf}
		c.ingress.Stop(key)
		if evictGrace <= 0 {
			c.candles.Remove(key)
		} else {
			c.candles.EvictAfter(key, evictGrace)
		}
	}

	next := make([]model.SymbolId, 0, len(settings.Market.ActiveSymbols))
	for _, s := range settings.Market.ActiveSymbols {
		if s != symbol {
			next = append(next, s)
		}
	}
	if err := c.settings.UpdateMarket(configstore.MarketPatch{ActiveSymbols: next}); err != nil {
		return fmt.Errorf("subscription: commit active symbols: %w", err)
	}

	c.publishChanged(nil, []model.SymbolId{symbol})
	return nil
}

func (c *Controller) publishChanged(added, removed []model.SymbolId) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(model.Event{
		Type:      model.SubscriptionChanged,
		Priority:  3,
		Payload:   ChangedPayload{Added: added, Removed: removed},
		Source:    "subscription",
		CreatedAt: time.Now().UTC(),
	})
}

// ChangedPayload is the SubscriptionChanged event payload.
type ChangedPayload struct {
	Added   []model.SymbolId
	Removed []model.SymbolId
}
