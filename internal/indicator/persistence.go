package indicator

import (
	"encoding/json"
	"fmt"

	"trading-systemv1/internal/model"
)

// engineSnapshotKey is the fixed SnapshotStore key under which the whole
// engine's state is checkpointed as a single blob.
const engineSnapshotKey = "indicator:engine:snapshot"

// keyedContext pairs a StreamKey with its serializable state for JSON
// round-tripping (streamContext itself is unexported).
type keyedContext struct {
	Symbol    model.SymbolId
	Timeframe model.Timeframe

	Candles        []model.Candle
	Swings         []model.SwingPoint
	OrderBlocks    []model.OrderBlock
	FVGs           []model.FVG
	BreakerBlocks  []model.BreakerBlock
	LiquidityZones []model.LiquidityZone
	Trend          model.Trend
}

// EngineSnapshot is the full persisted state of an Engine: swing/pattern
// history survives restarts rather than rebuilding from scratch. Version
// is carried for forward-compat as the schema evolves.
type EngineSnapshot struct {
	Version  int            `json:"version"`
	Contexts []keyedContext `json:"contexts"`
}

// Snapshot captures the full state of e for persistence.
func (e *Engine) SnapshotAll() EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := EngineSnapshot{Version: 1}
	for key, ctx := range e.state {
		snap.Contexts = append(snap.Contexts, keyedContext{
			Symbol: key.Symbol, Timeframe: key.Timeframe,
			Candles: ctx.candles, Swings: ctx.swings,
			OrderBlocks: ctx.orderBlocks, FVGs: ctx.fvgs,
			BreakerBlocks: ctx.breakerBlocks, LiquidityZones: ctx.liquidityZones,
			Trend: ctx.trend,
		})
	}
	return snap
}

// Restore replaces e's per-key state with snap's. Keys for timeframes no
// longer declared in e.cfg.Timeframes are skipped, tolerating config
// changes made between the snapshot and the restore.
func (e *Engine) Restore(snap EngineSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, kc := range snap.Contexts {
		if !e.allowed[kc.Timeframe] {
			continue
		}
		ctx := newStreamContext()
		ctx.candles = kc.Candles
		ctx.swings = kc.Swings
		ctx.orderBlocks = kc.OrderBlocks
		ctx.fvgs = kc.FVGs
		ctx.breakerBlocks = kc.BreakerBlocks
		ctx.liquidityZones = kc.LiquidityZones
		ctx.trend = kc.Trend
		e.state[model.StreamKey{Symbol: kc.Symbol, Timeframe: kc.Timeframe}] = ctx
	}
}

// SaveSnapshot persists e's state to store.
func (e *Engine) SaveSnapshot(store model.SnapshotStore) error {
	data, err := json.Marshal(e.SnapshotAll())
	if err != nil {
		return fmt.Errorf("indicator: marshal snapshot: %w", err)
	}
	return store.SaveSnapshotJSON(engineSnapshotKey, data)
}

// LoadSnapshot restores e's state from store, if a snapshot exists.
func (e *Engine) LoadSnapshot(store model.SnapshotStore) error {
	data, err := store.ReadLatestSnapshotJSON(engineSnapshotKey)
	if err != nil {
		return fmt.Errorf("indicator: read snapshot: %w", err)
	}
	if data == nil {
		return nil
	}
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("indicator: unmarshal snapshot: %w", err)
	}
	e.Restore(snap)
	return nil
}
