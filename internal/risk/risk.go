// Package risk sizes, caps, and approves/rejects signals against a live,
// ConfigStore-backed set of limits rather than a fixed-limits check.
package risk

import (
	"time"

	"trading-systemv1/internal/configstore"
	"trading-systemv1/internal/model"
)

// MinStopDistance is the minimum stop-loss distance from entry, as a
// fraction of entry price (0.05%).
const MinStopDistance = 0.0005

// AccountState supplies the live account figures the validator needs but
// does not own: PositionTracker and the gateway own this state, the
// validator only reads it.
type AccountState interface {
	EquityUSDT() float64
	DailyRealizedPnLUSDT() float64
	OpenPositionCount() int
}

// Publisher is the subset of bus.Bus the validator needs.
type Publisher interface {
	Publish(evt model.Event)
}

// Validator sizes, caps, and approves or rejects trading signals.
type Validator struct {
	settings        *configstore.Store
	account         AccountState
	bus             Publisher
	minNotionalUSDT float64
	maxPositions    int
}

// Config configures a Validator's static limits not owned by ConfigStore.
type Config struct {
	MinNotionalUSDT float64 // exchange minimum notional
	MaxPositions    int     // position-count cap
}

// New creates a Validator.
func New(settings *configstore.Store, account AccountState, bus Publisher, cfg Config) *Validator {
	if cfg.MinNotionalUSDT <= 0 {
		cfg.MinNotionalUSDT = 10
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = 10
	}
	return &Validator{
		settings: settings, account: account, bus: bus,
		minNotionalUSDT: cfg.MinNotionalUSDT, maxPositions: cfg.MaxPositions,
	}
}

// HandleSignalGenerated is the SignalGenerated subscriber entrypoint.
func (v *Validator) HandleSignalGenerated(evt model.Event) error {
	sig, ok := evt.Payload.(model.Signal)
	if !ok {
		return nil
	}
	v.Validate(sig)
	return nil
}

// Validate runs a signal through the five-step approval pipeline: config
// sanity, daily loss limit, stop validity, position cap, then sizing.
func (v *Validator) Validate(sig model.Signal) model.ValidatedSignal {
	settings, _ := v.settings.Snapshot()
	trading := settings.Trading

	if trading.RiskPerTradePercent <= 0 || trading.MaxPositionSizeUSDT <= 0 || trading.DefaultLeverage <= 0 {
		return v.reject(sig, model.ReasonConfigInvalid, "risk config incomplete")
	}

	if v.account.DailyRealizedPnLUSDT() <= -trading.DailyLossLimitUSDT {
		return v.reject(sig, model.ReasonDailyLossLimit, "daily realized pnl at or below limit")
	}

	if !stopOnCorrectSide(sig) {
		return v.reject(sig, model.ReasonStopInvalid, "stop_loss on wrong side of entry")
	}

	entry := float64(sig.EntryPrice) / model.PriceScale
	stopDist := absFloat(float64(sig.EntryPrice)-float64(sig.StopLoss)) / model.PriceScale
	if entry <= 0 || stopDist/entry < MinStopDistance {
		return v.reject(sig, model.ReasonStopTooTight, "stop distance below minimum")
	}

	if v.account.OpenPositionCount() >= v.maxPositions {
		return v.reject(sig, model.ReasonPositionCap, "open position count at cap")
	}

	riskCapital := v.account.EquityUSDT() * trading.RiskPerTradePercent / 100
	sizeByRisk := riskCapital / stopDist
	sizeByNotional := trading.MaxPositionSizeUSDT / entry
	positionSize := minFloat(sizeByRisk, sizeByNotional) * float64(trading.DefaultLeverage)

	if positionSize*entry < v.minNotionalUSDT {
		return v.reject(sig, model.ReasonMinNotional, "computed size below exchange minimum notional")
	}

	if positionSize <= 0 {
		return v.reject(sig, model.ReasonInsufficientFunds, "computed size non-positive")
	}

	result := model.ValidatedSignal{
		Signal:       sig,
		Approved:     true,
		PositionSize: model.Quantity(positionSize * float64(model.PriceScale)),
	}
	v.publish(model.RiskCheckPassed, result)
	return result
}

func stopOnCorrectSide(sig model.Signal) bool {
	if sig.Direction == model.Long {
		return sig.StopLoss < sig.EntryPrice
	}
	return sig.StopLoss > sig.EntryPrice
}

func (v *Validator) reject(sig model.Signal, reason model.RejectionReason, detail string) model.ValidatedSignal {
	result := model.ValidatedSignal{Signal: sig, Approved: false, RejectionReason: reason, Detail: detail}
	v.publish(model.RiskCheckFailed, result)
	return result
}

func (v *Validator) publish(eventType model.EventType, result model.ValidatedSignal) {
	if v.bus == nil {
		return
	}
	v.bus.Publish(model.Event{
		Type:          eventType,
		Priority:      5,
		Payload:       result,
		Source:        "risk",
		CreatedAt:     time.Now().UTC(),
		CorrelationID: result.Signal.ID,
	})
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
