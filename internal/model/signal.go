package model

import "time"

// Direction is the closed set of trade directions a Signal can carry.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Signal is immutable once emitted.
type Signal struct {
	ID               string
	Symbol           SymbolId
	Timeframe        Timeframe
	Direction        Direction
	EntryPrice       Price
	StopLoss         Price
	TakeProfit       Price
	Confidence       float64 // [0,1]
	StrategyID       string
	SourceSnapshotAt int64 // open_time_ms of the candle the snapshot was built from
}

// RejectionReason is the closed set of reason codes the risk validator
// attaches to a rejected signal.
type RejectionReason string

const (
	ReasonDailyLossLimit    RejectionReason = "DAILY_LOSS_LIMIT"
	ReasonStopInvalid       RejectionReason = "STOP_INVALID"
	ReasonStopTooTight      RejectionReason = "STOP_TOO_TIGHT"
	ReasonMinNotional       RejectionReason = "MIN_NOTIONAL"
	ReasonPositionCap       RejectionReason = "POSITION_CAP"
	ReasonInsufficientFunds RejectionReason = "INSUFFICIENT_BALANCE"
	ReasonConfigInvalid     RejectionReason = "CONFIG_INVALID"
)

// ValidatedSignal is a Signal plus the RiskValidator's verdict.
type ValidatedSignal struct {
	Signal          Signal
	Approved        bool
	PositionSize    Quantity
	RejectionReason RejectionReason
	Detail          string
}

// SignalEnvelope carries a timestamp alongside an otherwise-immutable Signal,
// kept separate so ordering/logging metadata never touches the signal value.
type SignalEnvelope struct {
	Signal    Signal
	CreatedAt time.Time
}
