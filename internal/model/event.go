package model

import "time"

// EventType is the closed taxonomy of events carried over the bus.
type EventType string

const (
	CandleReceived      EventType = "CandleReceived"
	IndicatorUpdated    EventType = "IndicatorUpdated"
	SignalGenerated     EventType = "SignalGenerated"
	RiskCheckPassed     EventType = "RiskCheckPassed"
	RiskCheckFailed     EventType = "RiskCheckFailed"
	OrderPlaced         EventType = "OrderPlaced"
	OrderFilled         EventType = "OrderFilled"
	PositionOpened      EventType = "PositionOpened"
	PositionClosed      EventType = "PositionClosed"
	ConfigUpdated       EventType = "ConfigUpdated"
	SubscriptionChanged EventType = "SubscriptionChanged"
	ServiceStateChanged EventType = "ServiceStateChanged"
	TaskRestarted       EventType = "TaskRestarted"
)

// eventTypes is used to validate subscriptions against the closed taxonomy.
var eventTypes = map[EventType]bool{
	CandleReceived: true, IndicatorUpdated: true, SignalGenerated: true,
	RiskCheckPassed: true, RiskCheckFailed: true, OrderPlaced: true,
	OrderFilled: true, PositionOpened: true, PositionClosed: true,
	ConfigUpdated: true, SubscriptionChanged: true, ServiceStateChanged: true,
	TaskRestarted: true,
}

// IsValidEventType reports whether t belongs to the closed taxonomy.
func IsValidEventType(t EventType) bool { return eventTypes[t] }

// Priority-class boundary: market-data events are priority>=5 and use a
// drop-oldest back-pressure policy; control events are <5 and block with a
// timeout instead of dropping.
const MarketDataPriorityFloor = 5

// Event is the generic envelope carried over the bus: a closed tagged
// variant per event type, so subscribers type-assert Payload against the
// type documented for their Type.
type Event struct {
	Type          EventType
	Priority      int // [0,9]
	Payload       any
	Source        string
	CreatedAt     time.Time
	CorrelationID string // copied from the originating SignalGenerated into every event it derives
}

// IsMarketData reports whether this event uses the market-data back-pressure
// policy (drop_oldest) rather than block_with_timeout.
func (e Event) IsMarketData() bool { return e.Priority >= MarketDataPriorityFloor }
