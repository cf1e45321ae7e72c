package model

import "time"

// OrderSide is BUY/SELL.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType is the closed set of order types the gateway accepts.
type OrderType string

const (
	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	StopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus only ever transitions forward through the lifecycle below;
// CanTransition enforces that.
type OrderStatus string

const (
	OrderPending  OrderStatus = "PENDING"
	OrderPlacedSt OrderStatus = "PLACED"
	OrderPartial  OrderStatus = "PARTIAL"
	OrderFilledSt OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderRejected OrderStatus = "REJECTED"
)

// orderStatusRank gives each status a position in the monotonic lifecycle so
// callers can reject out-of-order transitions.
var orderStatusRank = map[OrderStatus]int{
	OrderPending:  0,
	OrderPlacedSt: 1,
	OrderPartial:  2,
	OrderFilledSt: 3,
	OrderCanceled: 3,
	OrderRejected: 3,
}

// CanTransition reports whether moving from `from` to `to` is monotonic.
func CanTransition(from, to OrderStatus) bool {
	return orderStatusRank[to] >= orderStatusRank[from]
}

// OrderSpec is the outbound order placement request.
type OrderSpec struct {
	Symbol        SymbolId
	Side          OrderSide
	Type          OrderType
	Quantity      Quantity
	Price         Price // optional, zero for MARKET
	StopPrice     Price // optional
	ReduceOnly    bool
	ClientOrderID string
}

// Order is the core's record of a placed order.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        SymbolId
	Side          OrderSide
	Type          OrderType
	Quantity      Quantity
	Price         Price
	Status        OrderStatus
	FilledQty     Quantity
	AvgFillPrice  Price
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CorrelationID string
}

// OrderAck is the gateway's synchronous response to place_order.
type OrderAck struct {
	ExchangeOrderID string
	Status          OrderStatus
}

// Fill represents one execution report for an order. The pair
// (ClientOrderID, FillID) is the idempotency key: the same fill replayed
// from the gateway must not be applied twice.
type Fill struct {
	ClientOrderID string
	FillID        string
	Symbol        SymbolId
	Side          OrderSide
	Price         Price
	Quantity      Quantity
	FilledAt      time.Time
}
