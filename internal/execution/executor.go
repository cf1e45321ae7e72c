// Package execution turns approved signals into gateway order placements
// with a bounded retry policy and idempotent fill handling.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/model"
)

// MaxAttempts is the retry ceiling for a single order placement.
const MaxAttempts = 3

const (
	retryBaseMs = 500
	retryCapMs  = 8_000
)

// Publisher is the subset of bus.Bus the executor needs.
type Publisher interface {
	Publish(evt model.Event)
}

// Executor places orders against a Gateway and tracks them through to fill.
type Executor struct {
	gateway exchange.Gateway
	bus     Publisher

	symbolMu sync.Map // model.SymbolId -> *sync.Mutex, serializes placement per symbol

	mu       sync.Mutex
	orders   map[string]*model.Order // client_order_id -> order
	seenFill map[string]bool         // "client_order_id:fill_id" -> seen, for fill idempotency
}

// New creates an Executor.
func New(gateway exchange.Gateway, bus Publisher) *Executor {
	return &Executor{
		gateway:  gateway,
		bus:      bus,
		orders:   make(map[string]*model.Order),
		seenFill: make(map[string]bool),
	}
}

// HandleRiskCheckPassed is the RiskCheckPassed subscriber entrypoint.
func (e *Executor) HandleRiskCheckPassed(ctx context.Context, evt model.Event) error {
	result, ok := evt.Payload.(model.ValidatedSignal)
	if !ok || !result.Approved {
		return nil
	}
	e.Execute(ctx, result)
	return nil
}

// Execute places an order for an approved signal, retrying on transient
// gateway errors.
func (e *Executor) Execute(ctx context.Context, result model.ValidatedSignal) {
	sig := result.Signal
	spec := e.buildOrderSpec(sig, result.PositionSize)

	lockAny, _ := e.symbolMu.LoadOrStore(sig.Symbol, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	var ack model.OrderAck
	var placeErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		spec.ClientOrderID = clientOrderID(sig.ID, attempt)
		ack, placeErr = e.gateway.PlaceOrder(ctx, spec)
		if placeErr == nil {
			e.recordPlaced(spec, ack, sig.ID)
			return
		}

		gerr, ok := placeErr.(*model.GatewayError)
		if !ok || !gerr.Retryable() || attempt == MaxAttempts {
			log.Printf("[execution] order for signal %s failed permanently: %v", sig.ID, placeErr)
			return
		}
		delay := retryBackoff(attempt)
		log.Printf("[execution] order for signal %s attempt %d failed (%v), retrying in %s", sig.ID, attempt, placeErr, delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (e *Executor) buildOrderSpec(sig model.Signal, size model.Quantity) model.OrderSpec {
	side := model.Buy
	if sig.Direction == model.Short {
		side = model.Sell
	}
	return model.OrderSpec{
		Symbol:   sig.Symbol,
		Side:     side,
		Type:     model.Market,
		Quantity: size,
		Price:    sig.EntryPrice,
	}
}

func (e *Executor) recordPlaced(spec model.OrderSpec, ack model.OrderAck, correlationID string) {
	now := time.Now().UTC()
	order := &model.Order{
		ID: ack.ExchangeOrderID, ClientOrderID: spec.ClientOrderID,
		Symbol: spec.Symbol, Side: spec.Side, Type: spec.Type,
		Quantity: spec.Quantity, Price: spec.Price, Status: ack.Status,
		CreatedAt: now, UpdatedAt: now, CorrelationID: correlationID,
	}
	e.mu.Lock()
	e.orders[spec.ClientOrderID] = order
	e.mu.Unlock()

	e.publish(model.OrderPlaced, *order, correlationID)
}

// HandleOrderFilled applies a fill pushed by the gateway adapter (e.g. from
// a user-data stream, or FillSimulator in paper mode), called directly
// rather than through a bus subscription, and publishes the result as
// OrderFilled. Duplicate (client_order_id, fill_id) pairs are dropped.
func (e *Executor) HandleOrderFilled(fill model.Fill) {
	key := fill.ClientOrderID + ":" + fill.FillID

	e.mu.Lock()
	if e.seenFill[key] {
		e.mu.Unlock()
		return
	}
	e.seenFill[key] = true

	order, ok := e.orders[fill.ClientOrderID]
	if !ok {
		e.mu.Unlock()
		return
	}
	newFilled := order.FilledQty + fill.Quantity
	newStatus := model.OrderPartial
	if newFilled >= order.Quantity {
		newStatus = model.OrderFilledSt
	}
	if model.CanTransition(order.Status, newStatus) {
		order.AvgFillPrice = weightedAvgPrice(order.AvgFillPrice, order.FilledQty, fill.Price, fill.Quantity)
		order.FilledQty = newFilled
		order.Status = newStatus
		order.UpdatedAt = time.Now().UTC()
	}
	snapshot := *order
	e.mu.Unlock()

	e.publishFill(snapshot, fill)
}

// FillEvent is the OrderFilled payload: the updated order snapshot plus the
// fill delta that produced it, so PositionTracker can apply exactly the
// incremental quantity/price rather than re-deriving it from cumulative
// order state.
type FillEvent struct {
	Order model.Order
	Fill  model.Fill
}

func (e *Executor) publishFill(order model.Order, fill model.Fill) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(model.Event{
		Type:          model.OrderFilled,
		Priority:      3,
		Payload:       FillEvent{Order: order, Fill: fill},
		Source:        "execution",
		CreatedAt:     time.Now().UTC(),
		CorrelationID: order.CorrelationID,
	})
}

func weightedAvgPrice(prevAvg model.Price, prevQty model.Quantity, fillPrice model.Price, fillQty model.Quantity) model.Price {
	totalQty := int64(prevQty) + int64(fillQty)
	if totalQty == 0 {
		return fillPrice
	}
	return model.Price((int64(prevAvg)*int64(prevQty) + int64(fillPrice)*int64(fillQty)) / totalQty)
}

func (e *Executor) publish(eventType model.EventType, order model.Order, correlationID string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(model.Event{
		Type:          eventType,
		Priority:      3,
		Payload:       order,
		Source:        "execution",
		CreatedAt:     time.Now().UTC(),
		CorrelationID: correlationID,
	})
}

// clientOrderID deterministically derives client_order_id from the signal
// id and attempt number, so retries of the same signal never collide but
// each attempt is reproducible given (signal.id, attempt).
func clientOrderID(signalID string, attempt int) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s:%d", signalID, attempt)
	return fmt.Sprintf("coid-%016x", h.Sum64())
}

func retryBackoff(attempt int) time.Duration {
	backoff := int64(retryBaseMs) << uint(attempt-1)
	if backoff > retryCapMs {
		backoff = retryCapMs
	}
	return time.Duration(backoff) * time.Millisecond
}
