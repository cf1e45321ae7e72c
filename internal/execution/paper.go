package execution

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"trading-systemv1/internal/model"
)

// FillSimulator synthesizes Fill events for orders placed against
// exchange.Simulated, which never reports fills on its own. It feeds
// Executor.HandleOrderFilled directly so paper trading exercises the same
// fill idempotency path a real gateway's user-data stream would.
type FillSimulator struct {
	executor    *Executor
	slippageBps int64
	fillSeq     int64
}

// NewFillSimulator creates a FillSimulator. slippageBps controls simulated
// slippage in basis points (e.g. 5 = 0.05%).
func NewFillSimulator(executor *Executor, slippageBps int64) *FillSimulator {
	return &FillSimulator{executor: executor, slippageBps: slippageBps}
}

// HandleOrderPlaced immediately fills a placed order at its requested
// price plus simulated slippage.
func (f *FillSimulator) HandleOrderPlaced(order model.Order) {
	fillPrice := order.Price
	if fillPrice > 0 && f.slippageBps > 0 {
		slip := model.Price(int64(fillPrice) * f.slippageBps / 10_000)
		if order.Side == model.Buy {
			fillPrice += slip
		} else {
			fillPrice -= slip
		}
	}

	seq := atomic.AddInt64(&f.fillSeq, 1)
	fill := model.Fill{
		ClientOrderID: order.ClientOrderID,
		FillID:        fmt.Sprintf("sim-fill-%d", seq),
		Symbol:        order.Symbol,
		Side:          order.Side,
		Price:         fillPrice,
		Quantity:      order.Quantity,
		FilledAt:      time.Now().UTC(),
	}
	log.Printf("[execution] simulated fill: %s %s qty=%d price=%d", order.ClientOrderID, order.Side, fill.Quantity, fill.Price)
	f.executor.HandleOrderFilled(fill)
}
