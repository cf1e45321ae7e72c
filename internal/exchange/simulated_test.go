package exchange

import (
	"context"
	"testing"

	"trading-systemv1/internal/model"
)

func TestSimulated_RejectsUnparseableURL(t *testing.T) {
	_, err := NewSimulated(SimulatedConfig{URL: "://bad"})
	if err == nil {
		t.Fatal("expected error for unparseable URL")
	}
}

func TestSimulated_PlaceOrderReturnsAck(t *testing.T) {
	sim, err := NewSimulated(SimulatedConfig{URL: "ws://localhost:1/ws"})
	if err != nil {
		t.Fatal(err)
	}
	ack, err := sim.PlaceOrder(context.Background(), model.OrderSpec{
		Symbol: "BTCUSDT", Side: model.Buy, Type: model.Market, Quantity: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != model.OrderPlacedSt {
		t.Fatalf("expected PLACED, got %v", ack.Status)
	}
}

func TestSimulated_GetBalancesReturnsCopy(t *testing.T) {
	sim, err := NewSimulated(SimulatedConfig{URL: "ws://localhost:1/ws"})
	if err != nil {
		t.Fatal(err)
	}
	bal, err := sim.GetBalances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	bal["USDT"] = 0
	bal2, _ := sim.GetBalances(context.Background())
	if bal2["USDT"] != 10_000 {
		t.Fatal("GetBalances must return an independent copy")
	}
}

func TestSimulated_FetchOHLCVIsNoopWarmup(t *testing.T) {
	sim, err := NewSimulated(SimulatedConfig{URL: "ws://localhost:1/ws"})
	if err != nil {
		t.Fatal(err)
	}
	candles, err := sim.FetchOHLCV(context.Background(), "BTCUSDT", model.M5, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 0 {
		t.Fatal("expected empty warm-up history from simulated gateway")
	}
}
