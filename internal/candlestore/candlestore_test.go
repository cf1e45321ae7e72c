package candlestore

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func mkCandle(openMs int64, closed bool) model.Candle {
	return model.Candle{
		Symbol: "BTCUSDT", Timeframe: model.M5,
		OpenTimeMs: openMs, Open: 1, High: 2, Low: 1, Close: 1, Volume: 1,
		IsClosed: closed,
	}
}

func TestStore_AppendPushesNewer(t *testing.T) {
	s := New(0)
	s.Append(mkCandle(100, true))
	s.Append(mkCandle(200, true))

	got := s.Get("BTCUSDT", model.M5, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].OpenTimeMs != 100 || got[1].OpenTimeMs != 200 {
		t.Fatal("expected chronological order")
	}
}

func TestStore_AppendOverwritesLiveCandle(t *testing.T) {
	s := New(0)
	s.Append(mkCandle(100, false))
	live := mkCandle(100, false)
	live.Close = 999
	s.Append(live)

	got := s.Get("BTCUSDT", model.M5, 0)
	if len(got) != 1 {
		t.Fatalf("expected live candle overwritten in place, got %d entries", len(got))
	}
	if got[0].Close != 999 {
		t.Fatal("expected overwrite to apply")
	}
}

func TestStore_AppendIgnoresOutOfOrder(t *testing.T) {
	s := New(0)
	s.Append(mkCandle(200, true))
	s.Append(mkCandle(100, true))

	got := s.Get("BTCUSDT", model.M5, 0)
	if len(got) != 1 || got[0].OpenTimeMs != 200 {
		t.Fatal("expected out-of-order candle to be ignored")
	}
}

func TestStore_CapacityEvictsOldest(t *testing.T) {
	s := New(3)
	for i := int64(1); i <= 5; i++ {
		s.Append(mkCandle(i*100, true))
	}
	got := s.Get("BTCUSDT", model.M5, 0)
	if len(got) != 3 {
		t.Fatalf("expected capacity-bounded to 3, got %d", len(got))
	}
	if got[0].OpenTimeMs != 300 {
		t.Fatalf("expected oldest evicted, first remaining open_time=300, got %d", got[0].OpenTimeMs)
	}
}

func TestStore_UnknownKeyReturnsEmpty(t *testing.T) {
	s := New(0)
	got := s.Get("ETHUSDT", model.M1, 0)
	if len(got) != 0 {
		t.Fatal("expected empty sequence for unknown key")
	}
}

func TestStore_GetRespectsLimit(t *testing.T) {
	s := New(0)
	for i := int64(1); i <= 10; i++ {
		s.Append(mkCandle(i*100, true))
	}
	got := s.Get("BTCUSDT", model.M5, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got))
	}
	if got[2].OpenTimeMs != 1000 {
		t.Fatal("expected most recent candles with limit")
	}
}

func TestStore_HandleCandleAppends(t *testing.T) {
	s := New(0)
	err := s.HandleCandle(model.Event{Type: model.CandleReceived, Payload: mkCandle(100, true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len("BTCUSDT", model.M5) != 1 {
		t.Fatal("expected candle appended via HandleCandle")
	}
}

func TestStore_RemoveDeletesBuffer(t *testing.T) {
	s := New(0)
	s.Append(mkCandle(100, true))
	s.Remove(model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5})
	if s.Len("BTCUSDT", model.M5) != 0 {
		t.Fatal("expected buffer removed")
	}
}

func TestStore_EvictAfterDelaysRemoval(t *testing.T) {
	s := New(0)
	s.Append(mkCandle(100, true))
	key := model.StreamKey{Symbol: "BTCUSDT", Timeframe: model.M5}
	s.EvictAfter(key, 10*time.Millisecond)

	if s.Len("BTCUSDT", model.M5) != 1 {
		t.Fatal("expected buffer to still be present immediately after scheduling eviction")
	}
	time.Sleep(50 * time.Millisecond)
	if s.Len("BTCUSDT", model.M5) != 0 {
		t.Fatal("expected buffer evicted after the delay")
	}
}
