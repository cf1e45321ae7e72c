package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func TestBus_FIFOPerSubscription(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	var mu sync.Mutex
	var seen []int

	done := make(chan struct{})
	count := 0
	b.Subscribe(model.CandleReceived, func(ctx context.Context, evt model.Event) error {
		mu.Lock()
		seen = append(seen, evt.Payload.(int))
		count++
		if count == 5 {
			close(done)
		}
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		b.Publish(model.Event{Type: model.CandleReceived, Priority: 3, Payload: i})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != i {
			t.Fatalf("expected FIFO order, got %v at position %d (full: %v)", v, i, seen)
		}
	}
}

func TestBus_HandlerFailureIsolation(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	var okCount atomic.Int32
	b.Subscribe(model.SignalGenerated, func(ctx context.Context, evt model.Event) error {
		return errors.New("boom")
	})
	b.Subscribe(model.SignalGenerated, func(ctx context.Context, evt model.Event) error {
		okCount.Add(1)
		return nil
	})

	b.Publish(model.Event{Type: model.SignalGenerated, Priority: 2})

	deadline := time.Now().Add(time.Second)
	for okCount.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if okCount.Load() == 0 {
		t.Fatal("second subscriber never ran despite first subscriber's handler failing")
	}
}

func TestBus_DegradedAfterThreeFailures(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	var tok Token
	tok = b.Subscribe(model.OrderPlaced, func(ctx context.Context, evt model.Event) error {
		return errors.New("always fails")
	})

	for i := 0; i < DegradeThreshold; i++ {
		b.Publish(model.Event{Type: model.OrderPlaced, Priority: 2})
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		stats := b.StatsFor(model.OrderPlaced)
		for _, s := range stats {
			if s.Token == tok && s.State == SubscriptionDegraded {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("subscription never reached DEGRADED after 3 consecutive failures")
}

func TestBus_DropOldestForMarketData(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	b.Subscribe(model.CandleReceived, func(ctx context.Context, evt model.Event) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	<-startAfterFirstPublish(b, release, started)

	for i := 0; i < DefaultQueueCapacity+1; i++ {
		b.Publish(model.Event{Type: model.CandleReceived, Priority: model.MarketDataPriorityFloor, Payload: i})
	}

	deadline := time.Now().Add(time.Second)
	var dropped uint64
	for time.Now().Before(deadline) {
		for _, s := range b.StatsFor(model.CandleReceived) {
			dropped = s.Dropped
		}
		if dropped > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	if dropped == 0 {
		t.Fatal("expected at least one drop_oldest eviction under overload")
	}
}

// startAfterFirstPublish publishes one warm-up event to occupy the handler
// goroutine so subsequent events buffer instead of draining immediately,
// then returns once the handler has started blocking on release.
func startAfterFirstPublish(b *Bus, release, started chan struct{}) <-chan struct{} {
	b.Publish(model.Event{Type: model.CandleReceived, Priority: model.MarketDataPriorityFloor, Payload: -1})
	ch := make(chan struct{})
	go func() {
		<-started
		close(ch)
	}()
	return ch
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	var calls atomic.Int32
	tok := b.Subscribe(model.ConfigUpdated, func(ctx context.Context, evt model.Event) error {
		calls.Add(1)
		return nil
	})
	b.Unsubscribe(tok)
	b.Publish(model.Event{Type: model.ConfigUpdated, Priority: 1})

	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", calls.Load())
	}
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	b := New(nil, nil)
	defer b.Close()

	var total atomic.Int64
	b.Subscribe(model.IndicatorUpdated, func(ctx context.Context, evt model.Event) error {
		total.Add(1)
		return nil
	})

	const publishers = 8
	const perPublisher = 200
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				b.Publish(model.Event{Type: model.IndicatorUpdated, Priority: 3})
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for total.Load() < int64(publishers*perPublisher) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	got := total.Load()
	dropped := uint64(0)
	for _, s := range b.StatsFor(model.IndicatorUpdated) {
		dropped = s.Dropped
	}
	if got+int64(dropped) != int64(publishers*perPublisher) {
		t.Fatalf("delivered(%d)+dropped(%d) != published(%d)", got, dropped, publishers*perPublisher)
	}
}
