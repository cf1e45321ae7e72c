package bus

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trading-systemv1/internal/model"
)

// SubscriptionState tracks handler health: three consecutive handler
// failures place a subscription in DEGRADED.
type SubscriptionState int32

const (
	SubscriptionOK SubscriptionState = iota
	SubscriptionDegraded
)

// HandlerFunc processes one delivered event. An error return counts as a
// failure for DEGRADED tracking but never propagates to other subscribers
// or crashes the bus.
type HandlerFunc func(ctx context.Context, evt model.Event) error

// DefaultQueueCapacity is the per-subscription buffer depth.
const DefaultQueueCapacity = 1024

// DefaultBlockTimeout is the control-event back-pressure timeout before a drop.
const DefaultBlockTimeout = 200 * time.Millisecond

// HandlerTimeout bounds a single handler invocation: exceeding it cancels
// the handler and counts as a failure toward DEGRADED.
const HandlerTimeout = 30 * time.Second

// DegradeThreshold is the number of consecutive handler failures that move
// a subscription into DEGRADED.
const DegradeThreshold = 3

// pollInterval is how often enqueue re-checks for free capacity while
// waiting out the control-event block_with_timeout window.
const pollInterval = 2 * time.Millisecond

// Token identifies a subscription for unsubscribe.
type Token uint64

type subscription struct {
	token      Token
	eventType  model.EventType
	handler    HandlerFunc
	priority   int // subscribe-time priority; recorded only, not read by delivery or back-pressure
	concurrent bool

	mu       sync.Mutex
	pq       priorityQueue
	capacity int
	seq      uint64
	closed   bool

	notifyCh chan struct{} // non-blocking "queue not empty" signal, len 1

	state          int32  // SubscriptionState, atomic
	consecFailures int32  // atomic
	droppedCount   uint64 // atomic
	deliveredCount uint64 // atomic

	doneCh chan struct{}
}

func newSubscription(token Token, eventType model.EventType, h HandlerFunc, priority int, concurrent bool) *subscription {
	return &subscription{
		token:      token,
		eventType:  eventType,
		handler:    h,
		priority:   priority,
		concurrent: concurrent,
		capacity:   DefaultQueueCapacity,
		notifyCh:   make(chan struct{}, 1),
		doneCh:     make(chan struct{}),
	}
}

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(atomic.LoadInt32(&s.state))
}

func (s *subscription) DroppedCount() uint64 {
	return atomic.LoadUint64(&s.droppedCount)
}

func (s *subscription) DeliveredCount() uint64 {
	return atomic.LoadUint64(&s.deliveredCount)
}

func (s *subscription) notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// enqueue applies the subscription's back-pressure policy and buffers evt
// for delivery. Returns true if evt was accepted, false if it (or, for
// drop_oldest, an earlier buffered event) was dropped.
func (s *subscription) enqueue(evt model.Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	if len(s.pq) < s.capacity {
		s.push(evt)
		s.mu.Unlock()
		s.notify()
		return true
	}

	if evt.IsMarketData() {
		// drop_oldest: evict the oldest buffered item, accept the new one.
		idx := s.pq.oldestIndex()
		heap.Remove(&s.pq, idx)
		atomic.AddUint64(&s.droppedCount, 1)
		s.push(evt)
		s.mu.Unlock()
		s.notify()
		return false
	}
	s.mu.Unlock()

	// block_with_timeout for control events: poll for free capacity.
	deadline := time.Now().Add(DefaultBlockTimeout)
	for {
		time.Sleep(pollInterval)
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false
		}
		if len(s.pq) < s.capacity {
			s.push(evt)
			s.mu.Unlock()
			s.notify()
			return true
		}
		if time.Now().After(deadline) {
			s.mu.Unlock()
			atomic.AddUint64(&s.droppedCount, 1)
			return false
		}
		s.mu.Unlock()
	}
}

// push buffers evt. Caller must hold s.mu.
func (s *subscription) push(evt model.Event) {
	s.seq++
	heap.Push(&s.pq, &item{evt: evt, seq: s.seq})
}

func (s *subscription) pop() (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pq) == 0 {
		return model.Event{}, false
	}
	it := heap.Pop(&s.pq).(*item)
	return it.evt, true
}

// run is the subscription's dedicated goroutine: it drains the priority
// queue and invokes the handler, serializing invocations unless concurrent
// mode was requested.
func (s *subscription) run(onDegraded func(*subscription)) {
	defer close(s.doneCh)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		evt, ok := s.pop()
		if !ok {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.notifyCh
			continue
		}

		deliver := func(evt model.Event) {
			ctx, cancel := context.WithTimeout(context.Background(), HandlerTimeout)
			err := s.handler(ctx, evt)
			cancel()
			atomic.AddUint64(&s.deliveredCount, 1)
			if err != nil {
				n := atomic.AddInt32(&s.consecFailures, 1)
				if n >= DegradeThreshold {
					atomic.StoreInt32(&s.state, int32(SubscriptionDegraded))
					if onDegraded != nil {
						onDegraded(s)
					}
				}
			} else {
				atomic.StoreInt32(&s.consecFailures, 0)
			}
		}

		if s.concurrent {
			wg.Add(1)
			go func(evt model.Event) {
				defer wg.Done()
				deliver(evt)
			}(evt)
		} else {
			deliver(evt)
		}
	}
}

// stop closes the subscription and waits for its goroutine to drain and exit.
func (s *subscription) stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.notify()
	<-s.doneCh
}
