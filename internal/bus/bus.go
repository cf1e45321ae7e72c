// Package bus implements a typed, in-process event bus: publishers fan events
// out to per-subscription queues without blocking, each subscription runs its
// own delivery goroutine, and back-pressure is handled per the event's
// priority class rather than by blocking the publisher.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/telemetry"
)

// SubscribeOption configures a subscription beyond its base
// (event type, handler, priority) triple.
type SubscribeOption func(*subscribeOpts)

type subscribeOpts struct {
	priority   int
	concurrent bool
}

// WithPriority records a subscribe-time priority on the subscription. It
// does not change queue capacity (always DefaultQueueCapacity) or the
// back-pressure policy, which follows each event's own priority.
func WithPriority(p int) SubscribeOption {
	return func(o *subscribeOpts) { o.priority = p }
}

// WithConcurrentHandler opts this subscription into concurrent handler
// invocation instead of the default per-subscription serialization.
func WithConcurrentHandler() SubscribeOption {
	return func(o *subscribeOpts) { o.concurrent = true }
}

// DegradedNotifier receives ServiceStateChanged-style notifications when a
// subscription degrades, so the registry can surface it.
type DegradedNotifier interface {
	NotifySubscriptionDegraded(eventType model.EventType, token Token)
}

// Bus is the typed publisher/subscriber at the center of the pipeline.
type Bus struct {
	mu   sync.RWMutex
	subs map[model.EventType]map[Token]*subscription

	nextToken atomic.Uint64

	metrics  *telemetry.Metrics
	notifier DegradedNotifier

	closed atomic.Bool
}

// New creates an empty Bus. metrics and notifier may be nil.
func New(metrics *telemetry.Metrics, notifier DegradedNotifier) *Bus {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &Bus{
		subs:     make(map[model.EventType]map[Token]*subscription),
		metrics:  metrics,
		notifier: notifier,
	}
}

// Subscribe registers handler for eventType and starts its delivery
// goroutine. Returns a Token usable with Unsubscribe.
func (b *Bus) Subscribe(eventType model.EventType, handler HandlerFunc, opts ...SubscribeOption) Token {
	o := subscribeOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	token := Token(b.nextToken.Add(1))
	sub := newSubscription(token, eventType, handler, o.priority, o.concurrent)

	b.mu.Lock()
	m, ok := b.subs[eventType]
	if !ok {
		m = make(map[Token]*subscription)
		b.subs[eventType] = m
	}
	m[token] = sub
	b.mu.Unlock()

	go sub.run(b.handleDegraded)
	return token
}

// Unsubscribe stops and removes the subscription identified by token.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	var target *subscription
	for _, m := range b.subs {
		if s, ok := m[token]; ok {
			target = s
			delete(m, token)
			break
		}
	}
	b.mu.Unlock()
	if target != nil {
		target.stop()
	}
}

func (b *Bus) handleDegraded(s *subscription) {
	b.metrics.SubscriptionDegraded.WithLabelValues(string(s.eventType)).Inc()
	if b.notifier != nil {
		b.notifier.NotifySubscriptionDegraded(s.eventType, s.token)
	}
}

// Publish is non-blocking: it enqueues evt on every current subscriber of
// evt.Type and returns immediately.
func (b *Bus) Publish(evt model.Event) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	b.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[evt.Type]))
	for _, s := range b.subs[evt.Type] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if accepted := s.enqueue(evt); !accepted {
			b.metrics.EventsDropped.WithLabelValues(string(evt.Type)).Inc()
		}
	}
}

// PublishSync publishes evt and blocks until every current subscriber of
// evt.Type has finished processing it. Used for shutdown only.
func (b *Bus) PublishSync(evt model.Event) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	b.metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[evt.Type]))
	for _, s := range b.subs[evt.Type] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range targets {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), HandlerTimeout)
			defer cancel()
			_ = s.handler(ctx, evt)
		}(s)
	}
	wg.Wait()
}

// Stats reports introspection data for one subscription, used by tests and
// the health monitor.
type Stats struct {
	EventType model.EventType
	Token     Token
	State     SubscriptionState
	Dropped   uint64
	Delivered uint64
}

// StatsFor returns Stats for every current subscriber of eventType.
func (b *Bus) StatsFor(eventType model.EventType) []Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Stats, 0, len(b.subs[eventType]))
	for tok, s := range b.subs[eventType] {
		out = append(out, Stats{
			EventType: eventType,
			Token:     tok,
			State:     s.State(),
			Dropped:   s.DroppedCount(),
			Delivered: s.DeliveredCount(),
		})
	}
	return out
}

// Close stops every subscription goroutine. Idempotent.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	var all []*subscription
	for _, m := range b.subs {
		for _, s := range m {
			all = append(all, s)
		}
	}
	b.mu.Unlock()
	for _, s := range all {
		s.stop()
	}
}
