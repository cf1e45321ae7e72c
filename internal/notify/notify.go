// Package notify is the alert sink for fatal transitions: it
// subscribes to ServiceStateChanged{to: FAILED} and
// TaskRestarted{final: true} events and forwards them to an outbound
// notification backend (log, webhook, or chat), with no inbound admin
// surface of its own.
package notify

import (
	"context"
	"fmt"
	"log"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/registry"
	"trading-systemv1/internal/supervisor"
)

// Level is the closed severity taxonomy an Alert carries.
type Level string

const (
	Info     Level = "INFO"
	Warning  Level = "WARNING"
	Critical Level = "CRITICAL"
)

// Alert is one notification to deliver.
type Alert struct {
	Level   Level
	Title   string
	Message string
}

// Notifier is the alert delivery backend contract.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// Sink dispatches Alerts to a Notifier. It does not retry: a failed
// delivery is logged, not requeued, since each Send is already
// network-timeout-bounded.
type Sink struct {
	notifier Notifier
}

// New creates a Sink.
func New(notifier Notifier) *Sink {
	return &Sink{notifier: notifier}
}

// HandleServiceStateChanged subscribes to ServiceStateChanged and alerts
// when a service transitions to FAILED.
func (s *Sink) HandleServiceStateChanged(ctx context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(registry.StateChangedPayload)
	if !ok || payload.To != registry.Failed {
		return nil
	}
	s.send(ctx, Alert{
		Level:   Critical,
		Title:   fmt.Sprintf("service %s failed", payload.Service),
		Message: fmt.Sprintf("%s transitioned %s -> %s", payload.Service, payload.From, payload.To),
	})
	return nil
}

// HandleTaskRestarted subscribes to TaskRestarted and alerts when a
// supervised task exhausts its restart budget (Final: true).
func (s *Sink) HandleTaskRestarted(ctx context.Context, evt model.Event) error {
	payload, ok := evt.Payload.(supervisor.RestartedPayload)
	if !ok || !payload.Final {
		return nil
	}
	s.send(ctx, Alert{
		Level:   Critical,
		Title:   fmt.Sprintf("task %s exhausted restarts", payload.Task),
		Message: fmt.Sprintf("%s failed permanently after %d attempts", payload.Task, payload.Attempt),
	})
	return nil
}

func (s *Sink) send(ctx context.Context, alert Alert) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, alert); err != nil {
		log.Printf("[notify] failed to deliver alert %q: %v", alert.Title, err)
	}
}
