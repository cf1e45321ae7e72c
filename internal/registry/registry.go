package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/telemetry"
)

// Publisher is the subset of bus.Bus the registry needs, kept narrow to
// avoid an import-cycle risk between registry and bus.
type Publisher interface {
	Publish(evt model.Event)
}

type descriptor struct {
	svc     Service
	deps    []string
	state   State
}

// StateChangedPayload is the ServiceStateChanged event payload.
type StateChangedPayload struct {
	Service string
	From    State
	To      State
}

// Registry dependency-orders the start/stop lifecycle of long-lived services.
type Registry struct {
	mu    sync.Mutex
	descs map[string]*descriptor
	order []string // registration order, for stable iteration

	bus     Publisher
	log     *slog.Logger
	metrics *telemetry.Metrics
}

// New creates an empty Registry. bus, log and metrics may be nil.
func New(bus Publisher, log *slog.Logger, metrics *telemetry.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	return &Registry{
		descs:   make(map[string]*descriptor),
		bus:     bus,
		log:     log,
		metrics: metrics,
	}
}

// Register adds svc with its dependency names. Cycles are detected
// immediately and the registration is rejected.
func (r *Registry) Register(svc Service, dependencies ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := svc.Name()
	if _, exists := r.descs[name]; exists {
		return fmt.Errorf("registry: service %q already registered", name)
	}

	r.descs[name] = &descriptor{svc: svc, deps: dependencies, state: Registered}
	r.order = append(r.order, name)

	if cyclePath, ok := r.findCycle(); ok {
		delete(r.descs, name)
		r.order = r.order[:len(r.order)-1]
		return fmt.Errorf("registry: registering %q would introduce a dependency cycle: %v", name, cyclePath)
	}
	return nil
}

// findCycle runs a DFS cycle check over the full current dependency graph.
func (r *Registry) findCycle() ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.descs))
	var path []string

	var visit func(name string) ([]string, bool)
	visit = func(name string) ([]string, bool) {
		color[name] = gray
		path = append(path, name)
		d, ok := r.descs[name]
		if ok {
			for _, dep := range d.deps {
				switch color[dep] {
				case gray:
					return append(append([]string{}, path...), dep), true
				case white:
					if cyc, found := visit(dep); found {
						return cyc, true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil, false
	}

	for _, name := range r.order {
		if color[name] == white {
			if cyc, found := visit(name); found {
				return cyc, true
			}
		}
	}
	return nil, false
}

// topoOrder returns registered service names in dependency order
// (dependencies before dependents); registration order breaks ties so
// iteration stays deterministic across runs.
func (r *Registry) topoOrder() ([]string, error) {
	visited := make(map[string]int) // 0=unvisited,1=visiting,2=done
	var out []string

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("registry: cycle detected at %q", name)
		}
		visited[name] = 1
		d, ok := r.descs[name]
		if ok {
			for _, dep := range d.deps {
				if _, known := r.descs[dep]; !known {
					return fmt.Errorf("registry: service %q depends on unregistered %q", name, dep)
				}
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		visited[name] = 2
		out = append(out, name)
		return nil
	}

	for _, name := range r.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) transition(name string, to State) {
	r.mu.Lock()
	d := r.descs[name]
	from := d.state
	d.state = to
	r.mu.Unlock()

	r.log.Info("service state changed", "service", name, "from", string(from), "to", string(to))
	r.metrics.ServiceStateChanges.WithLabelValues(name, string(to)).Inc()
	if r.bus != nil {
		r.bus.Publish(model.Event{
			Type:      model.ServiceStateChanged,
			Priority:  2,
			Payload:   StateChangedPayload{Service: name, From: from, To: to},
			Source:    "registry",
			CreatedAt: time.Now().UTC(),
		})
	}
}

// State returns the current state of a registered service.
func (r *Registry) State(name string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descs[name]
	if !ok {
		return "", false
	}
	return d.state, true
}

// InitializeAll calls Initialize on every service in topological order.
// A failure halts further initialization.
func (r *Registry) InitializeAll(ctx context.Context) error {
	order, err := r.topoOrder()
	if err != nil {
		return err
	}
	for _, name := range order {
		d := r.descs[name]
		r.transition(name, Initializing)
		if err := d.svc.Initialize(ctx); err != nil {
			r.transition(name, Failed)
			return fmt.Errorf("registry: initialize %q: %w", name, err)
		}
		r.transition(name, Initialized)
	}
	return nil
}

// StartAll starts every service in topological order. Any failure halts
// further starts and triggers reverse-order teardown of already-started
// services.
func (r *Registry) StartAll(ctx context.Context) error {
	order, err := r.topoOrder()
	if err != nil {
		return err
	}

	var started []string
	for _, name := range order {
		d := r.descs[name]
		r.transition(name, Starting)
		if err := d.svc.Start(ctx); err != nil {
			r.transition(name, Failed)
			r.teardown(ctx, started)
			return fmt.Errorf("registry: start %q: %w", name, err)
		}
		r.transition(name, Running)
		started = append(started, name)
	}
	return nil
}

func (r *Registry) teardown(ctx context.Context, started []string) {
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		d := r.descs[name]
		r.transition(name, Stopping)
		if err := d.svc.Stop(ctx); err != nil {
			r.log.Error("teardown stop failed", "service", name, "error", err)
		}
		r.transition(name, Stopped)
	}
}

// StopAll stops every service in reverse topological order. Idempotent:
// services in STOPPED, REGISTERED or INITIALIZED state are skipped.
func (r *Registry) StopAll(ctx context.Context) error {
	order, err := r.topoOrder()
	if err != nil {
		return err
	}

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		r.mu.Lock()
		d := r.descs[name]
		cur := d.state
		r.mu.Unlock()
		if cur == Stopped || cur == Registered || cur == Initialized {
			continue
		}
		r.transition(name, Stopping)
		if err := d.svc.Stop(ctx); err != nil {
			r.log.Error("stop failed", "service", name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("registry: stop %q: %w", name, err)
			}
		}
		r.transition(name, Stopped)
	}
	return firstErr
}
