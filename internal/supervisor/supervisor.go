package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/telemetry"
)

// Publisher is the subset of bus.Bus the supervisor needs.
type Publisher interface {
	Publish(evt model.Event)
}

// DefaultHealthCheckPeriod is the health monitor's polling cadence.
const DefaultHealthCheckPeriod = 10 * time.Second

// RestartedPayload is the TaskRestarted event payload.
type RestartedPayload struct {
	Task    string
	Attempt int
	Backoff time.Duration
	Final   bool
}

type taskRuntime struct {
	cfg TaskConfig

	mu       sync.Mutex
	state    TaskState
	restarts int
	cancel   context.CancelFunc

	lastHeartbeat atomic.Int64 // unix nano
	stopRequested atomic.Bool
	doneCh        chan struct{}
}

func (rt *taskRuntime) setState(s TaskState) {
	rt.mu.Lock()
	rt.state = s
	rt.mu.Unlock()
}

func (rt *taskRuntime) State() TaskState {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.state
}

// Supervisor runs and restarts a set of named background tasks.
type Supervisor struct {
	mu    sync.Mutex
	tasks map[string]*taskRuntime

	bus     Publisher
	metrics *telemetry.Metrics
	log     *slog.Logger

	healthPeriod time.Duration
	stopHealth   chan struct{}
}

// New creates a Supervisor and starts its health monitor goroutine. log
// may be nil, in which case slog.Default() is used.
func New(bus Publisher, metrics *telemetry.Metrics, log *slog.Logger) *Supervisor {
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Supervisor{
		tasks:        make(map[string]*taskRuntime),
		bus:          bus,
		metrics:      metrics,
		log:          log,
		healthPeriod: DefaultHealthCheckPeriod,
		stopHealth:   make(chan struct{}),
	}
	go s.healthMonitor()
	return s
}

// Submit registers and starts cfg. Returns an error if a task with the same
// name is already running.
func (s *Supervisor) Submit(cfg TaskConfig) error {
	cfg.defaults()
	s.mu.Lock()
	if _, exists := s.tasks[cfg.Name]; exists {
		s.mu.Unlock()
		return errAlreadyRunning(cfg.Name)
	}
	rt := &taskRuntime{cfg: cfg, state: TaskPending, doneCh: make(chan struct{})}
	s.tasks[cfg.Name] = rt
	s.mu.Unlock()

	go s.runTask(rt)
	return nil
}

// State reports the current state of a named task.
func (s *Supervisor) State(name string) (TaskState, bool) {
	s.mu.Lock()
	rt, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return rt.State(), true
}

// Cancel requests cancellation of a named task; no restart follows.
func (s *Supervisor) Cancel(name string) {
	s.mu.Lock()
	rt, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	rt.stopRequested.Store(true)
	rt.mu.Lock()
	cancel := rt.cancel
	rt.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-rt.doneCh
}

// StopGroup cancels every task in the named group, e.g. a "trading" group
// stopped for maintenance.
func (s *Supervisor) StopGroup(group string) {
	s.mu.Lock()
	var names []string
	for name, rt := range s.tasks {
		if rt.cfg.Group == group {
			names = append(names, name)
		}
	}
	s.mu.Unlock()
	for _, name := range names {
		s.Cancel(name)
	}
}

// Close cancels every task and stops the health monitor.
func (s *Supervisor) Close() {
	close(s.stopHealth)
	s.mu.Lock()
	var names []string
	for name := range s.tasks {
		names = append(names, name)
	}
	s.mu.Unlock()
	for _, name := range names {
		s.Cancel(name)
	}
}

func (s *Supervisor) runTask(rt *taskRuntime) {
	defer close(rt.doneCh)
	for {
		if rt.stopRequested.Load() {
			rt.setState(TaskCanceled)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Timeout)
		rt.mu.Lock()
		rt.cancel = cancel
		rt.mu.Unlock()
		rt.setState(TaskRunning)
		rt.lastHeartbeat.Store(time.Now().UnixNano())

		tickStart := time.Now()
		err := rt.cfg.Func(ctx)
		cancel()
		rt.lastHeartbeat.Store(time.Now().UnixNano())

		if rt.stopRequested.Load() {
			rt.setState(TaskCanceled)
			return
		}

		if err == nil {
			if rt.cfg.Interval <= 0 {
				rt.setState(TaskSucceeded)
				return
			}
			rt.mu.Lock()
			rt.restarts = 0
			rt.mu.Unlock()
			s.sleepInterval(rt, tickStart)
			continue
		}

		rt.setState(TaskFailed)
		s.metrics.TaskFailures.WithLabelValues(rt.cfg.Name).Inc()
		s.log.Error("task failed", "task", rt.cfg.Name, "error", err)

		rt.mu.Lock()
		restarts := rt.restarts
		rt.mu.Unlock()

		if rt.cfg.RestartOnFailure && restarts < rt.cfg.MaxRestarts {
			backoff := computeBackoff(rt.cfg.BackoffBaseMs, rt.cfg.BackoffCapMs, restarts)
			s.log.Info("restarting task", "task", rt.cfg.Name, "attempt", restarts+1, "backoff", backoff)
			s.publishRestarted(rt.cfg.Name, restarts+1, backoff, false)
			s.metrics.TaskRestarts.WithLabelValues(rt.cfg.Name).Inc()
			if !s.sleepOrCancel(rt, backoff) {
				rt.setState(TaskCanceled)
				return
			}
			rt.mu.Lock()
			rt.restarts++
			rt.mu.Unlock()
			continue
		}

		s.log.Error("task exhausted restart budget, giving up", "task", rt.cfg.Name, "restarts", restarts)
		s.publishRestarted(rt.cfg.Name, restarts+1, 0, true)
		return
	}
}

// sleepInterval waits out the remainder of the fixed cadence since
// tickStart, or returns early if the task is cancelled. Overlapping runs
// are disallowed: the next tick always waits for the previous to finish.
func (s *Supervisor) sleepInterval(rt *taskRuntime, tickStart time.Time) {
	remaining := rt.cfg.Interval - time.Since(tickStart)
	if remaining <= 0 {
		return
	}
	s.sleepOrCancel(rt, remaining)
}

// sleepOrCancel sleeps for d or returns early (false) if cancellation was
// requested mid-sleep.
func (s *Supervisor) sleepOrCancel(rt *taskRuntime, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	poll := time.NewTicker(5 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-t.C:
			return true
		case <-poll.C:
			if rt.stopRequested.Load() {
				return false
			}
		}
	}
}

func (s *Supervisor) publishRestarted(name string, attempt int, backoff time.Duration, final bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(model.Event{
		Type:      model.TaskRestarted,
		Priority:  3,
		Payload:   RestartedPayload{Task: name, Attempt: attempt, Backoff: backoff, Final: final},
		Source:    "supervisor",
		CreatedAt: time.Now().UTC(),
	})
}

// healthMonitor force-restarts interval tasks whose heartbeat is stale by
// more than 3·interval.
func (s *Supervisor) healthMonitor() {
	ticker := time.NewTicker(s.healthPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopHealth:
			return
		case <-ticker.C:
			s.checkStaleness()
		}
	}
}

func (s *Supervisor) checkStaleness() {
	s.mu.Lock()
	var stale []*taskRuntime
	for _, rt := range s.tasks {
		if rt.cfg.Interval <= 0 {
			continue
		}
		if rt.State() != TaskRunning {
			continue
		}
		age := time.Since(time.Unix(0, rt.lastHeartbeat.Load()))
		if age > 3*rt.cfg.Interval {
			stale = append(stale, rt)
		}
	}
	s.mu.Unlock()

	for _, rt := range stale {
		rt.mu.Lock()
		cancel := rt.cancel
		rt.mu.Unlock()
		if cancel != nil {
			s.log.Warn("task heartbeat stale, force-restarting", "task", rt.cfg.Name)
			cancel()
		}
	}
}

type taskAlreadyRunningError string

func (e taskAlreadyRunningError) Error() string {
	return "supervisor: task already running: " + string(e)
}

func errAlreadyRunning(name string) error { return taskAlreadyRunningError(name) }
