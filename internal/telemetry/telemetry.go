// Package telemetry provides internal Prometheus instrumentation for the
// pipeline. Nothing in this package starts an HTTP server; callers that
// want to scrape these metrics are expected to do so outside this
// module's scope.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge/histogram the pipeline exposes.
// Only EventsPublished, EventsDropped, SubscriptionDegraded (bus),
// ServiceStateChanges (registry), TaskRestarts and TaskFailures
// (supervisor) are updated inside this module; the others are registered
// but nothing updates them. Each instance owns a private registry instead of prometheus.MustRegister-ing
// into the global DefaultRegisterer, so multiple instances (e.g. one per
// test) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	EventsPublished      *prometheus.CounterVec
	EventsDropped        *prometheus.CounterVec
	HandlerFailures      *prometheus.CounterVec
	HandlerDuration      *prometheus.HistogramVec
	SubscriptionDegraded *prometheus.CounterVec

	ServiceStateChanges *prometheus.CounterVec

	TaskRestarts    *prometheus.CounterVec
	TaskFailures    *prometheus.CounterVec
	TaskHeartbeatAg *prometheus.GaugeVec

	IndicatorComputeDur *prometheus.HistogramVec
	CandleStoreEviction *prometheus.CounterVec

	SignalsGenerated *prometheus.CounterVec
	RiskRejections   *prometheus.CounterVec
	OrdersPlaced     *prometheus.CounterVec
	OrderRetries     *prometheus.CounterVec
}

// NewMetrics builds and registers a fresh Metrics bundle.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_events_published_total",
			Help: "Events published to the bus, by event type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_events_dropped_total",
			Help: "Events dropped due to subscriber back-pressure, by event type.",
		}, []string{"type"}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_handler_failures_total",
			Help: "Subscriber handler invocations that returned an error, by event type.",
		}, []string{"type"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "engine_handler_duration_seconds",
			Help: "Subscriber handler execution time.",
		}, []string{"type"}),
		SubscriptionDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_subscription_degraded_total",
			Help: "Times a subscription entered DEGRADED state.",
		}, []string{"type"}),
		ServiceStateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_service_state_changes_total",
			Help: "ServiceRegistry state transitions, by service and state.",
		}, []string{"service", "state"}),
		TaskRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_task_restarts_total",
			Help: "TaskSupervisor restarts, by task name.",
		}, []string{"task"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_task_failures_total",
			Help: "TaskSupervisor task failures, by task name.",
		}, []string{"task"}),
		TaskHeartbeatAg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_task_heartbeat_age_seconds",
			Help: "Seconds since a task's last heartbeat.",
		}, []string{"task"}),
		IndicatorComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "engine_indicator_compute_duration_seconds",
			Help: "IndicatorEngine per-candle recompute time, by stream key.",
		}, []string{"stream_key"}),
		CandleStoreEviction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_candlestore_evictions_total",
			Help: "Candles evicted from CandleStore ring buffers, by stream key.",
		}, []string{"stream_key"}),
		SignalsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_signals_generated_total",
			Help: "Signals generated, by strategy id.",
		}, []string{"strategy"}),
		RiskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_risk_rejections_total",
			Help: "Signals rejected by RiskValidator, by reason code.",
		}, []string{"reason"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_orders_placed_total",
			Help: "Orders placed, by symbol and status.",
		}, []string{"symbol", "status"}),
		OrderRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_order_retries_total",
			Help: "Order placement retry attempts, by symbol.",
		}, []string{"symbol"}),
	}
	reg.MustRegister(
		m.EventsPublished, m.EventsDropped, m.HandlerFailures, m.HandlerDuration,
		m.SubscriptionDegraded, m.ServiceStateChanges, m.TaskRestarts, m.TaskFailures,
		m.TaskHeartbeatAg, m.IndicatorComputeDur, m.CandleStoreEviction,
		m.SignalsGenerated, m.RiskRejections, m.OrdersPlaced, m.OrderRetries,
	)
	return m
}
