// Command engine is the process entrypoint wiring every component of
// trading-systemv1's event-driven orchestration pipeline: EventBus,
// ServiceRegistry, TaskSupervisor, ConfigStore, ExchangeGateway,
// IngressManager, CandleStore, IndicatorEngine, StrategyLayer,
// RiskValidator, OrderExecutor, PositionTracker and SubscriptionController.
// Startup/shutdown sequencing is driven by the registry's dependency-ordered
// InitializeAll/StartAll/StopAll rather than a hand-written sequence of
// calls, and termination follows the usual signal.Notify(SIGINT, SIGTERM)
// plus shutdown-timeout-context shape.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/candlestore"
	"trading-systemv1/internal/configstore"
	"trading-systemv1/internal/exchange"
	"trading-systemv1/internal/execution"
	"trading-systemv1/internal/indicator"
	"trading-systemv1/internal/ingress"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/notify"
	"trading-systemv1/internal/position"
	"trading-systemv1/internal/registry"
	"trading-systemv1/internal/risk"
	"trading-systemv1/internal/strategy"
	"trading-systemv1/internal/subscription"
	"trading-systemv1/internal/supervisor"
	"trading-systemv1/internal/telemetry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[engine] starting trading-systemv1...")

	slogLogger := logger.Init("engine", slog.LevelInfo)
	metrics := telemetry.NewMetrics()

	settings := configstore.LoadFromEnv()

	eventBus := bus.New(metrics, nil)
	defer eventBus.Close()

	reg := registry.New(eventBus, slogLogger, metrics)
	sup := supervisor.New(eventBus, metrics, slogLogger)
	defer sup.Close()

	// ---- PositionTracker (constructed early: ConfigStore needs it as a
	// PositionChecker, wired this way rather than importing internal/position
	// from internal/configstore to avoid an import cycle) ----
	positionTracker := position.New(eventBus)
	eventBus.Subscribe(model.CandleReceived, func(_ context.Context, evt model.Event) error {
		return positionTracker.HandleCandle(evt)
	})
	eventBus.Subscribe(model.OrderFilled, func(_ context.Context, evt model.Event) error {
		return positionTracker.HandleOrderFilled(evt)
	})

	// ---- ConfigStore ----
	store := configstore.New(eventBus, settings,
		configstore.WithHistoryCap(configstore.DefaultHistoryCap),
		configstore.WithPositionChecker(positionTracker),
	)

	// ---- ExchangeGateway (simulated) ----
	gateway, err := exchange.NewSimulated(exchange.SimulatedConfig{
		URL: getEnv("SIM_WS_URL", "ws://localhost:9001/ws"),
	})
	if err != nil {
		log.Fatalf("[engine] simulated gateway init failed: %v", err)
	}

	// ---- CandleStore ----
	candles := candlestore.New(0)
	eventBus.Subscribe(model.CandleReceived, func(_ context.Context, evt model.Event) error {
		return candles.HandleCandle(evt)
	})

	// ---- IngressManager ----
	ingressMgr := ingress.New(gateway, candles, eventBus, sup, ingress.Config{})

	// ---- IndicatorEngine ----
	indicatorEngine := indicator.New(eventBus, indicator.Config{
		Timeframes: []model.Timeframe{
			settings.Market.PrimaryTimeframe,
			settings.Market.HigherTimeframe,
			settings.Market.LowerTimeframe,
		},
	})
	eventBus.Subscribe(model.CandleReceived, func(_ context.Context, evt model.Event) error {
		return indicatorEngine.HandleCandle(evt)
	})

	// ---- StrategyLayer ----
	strategyLayer := strategy.New(eventBus, candles, func(strategyID string) bool {
		snap, _ := store.Snapshot()
		switch strategyID {
		case "strategy_1":
			return snap.Strategy.Enable1
		case "strategy_2":
			return snap.Strategy.Enable2
		case "strategy_3":
			return snap.Strategy.Enable3
		default:
			return true
		}
	})
	strategyLayer.Register(strategy.NewOrderBlockStrategy(
		"strategy_1",
		[]model.Timeframe{settings.Market.PrimaryTimeframe},
		0.005, 2,
	))
	eventBus.Subscribe(model.IndicatorUpdated, func(_ context.Context, evt model.Event) error {
		return strategyLayer.HandleIndicatorUpdated(evt)
	})

	// ---- RiskValidator ----
	riskValidator := risk.New(store, positionTracker, eventBus, risk.Config{})
	eventBus.Subscribe(model.SignalGenerated, func(_ context.Context, evt model.Event) error {
		return riskValidator.HandleSignalGenerated(evt)
	})

	// ---- OrderExecutor ----
	executor := execution.New(gateway, eventBus)
	eventBus.Subscribe(model.RiskCheckPassed, executor.HandleRiskCheckPassed)

	// ---- Order/fill audit journal (non-fatal if unavailable) ----
	journal, err := execution.NewJournal(getEnv("JOURNAL_DB_PATH", "data/journal.db"))
	if err != nil {
		log.Printf("[engine] WARNING: journal init failed: %v (continuing without audit trail)", err)
		journal = nil
	} else {
		defer journal.Close()
	}
	eventBus.Subscribe(model.OrderPlaced, func(_ context.Context, evt model.Event) error {
		order, ok := evt.Payload.(model.Order)
		if !ok {
			return nil
		}
		if journal != nil {
			if err := journal.RecordOrder(order); err != nil {
				log.Printf("[engine] journal.RecordOrder: %v", err)
			}
		}
		return nil
	})
	eventBus.Subscribe(model.OrderFilled, func(_ context.Context, evt model.Event) error {
		fe, ok := evt.Payload.(execution.FillEvent)
		if !ok || journal == nil {
			return nil
		}
		if err := journal.RecordFill(fe.Fill); err != nil {
			log.Printf("[engine] journal.RecordFill: %v", err)
		}
		return nil
	})

	// ---- Paper-mode fill simulator ----
	if settings.Trading.Mode == configstore.Paper {
		fillSim := execution.NewFillSimulator(executor, 5)
		eventBus.Subscribe(model.OrderPlaced, func(_ context.Context, evt model.Event) error {
			order, ok := evt.Payload.(model.Order)
			if !ok {
				return nil
			}
			fillSim.HandleOrderPlaced(order)
			return nil
		})
	}

	// ---- SubscriptionController ----
	subCtrl := subscription.New(gateway, ingressMgr, candles, store, eventBus, subscription.Config{
		WarmupTimeout: subscription.DefaultWarmupTimeout,
	})

	// ---- Alert sink ----
	notifier := buildNotifier()
	alertSink := notify.New(notifier)
	eventBus.Subscribe(model.ServiceStateChanged, alertSink.HandleServiceStateChanged)
	eventBus.Subscribe(model.TaskRestarted, alertSink.HandleTaskRestarted)

	// ---- ServiceRegistry registration (dependency-ordered) ----
	mustRegister(reg, &lifecycleAdapter{name: "configstore", initialize: noop, start: noop, stop: noop})
	mustRegister(reg, &lifecycleAdapter{
		name:       "exchange",
		initialize: noop,
		start:      noop,
		stop:       func(ctx context.Context) error { return nil },
	}, "configstore")
	mustRegister(reg, &lifecycleAdapter{name: "candlestore", initialize: noop, start: noop, stop: noop})
	mustRegister(reg, &lifecycleAdapter{name: "ingress", initialize: noop, start: noop, stop: noop}, "candlestore", "exchange")
	mustRegister(reg, &lifecycleAdapter{name: "indicator", initialize: noop, start: noop, stop: noop}, "candlestore")
	mustRegister(reg, &lifecycleAdapter{name: "strategy", initialize: noop, start: noop, stop: noop}, "indicator")
	mustRegister(reg, &lifecycleAdapter{name: "position", initialize: noop, start: noop, stop: noop})
	mustRegister(reg, &lifecycleAdapter{name: "risk", initialize: noop, start: noop, stop: noop}, "configstore", "position")
	mustRegister(reg, &lifecycleAdapter{name: "execution", initialize: noop, start: noop, stop: noop}, "risk", "exchange")
	mustRegister(reg, &lifecycleAdapter{
		name:       "subscription",
		initialize: noop,
		start: func(ctx context.Context) error {
			for _, sym := range settings.Market.ActiveSymbols {
				if err := subCtrl.AddSymbol(ctx, sym, nil); err != nil {
					log.Printf("[engine] AddSymbol(%s): %v", sym, err)
				}
			}
			return nil
		},
		stop: noop,
	}, "ingress", "configstore")
	mustRegister(reg, &lifecycleAdapter{name: "notify", initialize: noop, start: noop, stop: noop})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reg.InitializeAll(ctx); err != nil {
		log.Fatalf("[engine] initialize_all failed: %v", err)
	}
	if err := reg.StartAll(ctx); err != nil {
		log.Fatalf("[engine] start_all failed: %v", err)
	}
	log.Println("[engine] pipeline running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[engine] shutdown signal received, tearing down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := reg.StopAll(shutdownCtx); err != nil {
		log.Printf("[engine] stop_all error: %v", err)
	}
	log.Println("[engine] shutdown complete.")
}

func mustRegister(reg *registry.Registry, svc registry.Service, deps ...string) {
	if err := reg.Register(svc, deps...); err != nil {
		log.Fatalf("[engine] registry.Register(%s): %v", svc.Name(), err)
	}
}

func buildNotifier() notify.Notifier {
	if url := os.Getenv("NOTIFY_WEBHOOK_URL"); url != "" {
		return notify.NewWebhookNotifier(url)
	}
	if token := os.Getenv("NOTIFY_TELEGRAM_BOT_TOKEN"); token != "" {
		return notify.NewTelegramNotifier(token, os.Getenv("NOTIFY_TELEGRAM_CHAT_ID"))
	}
	return notify.NewLogNotifier()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
