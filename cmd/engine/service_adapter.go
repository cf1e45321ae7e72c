package main

import "context"

// lifecycleAdapter wraps a component's ad-hoc start/stop closures so it can
// be registered with registry.Registry, which only accepts its Service
// contract (Name/Initialize/Start/Stop). This lets each subsystem's startup
// live as a dependency-ordered registry entry instead of one long hand-
// sequenced main function.
type lifecycleAdapter struct {
	name       string
	initialize func(ctx context.Context) error
	start      func(ctx context.Context) error
	stop       func(ctx context.Context) error
}

func (a *lifecycleAdapter) Name() string { return a.name }

func (a *lifecycleAdapter) Initialize(ctx context.Context) error {
	if a.initialize == nil {
		return nil
	}
	return a.initialize(ctx)
}

func (a *lifecycleAdapter) Start(ctx context.Context) error {
	if a.start == nil {
		return nil
	}
	return a.start(ctx)
}

func (a *lifecycleAdapter) Stop(ctx context.Context) error {
	if a.stop == nil {
		return nil
	}
	return a.stop(ctx)
}

func noop(context.Context) error { return nil }
