package registry

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name        string
	onInit      func() error
	onStart     func() error
	onStop      func() error
	initialized bool
	started     bool
	stopped     bool
}

func (s *fakeService) Name() string { return s.name }
func (s *fakeService) Initialize(ctx context.Context) error {
	s.initialized = true
	if s.onInit != nil {
		return s.onInit()
	}
	return nil
}
func (s *fakeService) Start(ctx context.Context) error {
	s.started = true
	if s.onStart != nil {
		return s.onStart()
	}
	return nil
}
func (s *fakeService) Stop(ctx context.Context) error {
	s.stopped = true
	if s.onStop != nil {
		return s.onStop()
	}
	return nil
}

func TestRegistry_TopologicalStartStop(t *testing.T) {
	r := New(nil, nil, nil)
	var order []string

	a := &fakeService{name: "a", onStart: func() error { order = append(order, "a"); return nil }}
	b := &fakeService{name: "b", onStart: func() error { order = append(order, "b"); return nil }}
	c := &fakeService{name: "c", onStart: func() error { order = append(order, "c"); return nil }}

	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b, "a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(c, "b"); err != nil {
		t.Fatal(err)
	}

	if err := r.InitializeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected start order a,b,c got %v", order)
	}

	var stopOrder []string
	a.onStop = func() error { stopOrder = append(stopOrder, "a"); return nil }
	b.onStop = func() error { stopOrder = append(stopOrder, "b"); return nil }
	c.onStop = func() error { stopOrder = append(stopOrder, "c"); return nil }

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(stopOrder) != 3 || stopOrder[0] != "c" || stopOrder[1] != "b" || stopOrder[2] != "a" {
		t.Fatalf("expected reverse stop order c,b,a got %v", stopOrder)
	}
}

func TestRegistry_CycleRejectedAtRegistration(t *testing.T) {
	r := New(nil, nil, nil)
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b"}

	if err := r.Register(a, "b"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b, "a"); err == nil {
		t.Fatal("expected cycle rejection, got nil error")
	}
}

func TestRegistry_StartFailureTriggersReverseTeardown(t *testing.T) {
	r := New(nil, nil, nil)
	var stopped []string

	a := &fakeService{name: "a", onStop: func() error { stopped = append(stopped, "a"); return nil }}
	b := &fakeService{name: "b", onStop: func() error { stopped = append(stopped, "b"); return nil }}
	failing := &fakeService{name: "c", onStart: func() error { return errors.New("boom") }}

	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(b, "a"); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(failing, "b"); err != nil {
		t.Fatal(err)
	}

	if err := r.InitializeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected StartAll to fail")
	}

	if len(stopped) != 2 || stopped[0] != "b" || stopped[1] != "a" {
		t.Fatalf("expected reverse teardown of b,a got %v", stopped)
	}

	st, _ := r.State("c")
	if st != Failed {
		t.Fatalf("expected failing service state Failed, got %v", st)
	}
}

func TestRegistry_StopAllIdempotent(t *testing.T) {
	r := New(nil, nil, nil)
	calls := 0
	a := &fakeService{name: "a", onStop: func() error { calls++; return nil }}
	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}
	_ = r.InitializeAll(context.Background())
	_ = r.StartAll(context.Background())
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected Stop called exactly once, got %d", calls)
	}
}
