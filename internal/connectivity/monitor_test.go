package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func received(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestReconnectSignalsOnlyOnTransition(t *testing.T) {
	m := NewMonitor(Options{})
	var changes int32
	m.OnChange(func(bool) { atomic.AddInt32(&changes, 1) })

	m.Set(false)
	if received(m.Reconnected()) {
		t.Fatalf("expected no signal while staying offline")
	}
	m.Set(true)
	if !received(m.Reconnected()) {
		t.Fatalf("expected reconnect signal")
	}
	m.Set(true)
	if received(m.Reconnected()) {
		t.Fatalf("expected no signal while staying online")
	}
	if got := atomic.LoadInt32(&changes); got != 1 {
		t.Fatalf("expected 1 change notification, got %d", got)
	}
}

func TestRequestWakeFiresWhenOnline(t *testing.T) {
	m := NewMonitor(Options{})
	if err := m.RequestWake(context.Background()); err != nil {
		t.Fatalf("request wake: %v", err)
	}
	if received(m.WakeSignals()) {
		t.Fatalf("expected wake to wait for connectivity")
	}
	if !m.WakeArmed() {
		t.Fatalf("expected wake to be armed")
	}
	m.Set(true)
	if !received(m.WakeSignals()) {
		t.Fatalf("expected wake once online")
	}
	if m.WakeArmed() {
		t.Fatalf("expected wake to be consumed")
	}

	_ = m.RequestWake(context.Background())
	if !received(m.WakeSignals()) {
		t.Fatalf("expected immediate wake while online")
	}
}

type flakyProber struct{ fail atomic.Bool }

func (p *flakyProber) Healthy(ctx context.Context) error {
	if p.fail.Load() {
		return errors.New("down")
	}
	return nil
}

func TestRunProbesConnectivity(t *testing.T) {
	p := &flakyProber{}
	p.fail.Store(true)
	m := NewMonitor(Options{Prober: p, Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	if m.Online() {
		t.Fatalf("expected offline while the health check fails")
	}
	p.fail.Store(false)
	select {
	case <-m.Reconnected():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reconnect after the health check recovers")
	}
	if !m.Online() {
		t.Fatalf("expected online")
	}
}
