// Package connectivity tracks online/offline transitions and the deferred
// background-wake signal used to trigger drains.
package connectivity

import (
	"context"
	"sync"
	"time"

	"fieldtrack-go/internal/logging"
)

// Prober checks whether the remote can be reached.
type Prober interface {
	Healthy(ctx context.Context) error
}

type Options struct {
	Prober   Prober
	Interval time.Duration
	Logger   *logging.Logger
	Initial  bool
}

type Monitor struct {
	mu        sync.Mutex
	online    bool
	wakeArmed bool
	changed   []func(online bool)

	reconnected chan struct{}
	wake        chan struct{}

	prober   Prober
	interval time.Duration
	log      *logging.Logger
}

func NewMonitor(opts Options) *Monitor {
	return &Monitor{
		online:      opts.Initial,
		reconnected: make(chan struct{}, 1),
		wake:        make(chan struct{}, 1),
		prober:      opts.Prober,
		interval:    opts.Interval,
		log:         opts.Logger,
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn for every online/offline transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, fn)
}

// Set records the platform's connectivity. Going from offline to online
// signals Reconnected and fires an armed wake.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fireWake := online && m.wakeArmed
	if fireWake {
		m.wakeArmed = false
	}
	fns := make([]func(bool), len(m.changed))
	copy(fns, m.changed)
	m.mu.Unlock()

	if online {
		m.log.Infof("connectivity restored")
		signal(m.reconnected)
	} else {
		m.log.Infof("connectivity lost")
	}
	if fireWake {
		signal(m.wake)
	}
	for _, fn := range fns {
		fn(online)
	}
}

// RequestWake arms a background wake that fires once the device is online,
// immediately if it already is.
func (m *Monitor) RequestWake(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	online := m.online
	if !online {
		m.wakeArmed = true
	}
	m.mu.Unlock()
	if online {
		signal(m.wake)
	}
	return nil
}

// Wake delivers an out-of-band wake signal from the platform.
func (m *Monitor) Wake() { signal(m.wake) }

func (m *Monitor) Reconnected() <-chan struct{} { return m.reconnected }

func (m *Monitor) WakeSignals() <-chan struct{} { return m.wake }

func (m *Monitor) WakeArmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wakeArmed
}

// Run polls the prober until ctx ends. Without a prober it only waits, and
// connectivity comes from Set alone.
func (m *Monitor) Run(ctx context.Context) error {
	if m.prober == nil || m.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	m.probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := m.prober.Healthy(ctx)
	if err != nil {
		m.log.Debugf("probe failed: %v", err)
	}
	m.Set(err == nil)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
