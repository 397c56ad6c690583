package cloudsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/queue"
	"fieldtrack-go/internal/state"
)

// PendingStore is the part of the durable queue a drain needs.
type PendingStore interface {
	ListPending(ctx context.Context) ([]queue.Entry, error)
	Remove(ctx context.Context, localID int64) error
	RecordFailure(ctx context.Context, localID int64) (int, error)
	Quarantine(ctx context.Context, localID int64) error
}

type LocationSaver interface {
	SaveLocation(ctx context.Context, rec models.LocationRecord) (string, error)
}

// SyncedFunc is told about every entry the remote confirmed during a drain.
// rec carries the remote row key and Synced status.
type SyncedFunc func(entry queue.Entry, rec models.LocationRecord)

type Triggers struct {
	Reconnected <-chan struct{}
	Wake        <-chan struct{}
}

type Options struct {
	// MaxAttempts > 0 quarantines an entry after that many rejections.
	// Zero halts every drain at the first failure.
	MaxAttempts int
	Interval    time.Duration
	Logger      *logging.Logger
}

type SyncManager struct {
	drainMu sync.Mutex

	st     *state.AppState
	store  PendingStore
	remote LocationSaver
	log    *logging.Logger

	maxAttempts int
	interval    time.Duration

	mu       sync.Mutex
	onSynced []SyncedFunc
}

func NewSyncManager(st *state.AppState, store PendingStore, remote LocationSaver, opts Options) *SyncManager {
	return &SyncManager{
		st:          st,
		store:       store,
		remote:      remote,
		log:         opts.Logger,
		maxAttempts: opts.MaxAttempts,
		interval:    opts.Interval,
	}
}

func (m *SyncManager) OnSynced(fn SyncedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSynced = append(m.onSynced, fn)
}

// Drain pushes queued entries to the remote in queue order and returns how
// many were confirmed. Drains never overlap; a caller arriving while one runs
// waits and then only sees what is still queued.
func (m *SyncManager) Drain(ctx context.Context) (int, error) {
	m.drainMu.Lock()
	defer m.drainMu.Unlock()

	if m.st != nil {
		m.st.MarkSyncStarted()
	}
	synced, err := m.drain(ctx)
	if m.st != nil {
		if err != nil {
			m.st.MarkSyncError(synced, err.Error())
		} else {
			m.st.MarkSyncSuccess(synced)
		}
	}
	if synced > 0 {
		m.log.Infof("drain synced %d locations", synced)
	}
	return synced, err
}

func (m *SyncManager) drain(ctx context.Context) (int, error) {
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	synced := 0
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		row, err := m.remote.SaveLocation(ctx, entry.Record)
		if err != nil {
			if m.quarantine(ctx, entry, err) {
				continue
			}
			m.log.Warnf("drain halted at location %d: %s", entry.LocalID, statusText(err))
			return synced, err
		}
		if err := m.store.Remove(ctx, entry.LocalID); err != nil {
			// Still queued, so the next drain will resubmit it.
			return synced, err
		}
		synced++

		rec := entry.Record
		rec.RowKey = row
		rec.Status = models.StatusSynced
		m.notify(entry, rec)
	}
	return synced, nil
}

// quarantine reports whether the drain may skip past a failed entry.
func (m *SyncManager) quarantine(ctx context.Context, entry queue.Entry, cause error) bool {
	if m.maxAttempts <= 0 || !errors.Is(cause, ErrRemoteRejected) {
		return false
	}
	attempts, err := m.store.RecordFailure(ctx, entry.LocalID)
	if err != nil {
		m.log.Warnf("record failure for location %d: %v", entry.LocalID, err)
		return false
	}
	if attempts < m.maxAttempts {
		return false
	}
	if err := m.store.Quarantine(ctx, entry.LocalID); err != nil {
		m.log.Warnf("quarantine location %d: %v", entry.LocalID, err)
		return false
	}
	return true
}

func (m *SyncManager) notify(entry queue.Entry, rec models.LocationRecord) {
	m.mu.Lock()
	fns := make([]SyncedFunc, len(m.onSynced))
	copy(fns, m.onSynced)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(entry, rec)
	}
}

// Run drains on every reconnect, every wake signal and, when an interval is
// set, periodically while online.
func (m *SyncManager) Run(ctx context.Context, t Triggers) error {
	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Reconnected:
			m.trigger(ctx, "reconnect")
		case <-t.Wake:
			m.trigger(ctx, "wake")
		case <-tick:
			if m.st != nil && !m.st.Online() {
				continue
			}
			m.trigger(ctx, "interval")
		}
	}
}

func (m *SyncManager) trigger(ctx context.Context, reason string) {
	m.log.Debugf("drain triggered by %s", reason)
	if _, err := m.Drain(ctx); err != nil && ctx.Err() == nil {
		m.log.Warnf("drain (%s): %v", reason, err)
	}
}
