package state

import (
	"sync"
	"time"

	"fieldtrack-go/internal/config"
	"fieldtrack-go/internal/logging"
)

type SyncStatus struct {
	Enabled         bool   `json:"enabled"`
	Online          bool   `json:"online"`
	Running         bool   `json:"running"`
	LastSuccessUnix int64  `json:"last_success_unix"`
	LastAttemptUnix int64  `json:"last_attempt_unix"`
	LastSynced      int    `json:"last_synced"`
	TotalSynced     int    `json:"total_synced"`
	LastError       string `json:"last_error"`
}

// AppState is the runtime status shared between the background loops and the
// presentation API.
type AppState struct {
	mu sync.RWMutex

	cfg config.Config
	now func() time.Time

	Logger *logging.Logger

	syncStatus SyncStatus
}

func NewAppState(cfg config.Config, logger *logging.Logger) *AppState {
	return &AppState{
		cfg:    cfg,
		now:    time.Now,
		Logger: logger,
		syncStatus: SyncStatus{
			Enabled: cfg.RemoteConfigured(),
		},
	}
}

func (s *AppState) GetConfig() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *AppState) MarkSyncStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus.Running = true
	s.syncStatus.LastAttemptUnix = s.now().Unix()
}

func (s *AppState) MarkSyncSuccess(synced int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus.Running = false
	s.syncStatus.LastError = ""
	s.syncStatus.LastSynced = synced
	s.syncStatus.TotalSynced += synced
	s.syncStatus.LastSuccessUnix = s.now().Unix()
}

// MarkSyncError records a halted drain; synced is what it managed before halting.
func (s *AppState) MarkSyncError(synced int, err string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus.Running = false
	s.syncStatus.LastError = err
	s.syncStatus.LastSynced = synced
	s.syncStatus.TotalSynced += synced
}

func (s *AppState) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus.Online = online
}

func (s *AppState) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStatus.Online
}

func (s *AppState) SyncStatusSnapshot() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStatus
}

func (s *AppState) SetSyncEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncStatus.Enabled = enabled
}
