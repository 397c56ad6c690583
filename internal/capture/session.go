package capture

import (
	"strconv"
	"sync"

	"fieldtrack-go/internal/models"
)

// Entry is one row of the session view.
type Entry struct {
	Record  models.LocationRecord `json:"record"`
	Pending bool                  `json:"pending"`
	LocalID int64                 `json:"local_id,omitempty"`
	Remote  bool                  `json:"remote,omitempty"`
}

// Session is the in-memory list of locations saved or fetched during this
// run. Entries are never removed.
type Session struct {
	mu      sync.RWMutex
	entries []Entry
	byKey   map[string]int
}

func NewSession() *Session {
	return &Session{byKey: make(map[string]int)}
}

// entryKey is local:<id> while an entry waits in the queue, so captures at the
// same spot in the same minute stay distinct until the remote assigns a row.
func entryKey(e Entry) string {
	if e.Pending && e.LocalID > 0 {
		return "local:" + strconv.FormatInt(e.LocalID, 10)
	}
	return e.Record.IdentityKey()
}

// Add appends e unless an entry with the same key is already listed.
func (s *Session) Add(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey(e)
	if _, ok := s.byKey[key]; ok {
		return false
	}
	s.byKey[key] = len(s.entries)
	s.entries = append(s.entries, e)
	return true
}

// MarkSynced clears the pending flag of the entry queued under localID and
// takes over rec, which now carries the remote row key.
func (s *Session) MarkSynced(localID int64, rec models.LocationRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		e := &s.entries[i]
		if !e.Pending || e.LocalID != localID {
			continue
		}
		delete(s.byKey, entryKey(*e))
		e.Record = rec
		e.Pending = false
		s.byKey[entryKey(*e)] = i
		return true
	}
	return false
}

// Merge adds remote records that the session does not know yet and returns
// how many were added.
func (s *Session) Merge(records []models.LocationRecord) int {
	added := 0
	for _, r := range records {
		if s.Add(Entry{Record: r, Remote: true}) {
			added++
		}
	}
	return added
}

// Update applies patch to the record with the given remote row key.
func (s *Session) Update(rowKey string, patch models.RecordPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byKey["row:"+rowKey]
	if !ok {
		return false
	}
	patch.Apply(&s.entries[i].Record)
	return true
}

func (s *Session) Find(rowKey string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byKey["row:"+rowKey]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

func (s *Session) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Session) Records() []models.LocationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.LocationRecord, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Record)
	}
	return out
}

func (s *Session) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Pending {
			n++
		}
	}
	return n
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
