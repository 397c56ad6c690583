package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

var errUndecodable = errors.New("undecodable payload")

const schema = `
CREATE TABLE IF NOT EXISTS pending_locations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	payload TEXT NOT NULL,
	queued_at INTEGER NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	quarantined INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pending_locations_quarantined ON pending_locations (quarantined, id);
`

type Entry struct {
	LocalID  int64                 `json:"local_id"`
	Record   models.LocationRecord `json:"record"`
	QueuedAt time.Time             `json:"queued_at"`
	Attempts int                   `json:"attempts"`
}

// Queue is the durable store of capture records the remote has not confirmed.
// It opens lazily; Init may be called any number of times from any goroutine.
type Queue struct {
	dsn  string
	log  *logging.Logger
	now  func() time.Time
	init singleflight.Group

	mu sync.RWMutex
	db *sql.DB
}

func New(dsn string, logger *logging.Logger) *Queue {
	return &Queue{dsn: dsn, log: logger, now: time.Now}
}

func (q *Queue) Init(ctx context.Context) error {
	_, err := q.handle(ctx)
	return err
}

func (q *Queue) handle(ctx context.Context) (*sql.DB, error) {
	q.mu.RLock()
	db := q.db
	q.mu.RUnlock()
	if db != nil {
		return db, nil
	}
	v, err, _ := q.init.Do("init", func() (any, error) {
		q.mu.RLock()
		existing := q.db
		q.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		opened, err := sql.Open("sqlite", q.dsn)
		if err != nil {
			return nil, err
		}
		// One connection keeps in-memory databases alive and serialises writers.
		opened.SetMaxOpenConns(1)
		if _, err := opened.ExecContext(ctx, schema); err != nil {
			_ = opened.Close()
			return nil, err
		}
		q.mu.Lock()
		q.db = opened
		q.mu.Unlock()
		q.log.Infof("pending queue ready at %s", q.dsn)
		return opened, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return v.(*sql.DB), nil
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.db == nil {
		return nil
	}
	err := q.db.Close()
	q.db = nil
	return err
}

// Enqueue stores rec and returns its store-assigned local id.
func (q *Queue) Enqueue(ctx context.Context, rec models.LocationRecord) (int64, error) {
	db, err := q.handle(ctx)
	if err != nil {
		return 0, err
	}
	rec.Status = models.StatusPendingSync
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	res, err := db.ExecContext(ctx, `INSERT INTO pending_locations (payload, queued_at) VALUES (?, ?)`,
		string(payload), q.now().UnixMilli())
	if err != nil {
		return 0, unavailable(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable(err)
	}
	q.log.Debugf("queued location %d", id)
	return id, nil
}

// ListPending returns unconfirmed, non-quarantined entries in insertion order.
func (q *Queue) ListPending(ctx context.Context) ([]Entry, error) {
	return q.list(ctx, false)
}

func (q *Queue) Quarantined(ctx context.Context) ([]Entry, error) {
	return q.list(ctx, true)
}

func (q *Queue) list(ctx context.Context, quarantined bool) ([]Entry, error) {
	db, err := q.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, payload, queued_at, attempts
		FROM pending_locations
		WHERE quarantined = ?
		ORDER BY id ASC
	`, boolInt(quarantined))
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	var broken []int64
	for rows.Next() {
		e, err := scanEntry(rows)
		if errors.Is(err, errUndecodable) {
			q.log.Warnf("skipping location %d: %v", e.LocalID, err)
			broken = append(broken, e.LocalID)
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	// The single connection is held by rows until closed.
	_ = rows.Close()
	if !quarantined {
		for _, id := range broken {
			if err := q.Quarantine(ctx, id); err != nil {
				q.log.Warnf("quarantine location %d: %v", id, err)
			}
		}
	}
	return entries, nil
}

// Remove deletes the entry; a missing id is not an error.
func (q *Queue) Remove(ctx context.Context, localID int64) error {
	db, err := q.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_locations WHERE id = ?`, localID); err != nil {
		return unavailable(err)
	}
	return nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.count(ctx, false)
}

func (q *Queue) QuarantinedCount(ctx context.Context) (int, error) {
	return q.count(ctx, true)
}

func (q *Queue) count(ctx context.Context, quarantined bool) (int, error) {
	db, err := q.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_locations WHERE quarantined = ?`, boolInt(quarantined)).Scan(&n)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// RecordFailure bumps the attempt counter of an entry and returns the new value.
func (q *Queue) RecordFailure(ctx context.Context, localID int64) (int, error) {
	db, err := q.handle(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := db.ExecContext(ctx, `UPDATE pending_locations SET attempts = attempts + 1 WHERE id = ?`, localID); err != nil {
		return 0, unavailable(err)
	}
	var attempts int
	err = db.QueryRowContext(ctx, `SELECT attempts FROM pending_locations WHERE id = ?`, localID).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return attempts, nil
}

// Quarantine parks an entry so drains skip it; it stays in storage.
func (q *Queue) Quarantine(ctx context.Context, localID int64) error {
	db, err := q.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE pending_locations SET quarantined = 1 WHERE id = ?`, localID); err != nil {
		return unavailable(err)
	}
	q.log.Warnf("location %d quarantined", localID)
	return nil
}

// Requeue returns a quarantined entry to the pending set with a fresh attempt count.
func (q *Queue) Requeue(ctx context.Context, localID int64) error {
	db, err := q.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE pending_locations SET quarantined = 0, attempts = 0 WHERE id = ?`, localID); err != nil {
		return unavailable(err)
	}
	return nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var (
		e        Entry
		payload  string
		queuedAt int64
	)
	if err := rows.Scan(&e.LocalID, &payload, &queuedAt, &e.Attempts); err != nil {
		return nil, unavailable(err)
	}
	if err := json.Unmarshal([]byte(payload), &e.Record); err != nil {
		return &e, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	e.QueuedAt = time.UnixMilli(queuedAt).UTC()
	return &e, nil
}

func unavailable(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
