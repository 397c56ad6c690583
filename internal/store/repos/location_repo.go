package repos

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"fieldtrack-go/internal/models"
)

var ErrNotFound = errors.New("not found")

type StoredRoute struct {
	ID        int64
	DeviceID  string
	StartTime string
	Duration  string
	Points    int
	Geometry  string
	StoredAt  time.Time
}

type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) DB() *sql.DB {
	return r.db
}

func (r *LocationRepo) InsertLocation(ctx context.Context, deviceID string, rec models.LocationRecord, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (device_id, lat, lng, tag, note, contact, photo_link, created_date, created_time, maps_link, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deviceID, rec.Lat, rec.Lng, rec.Tag, rec.Note, rec.Contact, rec.PhotoLink, rec.CreatedDate, rec.CreatedTime, rec.ExternalLink, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *LocationRepo) ListLocations(ctx context.Context) ([]models.LocationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT row_id, lat, lng, tag, note, contact, photo_link, created_date, created_time, maps_link
		FROM locations ORDER BY row_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.LocationRecord, 0)
	for rows.Next() {
		rec, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *LocationRepo) GetLocation(ctx context.Context, row int64) (*models.LocationRecord, error) {
	return scanLocation(r.db.QueryRowContext(ctx, `
		SELECT row_id, lat, lng, tag, note, contact, photo_link, created_date, created_time, maps_link
		FROM locations WHERE row_id = ?
	`, row))
}

func (r *LocationRepo) UpdateLocation(ctx context.Context, row int64, rec models.LocationRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE locations SET note = ?, contact = ?, photo_link = ? WHERE row_id = ?
	`, rec.Note, rec.Contact, rec.PhotoLink, row)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *LocationRepo) InsertRoute(ctx context.Context, rt StoredRoute) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO routes (device_id, start_time, duration, points, geometry, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rt.DeviceID, rt.StartTime, rt.Duration, rt.Points, rt.Geometry, rt.StoredAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *LocationRepo) CountRoutes(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM routes`).Scan(&n)
	return n, err
}

func scanLocation(row interface{ Scan(dest ...any) error }) (*models.LocationRecord, error) {
	var (
		rec models.LocationRecord
		id  int64
	)
	if err := row.Scan(&id, &rec.Lat, &rec.Lng, &rec.Tag, &rec.Note, &rec.Contact, &rec.PhotoLink, &rec.CreatedDate, &rec.CreatedTime, &rec.ExternalLink); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.RowKey = strconv.FormatInt(id, 10)
	rec.Status = models.StatusSynced
	return &rec, nil
}
