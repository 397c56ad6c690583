package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/store/photos"
	"fieldtrack-go/internal/store/repos"
)

var ErrInvalid = errors.New("invalid input")

const maxPhotoBytes = 10 << 20

type StoreService struct {
	repo   *repos.LocationRepo
	photos photos.Store
	now    func() time.Time
}

func NewStoreService(repo *repos.LocationRepo, ps photos.Store) *StoreService {
	return &StoreService{repo: repo, photos: ps, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// SaveLocation stores rec and returns its row number.
func (s *StoreService) SaveLocation(ctx context.Context, deviceID string, rec models.LocationRecord) (int64, error) {
	if rec.Lat < -90 || rec.Lat > 90 || rec.Lng < -180 || rec.Lng > 180 {
		return 0, invalid("coordinates out of range")
	}
	if !rec.HasCoordinates() {
		return 0, invalid("coordinates required")
	}
	rec.Tag = strings.TrimSpace(rec.Tag)
	if rec.Tag == "" {
		rec.Tag = models.TagUnknown
	}
	if strings.TrimSpace(rec.ExternalLink) == "" {
		rec.ExternalLink = rec.Point().MapsLink()
	}
	now := s.now()
	if rec.CreatedDate == "" {
		rec.CreatedDate = now.Format(models.DateLayout)
	}
	if rec.CreatedTime == "" {
		rec.CreatedTime = now.Format(models.TimeLayout)
	}
	return s.repo.InsertLocation(ctx, deviceID, rec, now)
}

func (s *StoreService) ListLocations(ctx context.Context) ([]models.LocationRecord, error) {
	return s.repo.ListLocations(ctx)
}

// UpdateLocation applies patch to the stored row.
func (s *StoreService) UpdateLocation(ctx context.Context, row string, patch models.RecordPatch) (*models.LocationRecord, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(row), 10, 64)
	if err != nil || id <= 0 {
		return nil, invalid("row must be a positive number")
	}
	if patch.Empty() {
		return nil, invalid("nothing to update")
	}
	rec, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(rec)
	if err := s.repo.UpdateLocation(ctx, id, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveRoute stores a LineString feature of at least two points.
func (s *StoreService) SaveRoute(ctx context.Context, deviceID string, f *geojson.Feature) (int64, error) {
	if f == nil || f.Geometry == nil {
		return 0, invalid("geometry required")
	}
	line, ok := f.Geometry.(orb.LineString)
	if !ok {
		return 0, invalid("geometry must be a LineString, got %s", f.Geometry.GeoJSONType())
	}
	if len(line) < 2 {
		return 0, invalid("route needs at least 2 points")
	}
	raw, err := geojson.NewGeometry(line).MarshalJSON()
	if err != nil {
		return 0, err
	}
	return s.repo.InsertRoute(ctx, repos.StoredRoute{
		DeviceID:  deviceID,
		StartTime: f.Properties.MustString("start_time", ""),
		Duration:  f.Properties.MustString("duration", ""),
		Points:    len(line),
		Geometry:  string(raw),
		StoredAt:  s.now(),
	})
}

// SavePhoto decodes a base64 image and hands it to the photo store.
func (s *StoreService) SavePhoto(ctx context.Context, imageBase64, filename string) (string, error) {
	if s.photos == nil {
		return "", errors.New("photo storage not configured")
	}
	b64 := strings.TrimSpace(imageBase64)
	if i := strings.Index(b64, ","); strings.HasPrefix(b64, "data:") && i > 0 {
		b64 = b64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", invalid("image_base64 is not valid base64")
	}
	if len(data) == 0 {
		return "", invalid("empty image")
	}
	if len(data) > maxPhotoBytes {
		return "", invalid("image exceeds %d bytes", maxPhotoBytes)
	}
	return s.photos.Put(ctx, photos.NewKey(filename), data)
}
