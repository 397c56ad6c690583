// Package geo holds the position model, great-circle distance and the
// Position Source that fans device fixes out to its subscribers.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// EarthRadiusMeters is the mean radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Key is the "(lat,lng)" identity used for deduplication and cooldown bookkeeping.
func (p Point) Key() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func (p Point) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }

// MapsLink is the external link stored with captured records.
func (p Point) MapsLink() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
		strconv.FormatFloat(p.Lat, 'f', -1, 64), strconv.FormatFloat(p.Lng, 'f', -1, 64))
}

// Position is an immutable device fix.
type Position struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy"`
	CapturedAt time.Time `json:"captured_at"`
}

func (p Position) Point() Point { return Point{Lat: p.Lat, Lng: p.Lng} }

// FreshAt reports whether the fix is younger than window at instant now.
func (p Position) FreshAt(now time.Time, window time.Duration) bool {
	return now.Sub(p.CapturedAt) < window
}

// DistanceMeters is the haversine distance between a and b.
func DistanceMeters(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	sLat := math.Sin(dLat / 2)
	sLng := math.Sin(dLng / 2)
	h := sLat*sLat + math.Cos(lat1)*math.Cos(lat2)*sLng*sLng
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceKm is DistanceMeters scaled to kilometres.
func DistanceKm(a, b Point) float64 { return DistanceMeters(a, b) / 1000 }

func radians(deg float64) float64 { return deg * math.Pi / 180 }
