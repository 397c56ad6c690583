// Package planner picks saved locations that lie along a planned route.
package planner

import (
	"errors"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/models"
)

const DefaultMaxKm = 30.0

var ErrEmptyRoute = errors.New("route has no points")

type Result struct {
	Location            models.LocationRecord `json:"location"`
	DistanceFromRouteKm float64               `json:"distance_from_route_km"`
	DistanceFromHereKm  float64               `json:"distance_from_here_km"`
}

// Request is the planning input: a bare [[lng,lat],...] route, a GeoJSON
// LineString geometry, or a destination name to route to from the current fix.
type Request struct {
	Route       orb.LineString    `json:"route"`
	Geometry    *geojson.Geometry `json:"geometry,omitempty"`
	Destination string            `json:"destination,omitempty"`
	MaxKm       float64           `json:"max_km,omitempty"`
}

// HasLine reports whether the request carries its own polyline.
func (r Request) HasLine() bool {
	return len(r.Route) > 0 || r.Geometry != nil
}

// Line resolves the route polyline of the request.
func (r Request) Line() (orb.LineString, error) {
	if len(r.Route) > 0 {
		return r.Route, nil
	}
	if r.Geometry != nil {
		if ls, ok := r.Geometry.Geometry().(orb.LineString); ok && len(ls) > 0 {
			return ls, nil
		}
	}
	return nil, ErrEmptyRoute
}

// Filter keeps the locations within maxKm of any route vertex, sorted by
// distance from here. Locations without coordinates are skipped.
func Filter(route orb.LineString, here geo.Point, locations []models.LocationRecord, maxKm float64) ([]Result, error) {
	if len(route) == 0 {
		return nil, ErrEmptyRoute
	}
	if maxKm <= 0 {
		maxKm = DefaultMaxKm
	}
	out := make([]Result, 0)
	for _, loc := range locations {
		if loc.Lat == 0 || loc.Lng == 0 {
			continue
		}
		p := loc.Point()
		minKm := math.Inf(1)
		for _, v := range route {
			if d := geo.DistanceKm(p, geo.Point{Lat: v.Lat(), Lng: v.Lon()}); d < minKm {
				minKm = d
			}
		}
		if minKm > maxKm {
			continue
		}
		out = append(out, Result{
			Location:            loc,
			DistanceFromRouteKm: minKm,
			DistanceFromHereKm:  geo.DistanceKm(here, p),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceFromHereKm < out[j].DistanceFromHereKm
	})
	return out, nil
}
