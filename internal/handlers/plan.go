package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/paulmach/orb"

	"fieldtrack-go/internal/directions"
	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/planner"
)

type Geocoder interface {
	Geocode(ctx context.Context, query string) (directions.Place, error)
}

type RouteFinder interface {
	Drive(ctx context.Context, from, to geo.Point) (orb.LineString, error)
}

func Plan(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req planner.Request
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		destination := strings.TrimSpace(req.Destination)
		if !req.HasLine() && destination == "" {
			badRequest(w, "route, geometry or destination required")
			return
		}
		var (
			line orb.LineString
			err  error
		)
		if req.HasLine() {
			if line, err = req.Line(); err != nil {
				badRequest(w, err.Error())
				return
			}
		}

		here, ok := d.Positions.Current()
		if !ok {
			cfg := d.State.GetConfig()
			here, err = d.Positions.RequestFresh(r.Context(), cfg.PositionTimeout())
			if err != nil {
				WriteError(w, err)
				return
			}
		}

		var place *directions.Place
		if line == nil {
			p, l, err := d.routeTo(r.Context(), here.Point(), destination)
			if err != nil {
				writeDirectionsError(w, err)
				return
			}
			place, line = &p, l
		}

		locations, err := d.Remote.ListLocations(r.Context())
		if err != nil {
			d.Logger.Warnf("planner falling back to session view: %v", err)
			locations = d.Capture.Session().Records()
		}

		results, err := planner.Filter(line, here.Point(), locations, req.MaxKm)
		if errors.Is(err, planner.ErrEmptyRoute) {
			badRequest(w, err.Error())
			return
		}
		body := map[string]any{
			"from":         here.Point(),
			"results":      results,
			"count":        len(results),
			"max_km":       maxKm(req.MaxKm),
			"route_points": len(line),
		}
		if place != nil {
			body["destination"] = place
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

var errDirectionsUnavailable = errors.New("destination lookup not configured")

func (d *Deps) routeTo(ctx context.Context, from geo.Point, destination string) (directions.Place, orb.LineString, error) {
	if d.Geocoder == nil || d.Router == nil {
		return directions.Place{}, nil, errDirectionsUnavailable
	}
	place, err := d.Geocoder.Geocode(ctx, destination)
	if err != nil {
		return directions.Place{}, nil, err
	}
	line, err := d.Router.Drive(ctx, from, place.At)
	if err != nil {
		return place, nil, err
	}
	return place, line, nil
}

func writeDirectionsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errDirectionsUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: "directions_unavailable"})
	case errors.Is(err, directions.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "destination_not_found"})
	case errors.Is(err, directions.ErrNoRoute):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "no_route"})
	default:
		WriteJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), Code: "directions_unreachable"})
	}
}

func maxKm(v float64) float64 {
	if v <= 0 {
		return planner.DefaultMaxKm
	}
	return v
}
