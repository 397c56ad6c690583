package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fieldtrack-go/internal/capture"
	"fieldtrack-go/internal/cloudsync"
	"fieldtrack-go/internal/connectivity"
	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/geofence"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/queue"
	"fieldtrack-go/internal/route"
	"fieldtrack-go/internal/state"
)

type PendingCounter interface {
	Count(ctx context.Context) (int, error)
	QuarantinedCount(ctx context.Context) (int, error)
}

type Drainer interface {
	Drain(ctx context.Context) (int, error)
}

type LocationLister interface {
	ListLocations(ctx context.Context) ([]models.LocationRecord, error)
}

// Deps is everything the presentation API reads from or drives.
type Deps struct {
	State        *state.AppState
	Positions    *geo.Source
	Capture      *capture.Controller
	Queue        PendingCounter
	Geofence     *geofence.Engine
	Route        *route.Sampler
	Sync         Drainer
	Connectivity *connectivity.Monitor
	Remote       LocationLister
	Geocoder     Geocoder
	Router       RouteFinder
	Logger       *logging.Logger
}

func Root(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"service": "fieldtrack", "ok": true})
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError maps the error taxonomy onto HTTP statuses.
func WriteError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, geo.ErrPositionUnavailable):
		status, code = http.StatusServiceUnavailable, "position_unavailable"
	case errors.Is(err, queue.ErrStorageUnavailable):
		status, code = http.StatusInternalServerError, "storage_unavailable"
	case errors.Is(err, cloudsync.ErrNotConfigured):
		status, code = http.StatusServiceUnavailable, "remote_not_configured"
	case errors.Is(err, cloudsync.ErrRemoteUnreachable):
		status, code = http.StatusBadGateway, "remote_unreachable"
	case errors.Is(err, cloudsync.ErrRemoteRejected):
		status, code = http.StatusBadGateway, "remote_rejected"
	case errors.Is(err, capture.ErrNothingToUpdate):
		status, code = http.StatusBadRequest, "nothing_to_update"
	}
	WriteJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
