package handlers

import (
	"net/http"
	"strings"
	"time"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/route"
	"fieldtrack-go/internal/state"
)

type positionRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
}

type positionErrorRequest struct {
	Code string `json:"code"`
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

type statusResponse struct {
	Pending     int              `json:"pending"`
	Quarantined int              `json:"quarantined"`
	Online      bool             `json:"online"`
	Sync        state.SyncStatus `json:"sync"`
	Route       route.Status     `json:"route"`
	Position    *geo.Position    `json:"position,omitempty"`
	Targets     int              `json:"geofence_targets"`
	Session     int              `json:"session_locations"`
}

func Status(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := d.Queue.Count(r.Context())
		if err != nil {
			WriteError(w, err)
			return
		}
		quarantined, _ := d.Queue.QuarantinedCount(r.Context())
		resp := statusResponse{
			Pending:     pending,
			Quarantined: quarantined,
			Online:      d.Connectivity.Online(),
			Sync:        d.State.SyncStatusSnapshot(),
			Route:       d.Route.Status(),
			Targets:     d.Geofence.Len(),
			Session:     d.Capture.Session().Len(),
		}
		if pos, ok := d.Positions.Current(); ok {
			resp.Position = &pos
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// PushPosition feeds a device fix into the position source.
func PushPosition(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req positionRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
			badRequest(w, "coordinates out of range")
			return
		}
		pos := geo.Position{Lat: req.Lat, Lng: req.Lng, Accuracy: req.Accuracy}
		if req.Timestamp > 0 {
			pos.CapturedAt = time.UnixMilli(req.Timestamp)
		}
		d.Positions.Update(pos)
		resp := map[string]any{"accepted": true}
		if a, ok := d.Geofence.Active(); ok {
			resp["alert"] = a
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func PositionError(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req positionErrorRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid json")
			return
		}
		code := strings.ToLower(strings.TrimSpace(req.Code))
		switch code {
		case geo.ReasonDenied, geo.ReasonUnavailable, geo.ReasonTimeout, geo.ReasonNoHardware:
		default:
			badRequest(w, "unknown code")
			return
		}
		d.Positions.ReportError(code)
		WriteJSON(w, http.StatusOK, map[string]any{"accepted": true})
	}
}

func SetConnectivity(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req connectivityRequest
		if err := decodeJSON(r, &req); err != nil || req.Online == nil {
			badRequest(w, "online flag required")
			return
		}
		d.Connectivity.Set(*req.Online)
		WriteJSON(w, http.StatusOK, map[string]any{"online": d.Connectivity.Online()})
	}
}

func GetAlert(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := d.Geofence.Active()
		if !ok {
			WriteJSON(w, http.StatusOK, map[string]any{"active": false})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"active": true, "alert": a})
	}
}

func DismissAlert(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := d.Geofence.Dismiss()
		WriteJSON(w, http.StatusOK, map[string]any{"dismissed": ok})
	}
}

// NavigateAlert returns the navigation link of the alerted target and closes the alert.
func NavigateAlert(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := d.Geofence.Dismiss()
		if !ok {
			WriteJSON(w, http.StatusNotFound, errorBody{Error: "no active alert", Code: "no_alert"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"url": a.Target.NavigationLink(), "target": a.Target})
	}
}

func StartRoute(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := d.Route.Start()
		WriteJSON(w, http.StatusOK, map[string]any{"started": started, "status": d.Route.Status()})
	}
}

func StopRoute(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, rt, err := d.Route.Stop(r.Context())
		body := map[string]any{"result": res, "points": len(rt.Points), "duration": rt.Duration}
		if err != nil {
			body["error"] = err.Error()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

func GetRoute(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"status": d.Route.Status(), "points": d.Route.Points()})
	}
}

func TriggerSync(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		synced, err := d.Sync.Drain(r.Context())
		pending, _ := d.Queue.Count(r.Context())
		body := map[string]any{"synced": synced, "pending": pending}
		if err != nil {
			body["error"] = err.Error()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

// Wake is the platform's background-wake callback.
func Wake(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Connectivity.Wake()
		WriteJSON(w, http.StatusAccepted, map[string]any{"woken": true})
	}
}
