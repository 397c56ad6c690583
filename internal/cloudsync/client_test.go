package cloudsync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/models"
)

func TestClientSendsAuthAndDeviceHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if got := r.Header.Get("X-Device-ID"); got != "dev-9" {
			t.Errorf("expected device header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "row": "17"})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), ts.URL+"/", "tok", "dev-9")
	row, err := c.SaveLocation(context.Background(), models.LocationRecord{Lat: 1, Lng: 2})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if row != "17" {
		t.Fatalf("expected row 17, got %q", row)
	}
}

func TestClientMapsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/locations":
			// Completed call that reports failure in the envelope.
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "sheet locked"})
		case "/locations/5":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "unauthorized"})
		case "/healthz":
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()
	c := NewClient(ts.Client(), ts.URL, "", "")

	_, err := c.SaveLocation(context.Background(), models.LocationRecord{})
	var re *RejectedError
	if !errors.As(err, &re) || re.Message != "sheet locked" || !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}

	note := "x"
	err = c.UpdateLocation(context.Background(), "5", models.RecordPatch{Note: &note})
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("expected unauthorized rejection, got %v", err)
	}

	if err := c.Healthy(context.Background()); !errors.Is(err, ErrRemoteUnreachable) {
		t.Fatalf("expected 503 to count as unreachable, got %v", err)
	}
}

func TestUpdateLocationEscapesRowKey(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer ts.Close()

	note := "n"
	c := NewClient(ts.Client(), ts.URL, "", "")
	if err := c.UpdateLocation(context.Background(), "12 b/c", models.RecordPatch{Note: &note}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != "/locations/12%20b%2Fc" {
		t.Fatalf("expected escaped row key in path, got %s", got)
	}
}

func TestClientNotConfigured(t *testing.T) {
	c := NewClient(nil, "  ", "", "")
	if c.IsConfigured() {
		t.Fatalf("expected unconfigured client")
	}
	if _, err := c.ListLocations(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestUploadPhotoEncodesBody(t *testing.T) {
	var got uploadPhotoRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "photo_link": "https://photos.test/a.jpg"})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), ts.URL, "", "")
	link, err := c.UploadPhoto(context.Background(), []byte{0xff, 0xd8}, "capture_1.jpg")
	if err != nil || link != "https://photos.test/a.jpg" {
		t.Fatalf("expected link, got %q err=%v", link, err)
	}
	raw, _ := base64.StdEncoding.DecodeString(got.ImageBase64)
	if got.Filename != "capture_1.jpg" || len(raw) != 2 {
		t.Fatalf("unexpected upload body %+v", got)
	}
}

func TestUploadPhotoFailureWrapsUploadFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), ts.URL, "", "")
	_, err := c.UploadPhoto(context.Background(), []byte("img"), "a.jpg")
	if !errors.Is(err, ErrUploadFailed) || !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("expected upload failure wrapping the rejection, got %v", err)
	}
}

func TestSaveRouteSendsLineString(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/routes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": 3})
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), ts.URL, "", "")
	r := models.Route{StartTime: "09:15", Duration: "12:30", Points: []geo.Point{{Lat: 45, Lng: 16}, {Lat: 45.1, Lng: 16.1}}}
	if err := c.SaveRoute(context.Background(), r); err != nil {
		t.Fatalf("save route: %v", err)
	}
	geom, _ := body["geometry"].(map[string]any)
	if geom["type"] != "LineString" {
		t.Fatalf("expected LineString geometry, got %v", body["geometry"])
	}
	coords, _ := geom["coordinates"].([]any)
	first, _ := coords[0].([]any)
	if len(coords) != 2 || first[0].(float64) != 16 || first[1].(float64) != 45 {
		t.Fatalf("expected [lng,lat] coordinates, got %v", coords)
	}
	props, _ := body["properties"].(map[string]any)
	if props["duration"] != "12:30" || props["start_time"] != "09:15" {
		t.Fatalf("unexpected properties %v", props)
	}
}

func TestListLocationsMarksSynced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"locations": []any{map[string]any{"lat": 45.1, "lng": 16.2, "tag": "Poslovno", "row": "4"}},
		})
	}))
	defer ts.Close()

	locs, err := NewClient(ts.Client(), ts.URL, "", "").ListLocations(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locs) != 1 || locs[0].Status != models.StatusSynced || locs[0].RowKey != "4" {
		t.Fatalf("unexpected locations %+v", locs)
	}
}
