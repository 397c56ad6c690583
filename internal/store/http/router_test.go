package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"fieldtrack-go/internal/cloudsync"
	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/store/config"
	"fieldtrack-go/internal/store/handlers"
	"fieldtrack-go/internal/store/photos"
	"fieldtrack-go/internal/store/repos"
	"fieldtrack-go/internal/store/services"
)

func setupRouter(t *testing.T, token string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := sql.Open("sqlite", "file::memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := repos.Migrate(db); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	ps, err := photos.NewDirStore(dir, "http://store.test")
	if err != nil {
		t.Fatal(err)
	}
	svc := services.NewStoreService(repos.NewLocationRepo(db), ps)
	h := handlers.NewStoreHandler(svc)
	return NewRouter(config.Config{AuthToken: token}, h, logging.Discard(), dir)
}

func TestClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, "secret"))
	defer srv.Close()
	client := cloudsync.NewClient(srv.Client(), srv.URL+"/api/v1", "secret", "d1")
	ctx := context.Background()

	if err := client.Healthy(ctx); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
	row, err := client.SaveLocation(ctx, models.LocationRecord{Lat: 45.81, Lng: 15.98, Tag: "Poslovno", Note: "n"})
	if err != nil {
		t.Fatal(err)
	}
	if row != "1" {
		t.Fatalf("expected row 1, got %q", row)
	}

	note := "edited"
	if err := client.UpdateLocation(ctx, row, models.RecordPatch{Note: &note}); err != nil {
		t.Fatal(err)
	}
	locs, err := client.ListLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || locs[0].Note != "edited" || locs[0].RowKey != "1" {
		t.Fatalf("unexpected list %+v", locs)
	}

	err = client.SaveRoute(ctx, models.Route{StartTime: "08:00", Duration: "00:30", Points: []geo.Point{{Lat: 45.8, Lng: 15.9}, {Lat: 45.81, Lng: 15.91}}})
	if err != nil {
		t.Fatalf("expected route saved, got %v", err)
	}
	err = client.SaveRoute(ctx, models.Route{Points: []geo.Point{{Lat: 45.8, Lng: 15.9}}})
	if !errors.Is(err, cloudsync.ErrRemoteRejected) {
		t.Fatalf("expected rejection for a one-point route, got %v", err)
	}

	link, err := client.UploadPhoto(ctx, []byte("jpeg-bytes"), "capture_1.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, "http://store.test/photos/") {
		t.Fatalf("unexpected photo link %s", link)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, "secret"))
	defer srv.Close()
	client := cloudsync.NewClient(srv.Client(), srv.URL+"/api/v1", "wrong", "d1")

	_, err := client.ListLocations(context.Background())
	if !errors.Is(err, cloudsync.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := client.Healthy(context.Background()); err != nil {
		t.Fatalf("expected health to skip auth, got %v", err)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	r := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/locations/42", strings.NewReader(`{"note":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestServesStoredPhoto(t *testing.T) {
	r := setupRouter(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/photos", strings.NewReader(`{"image_base64":"aGVsbG8=","filename":"a.txt"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	i := strings.Index(body, "/photos/")
	if i < 0 {
		t.Fatalf("expected photo link in %s", body)
	}
	path := body[i:]
	path = path[:strings.Index(path, `"`)]

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, path, nil))
	if get.Code != http.StatusOK || get.Body.String() != "hello" {
		t.Fatalf("expected stored photo, got %d %q", get.Code, get.Body.String())
	}
}
