package route

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/models"
)

type recordingSaver struct {
	routes []models.Route
	err    error
}

func (r *recordingSaver) SaveRoute(ctx context.Context, rt models.Route) error {
	r.routes = append(r.routes, rt)
	return r.err
}

// north returns a fix the given number of metres north of lat 45, lng 16.
func north(meters float64) geo.Position {
	deg := meters / (geo.EarthRadiusMeters * math.Pi / 180)
	return geo.Position{Lat: 45 + deg, Lng: 16}
}

func TestWalkRetainsPointsBeyondMinStep(t *testing.T) {
	saver := &recordingSaver{}
	s := NewSampler(Options{Saver: saver, TickInterval: time.Hour})
	s.Start()

	// Offsets give steps of 2, 12, 3, 20 and 1 m from the last retained point.
	for _, m := range []float64{0, 2, 12, 15, 32, 33} {
		s.AddPoint(north(m))
	}
	if got := s.Status().Points; got != 3 {
		t.Fatalf("expected 3 retained points, got %d", got)
	}

	res, r, err := s.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if res != StopSaved {
		t.Fatalf("expected saved, got %s", res)
	}
	if len(saver.routes) != 1 || len(saver.routes[0].Points) != 3 {
		t.Fatalf("expected one saved route with 3 points, got %+v", saver.routes)
	}
	if len(r.Points) != 3 {
		t.Fatalf("expected returned route with 3 points, got %d", len(r.Points))
	}
}

func TestCloseStreamKeepsOnlyFirstPoint(t *testing.T) {
	saver := &recordingSaver{}
	s := NewSampler(Options{Saver: saver, TickInterval: time.Hour})
	s.Start()
	for _, m := range []float64{0, 1, 2, 3, 4, 5} {
		s.AddPoint(north(m))
	}
	if got := s.Status().Points; got != 1 {
		t.Fatalf("expected 1 retained point, got %d", got)
	}
	res, _, err := s.Stop(context.Background())
	if err != nil || res != StopTooFewPoints {
		t.Fatalf("expected too few points without error, got %s err=%v", res, err)
	}
	if len(saver.routes) != 0 {
		t.Fatalf("expected no save attempt, got %d", len(saver.routes))
	}
}

func TestAlternatingStepsKeepEveryOtherPoint(t *testing.T) {
	s := NewSampler(Options{TickInterval: time.Hour})
	s.Start()
	var kept []bool
	for _, m := range []float64{0, 0, 15, 15, 30, 30, 45, 45} {
		kept = append(kept, s.AddPoint(north(m)))
	}
	for i, k := range kept {
		if k != (i%2 == 0) {
			t.Fatalf("expected point %d retained=%v, got %v", i, i%2 == 0, k)
		}
	}
}

func TestAddPointIgnoredWhileIdle(t *testing.T) {
	s := NewSampler(Options{TickInterval: time.Hour})
	if s.AddPoint(north(0)) {
		t.Fatalf("expected idle sampler to ignore points")
	}
	res, _, err := s.Stop(context.Background())
	if res != StopNotRecording || err != nil {
		t.Fatalf("expected stop while idle to be a no-op, got %s err=%v", res, err)
	}
}

func TestStartTwiceKeepsCurrentRecording(t *testing.T) {
	s := NewSampler(Options{TickInterval: time.Hour})
	if !s.Start() {
		t.Fatalf("expected first start to succeed")
	}
	s.AddPoint(north(0))
	if s.Start() {
		t.Fatalf("expected second start to be ignored")
	}
	if got := s.Status().Points; got != 1 {
		t.Fatalf("expected points to be kept, got %d", got)
	}
	s.Stop(context.Background())
}

func TestStopReportsSaveFailure(t *testing.T) {
	saver := &recordingSaver{err: errors.New("offline")}
	s := NewSampler(Options{Saver: saver, TickInterval: time.Hour})
	s.Start()
	s.AddPoint(north(0))
	s.AddPoint(north(50))
	res, _, err := s.Stop(context.Background())
	if res != StopSaveFailed || err == nil {
		t.Fatalf("expected save failure, got %s err=%v", res, err)
	}
	if s.Status().Recording {
		t.Fatalf("expected sampler to be idle after stop")
	}
}

func TestTickStopsWithRecording(t *testing.T) {
	s := NewSampler(Options{TickInterval: time.Millisecond})
	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Duration == "00:00" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	_, r, _ := s.Stop(context.Background())
	after := s.Status().Duration
	time.Sleep(20 * time.Millisecond)
	if s.Status().Duration != after {
		t.Fatalf("expected tick to stop with the recording")
	}
	if r.Duration == "00:00" {
		t.Fatalf("expected elapsed duration on the route, got %s", r.Duration)
	}
}

func TestStopKeepsRouteWhenStartFollowsImmediately(t *testing.T) {
	for i := 0; i < 500; i++ {
		saver := &recordingSaver{}
		s := NewSampler(Options{Saver: saver, TickInterval: time.Hour})
		s.Start()
		for _, m := range []float64{0, 20, 40} {
			s.AddPoint(north(m))
		}

		type stopped struct {
			res StopResult
			r   models.Route
		}
		out := make(chan stopped, 1)
		go func() {
			res, r, _ := s.Stop(context.Background())
			out <- stopped{res, r}
		}()
		restarted := s.Start()
		got := <-out

		if got.res != StopSaved || len(got.r.Points) != 3 {
			t.Fatalf("iteration %d: expected saved route with 3 points, got %s with %d", i, got.res, len(got.r.Points))
		}
		if len(saver.routes) != 1 || len(saver.routes[0].Points) != 3 {
			t.Fatalf("iteration %d: expected one saved route with 3 points, got %+v", i, saver.routes)
		}
		if restarted && s.Status().Points != 0 {
			t.Fatalf("iteration %d: expected new recording to start empty, got %d points", i, s.Status().Points)
		}
		s.Stop(context.Background())
	}
}

func TestDurationLabel(t *testing.T) {
	cases := map[int]string{0: "00:00", 9: "00:09", 61: "01:01", 3599: "59:59", 3600: "60:00"}
	for in, want := range cases {
		if got := DurationLabel(in); got != want {
			t.Fatalf("expected %s for %d, got %s", want, in, got)
		}
	}
}
