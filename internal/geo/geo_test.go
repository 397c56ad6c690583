package geo

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestDistanceZeroAndSymmetric(t *testing.T) {
	pts := []Point{
		{Lat: 45.815, Lng: 15.9819},
		{Lat: 43.5081, Lng: 16.4402},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 179.9},
		{Lat: 0, Lng: -179.9},
	}
	for _, a := range pts {
		if d := DistanceMeters(a, a); d != 0 {
			t.Fatalf("expected 0 for %v, got %v", a, d)
		}
		for _, b := range pts {
			ab := DistanceMeters(a, b)
			ba := DistanceMeters(b, a)
			if math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("expected symmetric distance for %v/%v, got %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude on a 6 371 km sphere.
	d := DistanceMeters(Point{Lat: 0, Lng: 0}, Point{Lat: 1, Lng: 0})
	want := EarthRadiusMeters * math.Pi / 180
	if math.Abs(d-want) > 1e-6 {
		t.Fatalf("expected %v, got %v", want, d)
	}
	// Across the antimeridian stays short.
	if d := DistanceKm(Point{Lat: 0, Lng: 179.9}, Point{Lat: 0, Lng: -179.9}); d > 23 {
		t.Fatalf("expected ~22 km across the antimeridian, got %v", d)
	}
}

func TestPointKeyAndLink(t *testing.T) {
	p := Point{Lat: 45.5, Lng: 16.25}
	if p.Key() != "45.5,16.25" {
		t.Fatalf("unexpected key %q", p.Key())
	}
	if p.MapsLink() != "https://www.google.com/maps?q=45.5,16.25" {
		t.Fatalf("unexpected link %q", p.MapsLink())
	}
}

func TestUpdateDeliversInOrderDespiteFailures(t *testing.T) {
	s := NewSource(SourceOptions{})
	var got []string
	s.Subscribe("a", func(Position) error { got = append(got, "a"); return errors.New("boom") })
	s.Subscribe("b", func(Position) error { got = append(got, "b"); panic("worse") })
	s.Subscribe("c", func(Position) error { got = append(got, "c"); return nil })

	s.Update(Position{Lat: 1, Lng: 2})

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected a,b,c delivery, got %v", got)
	}
	cur, ok := s.Current()
	if !ok || cur.Lat != 1 || cur.Lng != 2 {
		t.Fatalf("expected current position to be updated, got %+v ok=%v", cur, ok)
	}
	if cur.CapturedAt.IsZero() {
		t.Fatalf("expected captured_at to be stamped")
	}
}

func TestRequestFreshUsesCache(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSource(SourceOptions{Now: func() time.Time { return now }})
	s.Update(Position{Lat: 1, Lng: 1, CapturedAt: now.Add(-9 * time.Second)})

	pos, err := s.RequestFresh(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("expected cached fix, got %v", err)
	}
	if pos.Lat != 1 {
		t.Fatalf("expected cached lat 1, got %v", pos.Lat)
	}
}

func TestRequestFreshTimesOutOnStaleFix(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSource(SourceOptions{Now: func() time.Time { return now }})
	s.Update(Position{Lat: 1, Lng: 1, CapturedAt: now.Add(-10 * time.Second)})

	_, err := s.RequestFresh(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrPositionUnavailable) {
		t.Fatalf("expected ErrPositionUnavailable, got %v", err)
	}
	var fe *FixError
	if !errors.As(err, &fe) || fe.Reason != ReasonTimeout {
		t.Fatalf("expected timeout reason, got %v", err)
	}
}

func TestRequestFreshWaitsForNextFix(t *testing.T) {
	s := NewSource(SourceOptions{})
	done := make(chan Position, 1)
	go func() {
		pos, err := s.RequestFresh(context.Background(), 2*time.Second)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- pos
	}()
	// Wait until the request is parked before pushing a fix.
	for i := 0; i < 200; i++ {
		s.mu.Lock()
		n := len(s.waiters)
		s.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.Update(Position{Lat: 7, Lng: 8})
	pos := <-done
	if pos.Lat != 7 {
		t.Fatalf("expected streamed fix, got %+v", pos)
	}
}

func TestRequestFreshFailsOnDenial(t *testing.T) {
	s := NewSource(SourceOptions{})
	errc := make(chan error, 1)
	go func() {
		_, err := s.RequestFresh(context.Background(), 2*time.Second)
		errc <- err
	}()
	for i := 0; i < 200; i++ {
		s.mu.Lock()
		n := len(s.waiters)
		s.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	s.ReportError(ReasonDenied)
	err := <-errc
	var fe *FixError
	if !errors.As(err, &fe) || fe.Reason != ReasonDenied {
		t.Fatalf("expected denied fix error, got %v", err)
	}
}

type stubLocator struct {
	pos Position
	err error
}

func (l stubLocator) Locate(ctx context.Context) (Position, error) { return l.pos, l.err }

func TestRequestFreshUsesLocator(t *testing.T) {
	s := NewSource(SourceOptions{Locator: stubLocator{pos: Position{Lat: 3, Lng: 4, CapturedAt: time.Now()}}})
	pos, err := s.RequestFresh(context.Background(), time.Second)
	if err != nil || pos.Lat != 3 {
		t.Fatalf("expected locator fix, got %+v err=%v", pos, err)
	}
	if cur, ok := s.Current(); !ok || cur.Lat != 3 {
		t.Fatalf("expected locator fix to become current")
	}

	s = NewSource(SourceOptions{Locator: stubLocator{err: errors.New("gps off")}})
	if _, err := s.RequestFresh(context.Background(), time.Second); !errors.Is(err, ErrPositionUnavailable) {
		t.Fatalf("expected ErrPositionUnavailable, got %v", err)
	}
}
