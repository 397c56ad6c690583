// Package route records a decimated track while recording is active.
package route

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
)

const DefaultMinStepMeters = 10.0

// Saver is the remote side of a finished route.
type Saver interface {
	SaveRoute(ctx context.Context, r models.Route) error
}

type StopResult string

const (
	StopSaved        StopResult = "saved"
	StopSaveFailed   StopResult = "save_failed"
	StopTooFewPoints StopResult = "too_few_points"
	StopNotRecording StopResult = "not_recording"
)

type Status struct {
	Recording bool      `json:"recording"`
	Points    int       `json:"points"`
	Duration  string    `json:"duration"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

type Options struct {
	MinStepMeters float64
	Saver         Saver
	Logger        *logging.Logger
	Now           func() time.Time
	TickInterval  time.Duration
}

// Sampler is the Idle/Recording state machine fed by the position stream.
type Sampler struct {
	mu        sync.Mutex
	recording bool
	points    []geo.Point
	startedAt time.Time
	seconds   int
	stopTick  chan struct{}
	tickDone  chan struct{}

	minStep  float64
	saver    Saver
	log      *logging.Logger
	now      func() time.Time
	interval time.Duration
}

func NewSampler(opts Options) *Sampler {
	if opts.MinStepMeters <= 0 {
		opts.MinStepMeters = DefaultMinStepMeters
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Sampler{
		minStep:  opts.MinStepMeters,
		saver:    opts.Saver,
		log:      opts.Logger,
		now:      opts.Now,
		interval: opts.TickInterval,
	}
}

// Start begins a new recording. It returns false when one is already running.
func (s *Sampler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return false
	}
	s.recording = true
	s.points = nil
	s.startedAt = s.now()
	s.seconds = 0
	s.stopTick = make(chan struct{})
	s.tickDone = make(chan struct{})
	go s.tick(s.stopTick, s.tickDone)
	s.log.Infof("route recording started")
	return true
}

// tick counts seconds for the recording that owns stop. A tick that races a
// Stop is dropped so it cannot leak into the next recording.
func (s *Sampler) tick(stop chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			if s.stopTick == stop {
				s.seconds++
			}
			s.mu.Unlock()
		}
	}
}

// AddPoint keeps pos only if it lies at least the minimum step from the last
// retained point. It reports whether the point was retained.
func (s *Sampler) AddPoint(pos geo.Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return false
	}
	p := pos.Point()
	if n := len(s.points); n > 0 {
		if geo.DistanceMeters(s.points[n-1], p) < s.minStep {
			return false
		}
	}
	s.points = append(s.points, p)
	return true
}

// OnPosition adapts AddPoint to a position subscriber.
func (s *Sampler) OnPosition(pos geo.Position) error {
	s.AddPoint(pos)
	return nil
}

// Stop ends the recording and hands a route of two or more points to the saver.
// The tick goroutine has exited by the time Stop returns.
func (s *Sampler) Stop(ctx context.Context) (StopResult, models.Route, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return StopNotRecording, models.Route{}, nil
	}
	s.recording = false
	stop, done := s.stopTick, s.tickDone
	s.stopTick, s.tickDone = nil, nil
	points := s.points
	s.points = nil
	r := models.Route{
		StartTime: s.startedAt.Format(models.TimeLayout),
		Duration:  DurationLabel(s.seconds),
		Points:    points,
	}
	s.mu.Unlock()

	close(stop)
	<-done

	if len(points) < 2 {
		s.log.Infof("route stopped with %d points, nothing to save", len(points))
		return StopTooFewPoints, r, nil
	}
	if s.saver == nil {
		return StopSaveFailed, r, fmt.Errorf("route saver not configured")
	}
	if err := s.saver.SaveRoute(ctx, r); err != nil {
		s.log.Warnf("save route (%d points): %v", len(points), err)
		return StopSaveFailed, r, err
	}
	s.log.Infof("route saved (%d points, %s)", len(points), r.Duration)
	return StopSaved, r, nil
}

func (s *Sampler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Recording: s.recording, Points: len(s.points), Duration: DurationLabel(s.seconds)}
	if s.recording {
		st.StartedAt = s.startedAt
	}
	return st
}

// Points returns a copy of the retained points.
func (s *Sampler) Points() []geo.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]geo.Point, len(s.points))
	copy(out, s.points)
	return out
}

// DurationLabel renders whole seconds as mm:ss; minutes keep growing past 59.
func DurationLabel(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
