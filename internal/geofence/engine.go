// Package geofence raises a proximity alert when the device comes near a
// known location.
package geofence

import (
	"context"
	"math"
	"sync"
	"time"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
)

const (
	DefaultRadiusMeters = 200.0
	DefaultCooldown     = 5 * time.Minute
	DefaultRefresh      = 5 * time.Minute
)

// VibratePattern is the on/off haptic cue sent with every alert.
var VibratePattern = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

type Target struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Tag          string  `json:"tag,omitempty"`
	Date         string  `json:"date,omitempty"`
	Note         string  `json:"note,omitempty"`
	ExternalLink string  `json:"maps_link,omitempty"`
	RowKey       string  `json:"row,omitempty"`
}

func TargetFromRecord(r models.LocationRecord) Target {
	return Target{
		Lat:          r.Lat,
		Lng:          r.Lng,
		Tag:          r.Tag,
		Date:         r.CreatedDate,
		Note:         r.Note,
		ExternalLink: r.ExternalLink,
		RowKey:       r.RowKey,
	}
}

func (t Target) Point() geo.Point { return geo.Point{Lat: t.Lat, Lng: t.Lng} }

func (t Target) Key() string { return t.Point().Key() }

// NavigationLink prefers the stored external link over a generated one.
func (t Target) NavigationLink() string {
	if t.ExternalLink != "" {
		return t.ExternalLink
	}
	return t.Point().MapsLink()
}

type Alert struct {
	Target         Target    `json:"target"`
	DistanceMeters int       `json:"distance_meters"`
	FiredAt        time.Time `json:"fired_at"`
}

// Fetcher supplies the remote snapshot.
type Fetcher interface {
	ListLocations(ctx context.Context) ([]models.LocationRecord, error)
}

// Notifier receives every fired alert.
type Notifier interface {
	Notify(a Alert)
}

// Vibrator is implemented by notifiers on devices with haptics.
type Vibrator interface {
	Vibrate(pattern []time.Duration) error
}

type Options struct {
	RadiusMeters float64
	Cooldown     time.Duration
	Refresh      time.Duration
	Fetcher      Fetcher
	Notifier     Notifier
	Logger       *logging.Logger
	Now          func() time.Time
	Distance     func(a, b geo.Point) float64
}

type Engine struct {
	mu        sync.Mutex
	targets   []Target
	known     map[string]struct{}
	added     []Target
	lastAlert map[string]time.Time
	active    *Alert
	refreshed time.Time

	radius   float64
	cooldown time.Duration
	refresh  time.Duration
	fetcher  Fetcher
	notifier Notifier
	log      *logging.Logger
	now      func() time.Time
	distance func(a, b geo.Point) float64
}

func NewEngine(opts Options) *Engine {
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = DefaultRadiusMeters
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Distance == nil {
		opts.Distance = geo.DistanceMeters
	}
	return &Engine{
		known:     make(map[string]struct{}),
		lastAlert: make(map[string]time.Time),
		radius:    opts.RadiusMeters,
		cooldown:  opts.Cooldown,
		refresh:   opts.Refresh,
		fetcher:   opts.Fetcher,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		now:       opts.Now,
		distance:  opts.Distance,
	}
}

// Refresh replaces the snapshot with the remote list. On failure the previous
// snapshot stays in place. Targets added locally since the last refresh are
// kept when the remote does not list them yet.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.fetcher == nil {
		return nil
	}
	records, err := e.fetcher.ListLocations(ctx)
	if err != nil {
		e.log.Warnf("geofence refresh failed, keeping %d targets: %v", e.Len(), err)
		return err
	}

	targets := make([]Target, 0, len(records))
	known := make(map[string]struct{}, len(records))
	for _, r := range records {
		t := TargetFromRecord(r)
		if _, dup := known[t.Key()]; dup {
			continue
		}
		targets = append(targets, t)
		known[t.Key()] = struct{}{}
	}

	e.mu.Lock()
	var carried []Target
	for _, t := range e.added {
		if _, ok := known[t.Key()]; ok {
			continue
		}
		targets = append(targets, t)
		known[t.Key()] = struct{}{}
		carried = append(carried, t)
	}
	e.targets = targets
	e.known = known
	e.added = carried
	e.refreshed = e.now()
	e.mu.Unlock()

	e.log.Debugf("geofence snapshot refreshed: %d targets", len(targets))
	return nil
}

// Run refreshes immediately and then on every refresh interval until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	_ = e.Refresh(ctx)
	ticker := time.NewTicker(e.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = e.Refresh(ctx)
		}
	}
}

// AddTarget makes t eligible for the next check. A target whose coordinates
// are already known is ignored.
func (e *Engine) AddTarget(t Target) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := t.Key()
	if _, ok := e.known[key]; ok {
		return false
	}
	e.known[key] = struct{}{}
	e.targets = append(e.targets, t)
	e.added = append(e.added, t)
	return true
}

func (e *Engine) AddRecord(r models.LocationRecord) bool {
	return e.AddTarget(TargetFromRecord(r))
}

// Check evaluates pos against the snapshot in order and fires at most one alert.
func (e *Engine) Check(pos geo.Position) (Alert, bool) {
	here := pos.Point()
	now := e.now()

	e.mu.Lock()
	var fired *Alert
	for _, t := range e.targets {
		if t.Lat == 0 || t.Lng == 0 {
			continue
		}
		d := e.distance(here, t.Point())
		if d > e.radius {
			continue
		}
		key := t.Key()
		if last, ok := e.lastAlert[key]; ok && now.Sub(last) <= e.cooldown {
			continue
		}
		e.lastAlert[key] = now
		fired = &Alert{Target: t, DistanceMeters: int(math.Round(d)), FiredAt: now}
		e.active = fired
		break
	}
	e.mu.Unlock()

	if fired == nil {
		return Alert{}, false
	}
	e.log.Infof("near %s (%dm)", fired.Target.Key(), fired.DistanceMeters)
	e.signal(*fired)
	return *fired, true
}

// OnPosition adapts Check to a position subscriber.
func (e *Engine) OnPosition(pos geo.Position) error {
	e.Check(pos)
	return nil
}

func (e *Engine) signal(a Alert) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(a)
	if v, ok := e.notifier.(Vibrator); ok {
		if err := v.Vibrate(VibratePattern); err != nil {
			e.log.Debugf("vibrate: %v", err)
		}
	}
}

// Active returns the currently open alert.
func (e *Engine) Active() (Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Alert{}, false
	}
	return *e.active, true
}

// Dismiss closes the open alert and returns it.
func (e *Engine) Dismiss() (Alert, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Alert{}, false
	}
	a := *e.active
	e.active = nil
	return a, true
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.targets)
}

func (e *Engine) Targets() []Target {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Target, len(e.targets))
	copy(out, e.targets)
	return out
}

func (e *Engine) LastRefresh() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshed
}
