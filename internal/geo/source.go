package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fieldtrack-go/internal/logging"
)

var ErrPositionUnavailable = errors.New("position unavailable")

// Fix failure reasons reported by the device.
const (
	ReasonDenied      = "denied"
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
	ReasonNoHardware  = "no_hardware"
)

type FixError struct {
	Reason string
}

func (e *FixError) Error() string { return "position unavailable: " + e.Reason }

func (e *FixError) Unwrap() error { return ErrPositionUnavailable }

// Locator is the optional one-shot fix capability of the platform.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

type Subscriber func(Position) error

type subscription struct {
	name string
	fn   Subscriber
}

type fixResult struct {
	pos Position
	err error
}

type SourceOptions struct {
	Freshness time.Duration
	Locator   Locator
	Logger    *logging.Logger
	Now       func() time.Time
}

// Source keeps the most recent device fix and pushes every update to its
// subscribers synchronously, in registration order.
type Source struct {
	mu      sync.Mutex
	current Position
	hasFix  bool
	lastErr error
	subs    []subscription
	waiters []chan fixResult

	freshness time.Duration
	locator   Locator
	log       *logging.Logger
	now       func() time.Time
	warn      rate.Sometimes
}

func NewSource(opts SourceOptions) *Source {
	if opts.Freshness <= 0 {
		opts.Freshness = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Source{
		freshness: opts.Freshness,
		locator:   opts.Locator,
		log:       opts.Logger,
		now:       opts.Now,
		warn:      rate.Sometimes{Interval: 30 * time.Second},
	}
}

func (s *Source) Subscribe(name string, fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscription{name: name, fn: fn})
}

// Current returns the latest fix, if any has been received.
func (s *Source) Current() (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasFix
}

func (s *Source) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Update records pos as the current fix and delivers it to every subscriber.
func (s *Source) Update(pos Position) {
	if pos.CapturedAt.IsZero() {
		pos.CapturedAt = s.now()
	}
	s.mu.Lock()
	s.current = pos
	s.hasFix = true
	s.lastErr = nil
	waiters := s.waiters
	s.waiters = nil
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, w := range waiters {
		w <- fixResult{pos: pos}
	}
	for _, sub := range subs {
		if err := s.deliver(sub, pos); err != nil {
			s.warn.Do(func() {
				s.log.Warnf("subscriber %s failed: %v", sub.name, err)
			})
		}
	}
}

// ReportError records a device-side fix failure and fails pending requests.
func (s *Source) ReportError(reason string) {
	err := &FixError{Reason: reason}
	s.mu.Lock()
	s.lastErr = err
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w <- fixResult{err: err}
	}
	s.warn.Do(func() { s.log.Warnf("device reported fix error: %s", reason) })
}

func (s *Source) deliver(sub subscription, pos Position) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.fn(pos)
}

// RequestFresh returns a fix younger than the freshness window. A cached fix is
// reused when possible; otherwise the locator is asked, or the next streamed
// fix is awaited, until timeout elapses.
func (s *Source) RequestFresh(ctx context.Context, timeout time.Duration) (Position, error) {
	if pos, ok := s.Current(); ok && pos.FreshAt(s.now(), s.freshness) {
		return pos, nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.locator != nil {
		pos, err := s.locator.Locate(ctx)
		if err != nil {
			if errors.Is(err, ErrPositionUnavailable) {
				return Position{}, err
			}
			if ctx.Err() != nil {
				return Position{}, &FixError{Reason: ReasonTimeout}
			}
			return Position{}, fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
		}
		s.Update(pos)
		return pos, nil
	}

	ch := make(chan fixResult, 1)
	s.mu.Lock()
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case res := <-ch:
		return res.pos, res.err
	case <-ctx.Done():
		s.dropWaiter(ch)
		return Position{}, &FixError{Reason: ReasonTimeout}
	}
}

func (s *Source) dropWaiter(ch chan fixResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}
