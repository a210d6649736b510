package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeTrack struct {
	stops atomic.Int32
}

func (t *fakeTrack) Kind() string { return "video" }
func (t *fakeTrack) Stop()        { t.stops.Add(1) }

type fakeStream struct {
	tracks []*fakeTrack
}

func newFakeStream(n int) *fakeStream {
	s := &fakeStream{}
	for i := 0; i < n; i++ {
		s.tracks = append(s.tracks, &fakeTrack{})
	}
	return s
}

func (s *fakeStream) ID() string { return "fake" }

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) stopCounts() []int32 {
	out := make([]int32, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t.stops.Load()
	}
	return out
}

// fakeDevice returns stream/err; when gate is set Acquire blocks until the
// gate is closed, ignoring ctx, to mimic a permission prompt that resolves late.
type fakeDevice struct {
	mu       sync.Mutex
	stream   Stream
	err      error
	gate     chan struct{}
	entered  chan struct{}
	calls    int
	lastCons Constraints
}

func (d *fakeDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	d.calls++
	d.lastCons = c
	gate := d.gate
	entered := d.entered
	d.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func TestStartActivatesSession(t *testing.T) {
	stream := newFakeStream(1)
	dev := &fakeDevice{stream: stream}
	s := NewSession(dev, DefaultConstraints, zerolog.Nop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.Active() {
		t.Error("expected active session")
	}
	if s.Stream() == nil {
		t.Error("expected stream handle")
	}
	if dev.lastCons.Width != 640 || dev.lastCons.Height != 480 || dev.lastCons.Audio {
		t.Errorf("unexpected constraints %+v", dev.lastCons)
	}
}

func TestStartFailureLeavesSessionInactive(t *testing.T) {
	dev := &fakeDevice{err: ErrDeviceNotFound}
	s := NewSession(dev, DefaultConstraints, zerolog.Nop())

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
	if s.Active() || s.Stream() != nil {
		t.Error("failed start must leave no stream")
	}

	// Manual retry is allowed.
	dev.err = nil
	dev.stream = newFakeStream(1)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if dev.calls != 2 {
		t.Errorf("device calls = %d, want 2", dev.calls)
	}
}

func TestStopReleasesEveryTrackOnce(t *testing.T) {
	stream := newFakeStream(2)
	s := NewSession(&fakeDevice{stream: stream}, DefaultConstraints, zerolog.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Stop()
	s.Stop()

	for i, n := range stream.stopCounts() {
		if n != 1 {
			t.Errorf("track %d stopped %d times, want 1", i, n)
		}
	}
	if s.Active() {
		t.Error("session should be inactive after stop")
	}
}

func TestStartTwiceIsRejected(t *testing.T) {
	s := NewSession(&fakeDevice{stream: newFakeStream(1)}, DefaultConstraints, zerolog.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStopWhilePendingReleasesLateStream(t *testing.T) {
	stream := newFakeStream(1)
	dev := &fakeDevice{
		stream:  stream,
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	s := NewSession(dev, DefaultConstraints, zerolog.Nop())

	result := make(chan error, 1)
	go func() { result <- s.Start(context.Background()) }()

	<-dev.entered
	if s.Status() != StatusPending {
		t.Fatalf("status = %s, want pending", s.Status())
	}

	s.Stop()
	close(dev.gate)

	select {
	case err := <-result:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	if got := stream.stopCounts()[0]; got != 1 {
		t.Errorf("late stream track stopped %d times, want 1", got)
	}
	if s.Active() || s.Stream() != nil {
		t.Error("cancelled session must not hold a stream")
	}
}

func TestStopWhilePendingAbortsContextAwareDevice(t *testing.T) {
	entered := make(chan struct{})
	dev := deviceFunc(func(ctx context.Context, c Constraints) (Stream, error) {
		close(entered)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := NewSession(dev, DefaultConstraints, zerolog.Nop())

	result := make(chan error, 1)
	go func() { result <- s.Start(context.Background()) }()

	<-entered
	s.Stop()

	select {
	case err := <-result:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	if s.Status() != StatusInactive {
		t.Errorf("status = %s, want inactive", s.Status())
	}
}

type deviceFunc func(ctx context.Context, c Constraints) (Stream, error)

func (f deviceFunc) Acquire(ctx context.Context, c Constraints) (Stream, error) { return f(ctx, c) }

func TestStopOnInactiveSessionIsNoop(t *testing.T) {
	s := NewSession(&fakeDevice{}, DefaultConstraints, zerolog.Nop())
	s.Stop()
	if s.Status() != StatusInactive {
		t.Errorf("status = %s", s.Status())
	}
}
