// Package capture owns the proctoring camera of one exam attempt. A Session
// acquires a video stream from a Device, holds it while the attempt runs and
// releases every track exactly once.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrDeviceBusy     = errors.New("capture device is in use by another session")
	ErrDeviceNotFound = errors.New("capture device not found")
	ErrAlreadyStarted = errors.New("capture session already started")
	ErrCancelled      = errors.New("capture session stopped before the device was granted")
)

// Constraints describe the requested stream.
type Constraints struct {
	Width  int
	Height int
	Audio  bool
}

// DefaultConstraints is the fixed 640x480 video-only request used for
// proctoring.
var DefaultConstraints = Constraints{Width: 640, Height: 480}

// Track is one media track of a stream.
type Track interface {
	Kind() string
	Stop()
}

// Stream is a granted capture stream.
type Stream interface {
	ID() string
	Tracks() []Track
}

// Device grants streams. Acquire blocks until the device is granted or
// denied, or ctx is done.
type Device interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Status is the observable state of a Session.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
)

// Session is safe for concurrent use. Start and Stop may race; a Stop that
// lands while Start is still waiting on the device makes Start release the
// late stream instead of keeping it.
type Session struct {
	device      Device
	constraints Constraints
	log         zerolog.Logger

	mu            sync.Mutex
	status        Status
	stream        Stream
	cancelPending bool
	abort         context.CancelFunc
}

// NewSession creates an inactive session for device.
func NewSession(device Device, constraints Constraints, log zerolog.Logger) *Session {
	return &Session{
		device:      device,
		constraints: constraints,
		log:         log.With().Str("component", "capture_session").Logger(),
		status:      StatusInactive,
	}
}

// Start requests the stream. On failure the session stays inactive and may
// be started again.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInactive {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	acquireCtx, abort := context.WithCancel(ctx)
	s.status = StatusPending
	s.cancelPending = false
	s.abort = abort
	s.mu.Unlock()

	stream, err := s.device.Acquire(acquireCtx, s.constraints)
	abort()

	s.mu.Lock()
	s.abort = nil
	if s.cancelPending {
		s.cancelPending = false
		s.status = StatusInactive
		s.mu.Unlock()

		if stream != nil {
			s.log.Debug().Str("stream_id", stream.ID()).Msg("Releasing stream granted after stop")
			release(stream)
		}
		return ErrCancelled
	}
	if err != nil {
		s.status = StatusInactive
		s.mu.Unlock()
		return fmt.Errorf("acquire capture device: %w", err)
	}

	s.stream = stream
	s.status = StatusActive
	s.mu.Unlock()

	s.log.Debug().Str("stream_id", stream.ID()).Msg("Capture active")
	return nil
}

// Stop releases the device. Calling it on an inactive session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	switch s.status {
	case StatusPending:
		s.cancelPending = true
		if s.abort != nil {
			s.abort()
		}
		s.mu.Unlock()
	case StatusActive:
		stream := s.stream
		s.stream = nil
		s.status = StatusInactive
		s.mu.Unlock()

		release(stream)
		s.log.Debug().Str("stream_id", stream.ID()).Msg("Capture released")
	default:
		s.mu.Unlock()
	}
}

// Active reports whether a stream is held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusActive
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stream returns the held stream, or nil when inactive.
func (s *Session) Stream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

func release(stream Stream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
