package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lease only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease TTL only if this holder still owns it.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ErrUnsupportedConstraints is returned for requests the lease device cannot
// serve, such as audio capture.
var ErrUnsupportedConstraints = errors.New("unsupported capture constraints")

// LeaseDevice models a student's camera as an exclusive Redis lease, so at
// most one server connection holds the proctoring feed of an attempt at a
// time, across every backend instance.
type LeaseDevice struct {
	rdb *redis.Client
	key string
	ttl time.Duration
	log zerolog.Logger
}

// NewLeaseDevice creates a device guarding key.
func NewLeaseDevice(rdb *redis.Client, key string, ttl time.Duration, log zerolog.Logger) *LeaseDevice {
	return &LeaseDevice{
		rdb: rdb,
		key: key,
		ttl: ttl,
		log: log.With().Str("component", "lease_device").Str("key", key).Logger(),
	}
}

// Acquire takes the lease and starts a keepalive that refreshes it at a
// third of its TTL until the track is stopped.
func (d *LeaseDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if c.Audio || c.Width <= 0 || c.Height <= 0 {
		return nil, ErrUnsupportedConstraints
	}

	token := uuid.New().String()
	ok, err := d.rdb.SetNX(ctx, d.key, token, d.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("take lease: %w", err)
	}
	if !ok {
		return nil, ErrDeviceBusy
	}

	track := &leaseTrack{
		device: d,
		token:  token,
		done:   make(chan struct{}),
		lost:   make(chan struct{}),
	}
	go track.keepalive()

	return &LeaseStream{id: token, track: track}, nil
}

// LeaseStream is the stream handed out by LeaseDevice.
type LeaseStream struct {
	id    string
	track *leaseTrack
}

// ID implements Stream.
func (s *LeaseStream) ID() string { return s.id }

// Tracks implements Stream.
func (s *LeaseStream) Tracks() []Track { return []Track{s.track} }

// Lost is closed when the lease expires or is taken over while the track
// is still running.
func (s *LeaseStream) Lost() <-chan struct{} { return s.track.lost }

type leaseTrack struct {
	device   *LeaseDevice
	token    string
	done     chan struct{}
	lost     chan struct{}
	stopOnce sync.Once
	lostOnce sync.Once
}

func (t *leaseTrack) Kind() string { return "video" }

// Stop ends the keepalive and deletes the lease. Safe to call repeatedly.
func (t *leaseTrack) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, t.device.rdb, []string{t.device.key}, t.token).Err(); err != nil {
			t.device.log.Warn().Err(err).Msg("Lease release failed, waiting for TTL expiry")
		}
	})
}

func (t *leaseTrack) keepalive() {
	interval := t.device.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := refreshScript.Run(ctx, t.device.rdb, []string{t.device.key},
				t.token, t.device.ttl.Milliseconds()).Int()
			cancel()

			if err != nil {
				t.device.log.Warn().Err(err).Msg("Lease refresh failed")
				continue
			}
			if n == 0 {
				t.device.log.Warn().Msg("Lease lost")
				t.lostOnce.Do(func() { close(t.lost) })
				return
			}
		}
	}
}
