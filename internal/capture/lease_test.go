package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const testLeaseKey = "camera_lease:exam:1"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), DisableIdentity: true})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func acquireLease(t *testing.T, d *LeaseDevice) *LeaseStream {
	t.Helper()
	stream, err := d.Acquire(context.Background(), DefaultConstraints)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ls, ok := stream.(*LeaseStream)
	if !ok {
		t.Fatalf("Acquire returned %T, want *LeaseStream", stream)
	}
	t.Cleanup(func() { release(ls) })
	return ls
}

func TestLeaseDevice_AcquireStoresToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())

	ls := acquireLease(t, d)

	got, err := mr.Get(testLeaseKey)
	if err != nil {
		t.Fatalf("lease key missing: %v", err)
	}
	if got != ls.ID() {
		t.Errorf("lease value = %q, want stream id %q", got, ls.ID())
	}
	if ttl := mr.TTL(testLeaseKey); ttl != time.Minute {
		t.Errorf("lease ttl = %v, want %v", ttl, time.Minute)
	}
	if tracks := ls.Tracks(); len(tracks) != 1 || tracks[0].Kind() != "video" {
		t.Errorf("tracks = %v, want one video track", tracks)
	}
}

func TestLeaseDevice_SecondAcquireIsBusy(t *testing.T) {
	_, rdb := newTestRedis(t)
	first := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())
	second := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())

	acquireLease(t, first)

	if _, err := second.Acquire(context.Background(), DefaultConstraints); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Acquire error = %v, want ErrDeviceBusy", err)
	}
}

func TestLeaseDevice_RejectsUnsupportedConstraints(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())

	tests := []struct {
		name string
		c    Constraints
	}{
		{"audio", Constraints{Width: 640, Height: 480, Audio: true}},
		{"zero width", Constraints{Height: 480}},
		{"negative height", Constraints{Width: 640, Height: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Acquire(context.Background(), tt.c); !errors.Is(err, ErrUnsupportedConstraints) {
				t.Errorf("Acquire error = %v, want ErrUnsupportedConstraints", err)
			}
		})
	}
	if mr.Exists(testLeaseKey) {
		t.Error("rejected request must not take the lease")
	}
}

func TestLeaseDevice_StopReleasesAndAllowsReacquire(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())

	ls := acquireLease(t, d)
	release(ls)
	release(ls)

	if mr.Exists(testLeaseKey) {
		t.Fatal("lease key still present after Stop")
	}
	acquireLease(t, d)
}

func TestLeaseDevice_StopKeepsLeaseTakenByAnotherHolder(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop())

	ls := acquireLease(t, d)
	if err := mr.Set(testLeaseKey, "other-holder"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	release(ls)

	got, err := mr.Get(testLeaseKey)
	if err != nil {
		t.Fatalf("lease of the other holder was deleted: %v", err)
	}
	if got != "other-holder" {
		t.Errorf("lease value = %q, want other-holder", got)
	}
}

func TestLeaseDevice_KeepaliveRefreshesTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	const ttl = 150 * time.Millisecond
	d := NewLeaseDevice(rdb, testLeaseKey, ttl, zerolog.Nop())

	acquireLease(t, d)
	mr.SetTTL(testLeaseKey, time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for mr.TTL(testLeaseKey) != ttl {
		if time.Now().After(deadline) {
			t.Fatalf("lease ttl = %v, want refreshed to %v", mr.TTL(testLeaseKey), ttl)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLeaseDevice_LostWhenLeaseDisappears(t *testing.T) {
	tests := []struct {
		name   string
		remove func(mr *miniredis.Miniredis)
	}{
		{"expired", func(mr *miniredis.Miniredis) { mr.Del(testLeaseKey) }},
		{"taken over", func(mr *miniredis.Miniredis) { _ = mr.Set(testLeaseKey, "other-holder") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, rdb := newTestRedis(t)
			d := NewLeaseDevice(rdb, testLeaseKey, 150*time.Millisecond, zerolog.Nop())

			ls := acquireLease(t, d)
			select {
			case <-ls.Lost():
				t.Fatal("Lost closed while the lease was held")
			default:
			}

			tt.remove(mr)

			select {
			case <-ls.Lost():
			case <-time.After(2 * time.Second):
				t.Fatal("Lost not closed after the lease disappeared")
			}
		})
	}
}

func TestLeaseDevice_StoppedTrackIsNeverLost(t *testing.T) {
	mr, rdb := newTestRedis(t)
	d := NewLeaseDevice(rdb, testLeaseKey, 90*time.Millisecond, zerolog.Nop())

	ls := acquireLease(t, d)
	release(ls)
	_ = mr.Set(testLeaseKey, "other-holder")

	select {
	case <-ls.Lost():
		t.Fatal("Lost closed after the track was stopped")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSession_WithLeaseDevice(t *testing.T) {
	mr, rdb := newTestRedis(t)
	first := NewSession(NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop()), DefaultConstraints, zerolog.Nop())
	second := NewSession(NewLeaseDevice(rdb, testLeaseKey, time.Minute, zerolog.Nop()), DefaultConstraints, zerolog.Nop())
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second Start error = %v, want ErrDeviceBusy", err)
	}
	if second.Status() != StatusInactive {
		t.Errorf("busy session status = %q, want inactive", second.Status())
	}

	first.Stop()
	if mr.Exists(testLeaseKey) {
		t.Fatal("lease key still present after Session.Stop")
	}

	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}
