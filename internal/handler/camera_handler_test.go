package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/capture"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/i18n"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	ws "github.com/stemsi/examguard-backend/internal/websocket"
)

const cameraStudentID = 7

type fakeAttempts struct {
	submitted atomic.Bool
	err       error
}

func (f *fakeAttempts) VerifyAttempt(_ context.Context, _ uuid.UUID, _ int) error {
	if f.submitted.Load() {
		return service.ErrAlreadySubmitted
	}
	return f.err
}

type cameraFixture struct {
	mr       *miniredis.Miniredis
	attempts *fakeAttempts
	reporter *fakeReporter
	url      string
	leaseKey string
}

func newCameraFixture(t *testing.T, leaseTTL time.Duration) *cameraFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if err := i18n.Init("en", zerolog.Nop()); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), DisableIdentity: true})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &cameraFixture{mr: mr, attempts: &fakeAttempts{}, reporter: &fakeReporter{}}
	h := &CameraHandler{
		rdb:      rdb,
		attempts: f.attempts,
		reporter: f.reporter,
		leaseTTL: leaseTTL,
		log:      zerolog.Nop(),
		upgrader: buildUpgrader(nil),
	}

	r := gin.New()
	r.Use(i18n.Middleware())
	r.GET("/camera/:exam_id", func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: cameraStudentID})
	}, h.CameraStream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	examID := uuid.New()
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/camera/" + examID.String()
	f.leaseKey = config.CacheKey.StudentCameraLeaseKey(examID.String(), cameraStudentID)
	return f
}

// cameraMessage covers both camera status and error frames.
type cameraMessage struct {
	Event    ws.Event `json:"event"`
	Status   string   `json:"status"`
	StreamID string   `json:"stream_id"`
	Code     string   `json:"code"`
}

func (f *cameraFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		t.Fatalf("dial camera: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readCamera(t *testing.T, conn *websocket.Conn) cameraMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg cameraMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read camera frame: %v", err)
	}
	return msg
}

func expectStatus(t *testing.T, conn *websocket.Conn, status string) cameraMessage {
	t.Helper()
	msg := readCamera(t, conn)
	if msg.Event != ws.EventCamera || msg.Status != status {
		t.Fatalf("frame = %+v, want camera %q", msg, status)
	}
	return msg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCameraStream_ActiveOnConnect(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	conn := f.dial(t)

	msg := expectStatus(t, conn, "active")

	holder, err := f.mr.Get(f.leaseKey)
	if err != nil {
		t.Fatalf("lease not taken: %v", err)
	}
	if holder != msg.StreamID {
		t.Errorf("lease holder = %q, want stream %q", holder, msg.StreamID)
	}
	waitFor(t, "CAMERA_ACTIVE report", func() bool {
		return slices.Contains(f.reporter.reported(), model.ProctorEventCameraActive)
	})
}

func TestCameraStream_SecondSocketIsBusy(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	first := f.dial(t)
	expectStatus(t, first, "active")

	second := f.dial(t)
	msg := readCamera(t, second)
	if msg.Event != ws.EventError || msg.Code != string(response.ErrCameraBusy) {
		t.Fatalf("second socket frame = %+v, want %s error", msg, response.ErrCameraBusy)
	}

	// The first socket keeps the camera.
	if err := first.WriteJSON(ws.RequestEnvelope{Action: ws.ActionPing}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if msg := readCamera(t, first); msg.Event != ws.EventPong {
		t.Errorf("first socket frame = %+v, want pong", msg)
	}
	if !f.mr.Exists(f.leaseKey) {
		t.Error("lease released by the busy socket")
	}
}

func TestCameraStream_CloseReportsCameraLost(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	conn := f.dial(t)
	expectStatus(t, conn, "active")

	_ = conn.Close()

	waitFor(t, "lease release", func() bool { return !f.mr.Exists(f.leaseKey) })
	want := []model.ProctorEventKind{model.ProctorEventCameraActive, model.ProctorEventCameraLost}
	if got := f.reporter.reported(); !slices.Equal(got, want) {
		t.Errorf("reported = %v, want %v", got, want)
	}
}

func TestCameraStream_CloseAfterSubmitIsNotFlagged(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	conn := f.dial(t)
	expectStatus(t, conn, "active")

	f.attempts.submitted.Store(true)
	_ = conn.Close()

	waitFor(t, "lease release", func() bool { return !f.mr.Exists(f.leaseKey) })
	want := []model.ProctorEventKind{model.ProctorEventCameraActive}
	if got := f.reporter.reported(); !slices.Equal(got, want) {
		t.Errorf("reported = %v, want %v", got, want)
	}
}

func TestCameraStream_LeaseLossNotifiesAndReports(t *testing.T) {
	f := newCameraFixture(t, 150*time.Millisecond)
	conn := f.dial(t)
	expectStatus(t, conn, "active")

	f.mr.Del(f.leaseKey)

	expectStatus(t, conn, "lost")
	waitFor(t, "CAMERA_LOST report", func() bool {
		return slices.Contains(f.reporter.reported(), model.ProctorEventCameraLost)
	})
}

func TestCameraStream_StopThenStartAgain(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	conn := f.dial(t)
	expectStatus(t, conn, "active")

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionCameraStop}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	expectStatus(t, conn, "inactive")
	if f.mr.Exists(f.leaseKey) {
		t.Fatal("lease still held after stop")
	}

	if err := conn.WriteJSON(ws.RequestEnvelope{Action: ws.ActionCameraStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	expectStatus(t, conn, "active")
	if !f.mr.Exists(f.leaseKey) {
		t.Error("lease not taken after restart")
	}
}

func TestCameraStream_RejectsStudentWithoutAttempt(t *testing.T) {
	f := newCameraFixture(t, time.Minute)
	f.attempts.err = service.ErrSessionNotFound

	conn, resp, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatal("dial succeeded, want handshake refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("handshake response = %v, want 403", resp)
	}
	if f.mr.Exists(f.leaseKey) {
		t.Error("lease taken for a rejected student")
	}
}

type stubDevice struct{ err error }

func (d stubDevice) Acquire(context.Context, capture.Constraints) (capture.Stream, error) {
	return nil, d.err
}

func TestAwaitStart(t *testing.T) {
	t.Run("delivers the result", func(t *testing.T) {
		cc := &cameraConn{
			session:   capture.NewSession(stubDevice{err: capture.ErrDeviceNotFound}, capture.DefaultConstraints, zerolog.Nop()),
			startDone: make(chan error, 1),
		}
		cc.awaitStart(context.Background())

		select {
		case err := <-cc.startDone:
			if !errors.Is(err, capture.ErrDeviceNotFound) {
				t.Errorf("start result = %v, want ErrDeviceNotFound", err)
			}
		default:
			t.Fatal("no start result delivered")
		}
	})

	t.Run("returns once the connection is gone", func(t *testing.T) {
		cc := &cameraConn{
			session: capture.NewSession(stubDevice{err: capture.ErrDeviceNotFound}, capture.DefaultConstraints, zerolog.Nop()),
			// Nobody reads this channel any more.
			startDone: make(chan error),
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan struct{})
		go func() {
			cc.awaitStart(ctx)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("awaitStart blocked after the connection ended")
		}
	})
}
