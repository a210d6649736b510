package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/capture"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	ws "github.com/stemsi/examguard-backend/internal/websocket"
)

const reportTimeout = 3 * time.Second

// attemptVerifier is the part of ExamSessionService the camera needs.
type attemptVerifier interface {
	VerifyAttempt(ctx context.Context, examID uuid.UUID, studentID int) error
}

// CameraHandler owns the proctoring camera of a student's attempt for the
// lifetime of one WebSocket connection.
type CameraHandler struct {
	rdb      *redis.Client
	attempts attemptVerifier
	reporter eventReporter
	leaseTTL time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewCameraHandler creates a new CameraHandler.
func NewCameraHandler(
	rdb *redis.Client,
	sessionService *service.ExamSessionService,
	proctor *service.ProctorService,
	cfg *config.Config,
	log zerolog.Logger,
) *CameraHandler {
	return &CameraHandler{
		rdb:      rdb,
		attempts: sessionService,
		reporter: proctor,
		leaseTTL: cfg.CameraLeaseTTL,
		log:      log.With().Str("component", "camera_handler").Logger(),
		upgrader: buildUpgrader(cfg.AllowedOrigins),
	}
}

// CameraStream godoc
// WS /ws/v1/student/exams/:exam_id/camera
// Starts the capture session on connect and keeps it until the socket
// closes or the client sends "stop".
func (h *CameraHandler) CameraStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	studentID := claims.UserID
	reqCtx := c.Request.Context()

	if err := h.attempts.VerifyAttempt(reqCtx, examID, studentID); err != nil {
		status, code := sessionErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Pending starts and the reader give up once the connection is done.
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()

	camLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	leaseKey := config.CacheKey.StudentCameraLeaseKey(examID.String(), studentID)
	device := capture.NewLeaseDevice(h.rdb, leaseKey, h.leaseTTL, camLog)
	session := capture.NewSession(device, capture.DefaultConstraints, camLog)

	cam := &cameraConn{
		h:         h,
		conn:      conn,
		session:   session,
		examID:    examID,
		studentID: studentID,
		log:       camLog,
		startDone: make(chan error, 1),
	}
	// Stop also covers a Start still in flight when the socket drops.
	defer cam.stop()

	cam.run(ctx)
}

// cameraConn is the per-connection state. Only run's goroutine writes to conn.
type cameraConn struct {
	h         *CameraHandler
	conn      *websocket.Conn
	session   *capture.Session
	examID    uuid.UUID
	studentID int
	log       zerolog.Logger

	startDone chan error
	lost      <-chan struct{}
	active    bool
}

func (cc *cameraConn) run(ctx context.Context) {
	msgs := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			raw, err := ws.ReadMessage(cc.conn)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	cc.start(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-cc.startDone:
			cc.onStarted(ctx, err)

		case <-cc.lost:
			cc.stop()
			cc.report(ctx, model.ProctorEventCameraLost, "camera lease expired")
			cc.write(ws.CameraResponse{Event: ws.EventCamera, Status: "lost"})

		case raw := <-msgs:
			cc.onMessage(ctx, raw)

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cc.log.Warn().Err(err).Msg("Unexpected close")
			}
			if cc.active && !cc.submitted(ctx) {
				cc.report(ctx, model.ProctorEventCameraLost, "camera connection closed")
			}
			return
		}
	}
}

func (cc *cameraConn) start(ctx context.Context) {
	go cc.awaitStart(ctx)
}

// awaitStart runs Start and hands the result to run, or drops it when the
// connection is already gone.
func (cc *cameraConn) awaitStart(ctx context.Context) {
	err := cc.session.Start(ctx)
	select {
	case cc.startDone <- err:
	case <-ctx.Done():
	}
}

// stop releases the camera. Safe to call in any state.
func (cc *cameraConn) stop() {
	cc.session.Stop()
	cc.lost = nil
	if cc.active {
		cc.active = false
		metrics.ActiveCameraSessions.Dec()
	}
}

func (cc *cameraConn) onStarted(ctx context.Context, err error) {
	switch {
	case err == nil:
		cc.active = true
		metrics.ActiveCameraSessions.Inc()
		stream := cc.session.Stream()
		if ls, ok := stream.(*capture.LeaseStream); ok {
			cc.lost = ls.Lost()
		}
		cc.report(ctx, model.ProctorEventCameraActive, "")
		cc.write(ws.CameraResponse{
			Event:    ws.EventCamera,
			Status:   "active",
			StreamID: stream.ID(),
			Width:    capture.DefaultConstraints.Width,
			Height:   capture.DefaultConstraints.Height,
		})

	case errors.Is(err, capture.ErrCancelled):
		metrics.CameraStartFailures.WithLabelValues("cancelled").Inc()
		cc.write(ws.CameraResponse{Event: ws.EventCamera, Status: "inactive"})

	case errors.Is(err, capture.ErrDeviceBusy):
		metrics.CameraStartFailures.WithLabelValues("busy").Inc()
		cc.writeError(ctx, response.ErrCameraBusy)

	default:
		metrics.CameraStartFailures.WithLabelValues("error").Inc()
		cc.log.Error().Err(err).Msg("Camera start failed")
		cc.writeError(ctx, response.ErrCameraUnavailable)
	}
}

func (cc *cameraConn) onMessage(ctx context.Context, raw []byte) {
	var env ws.RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		cc.writeError(ctx, response.ErrInvalidPayload)
		return
	}

	switch env.Action {
	case ws.ActionCameraStart:
		// No automatic retry: the client asks again once inactive.
		if cc.session.Status() != capture.StatusInactive {
			return
		}
		cc.start(ctx)

	case ws.ActionCameraStop:
		wasActive := cc.active
		cc.stop()
		// A pending start reports "inactive" itself once it is cancelled.
		if wasActive {
			cc.write(ws.CameraResponse{Event: ws.EventCamera, Status: "inactive"})
		}

	case ws.ActionPing:
		cc.write(ws.PongResponse{Event: ws.EventPong})

	default:
		cc.writeError(ctx, response.ErrInvalidPayload)
	}
}

// submitted reports whether the attempt ended, so a camera closed after
// submitting is not flagged.
func (cc *cameraConn) submitted(ctx context.Context) bool {
	err := cc.h.attempts.VerifyAttempt(context.WithoutCancel(ctx), cc.examID, cc.studentID)
	return errors.Is(err, service.ErrAlreadySubmitted)
}

func (cc *cameraConn) report(ctx context.Context, kind model.ProctorEventKind, detail string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := cc.h.reporter.Report(rctx, cc.examID, cc.studentID, kind, detail); err != nil {
		cc.log.Warn().Err(err).Str("kind", string(kind)).Msg("Report camera event failed")
	}
}

func (cc *cameraConn) write(v interface{}) {
	if err := ws.WriteTyped(cc.conn, v); err != nil {
		cc.log.Debug().Err(err).Msg("Write failed")
	}
}

func (cc *cameraConn) writeError(ctx context.Context, code response.ErrCode) {
	_ = ws.WriteError(cc.conn, string(code), response.GetMessage(ctx, code))
}
