package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	ws "github.com/stemsi/examguard-backend/internal/websocket"
)

const actionTimeout = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student exam WebSocket.
type WSHandler struct {
	sessionService *service.ExamSessionService
	proctor        *service.ProctorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.ExamSessionService, proctor *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		proctor:        proctor,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Upgrades to WebSocket and drives the student's exam screen: navigation,
// answers, tab-switch reports and the final submit.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
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

	// Resolve the attempt before upgrading so failures get a proper HTTP status.
	nav, _, err := h.sessionService.OpenNavigator(reqCtx, examID, studentID)
	if err != nil {
		status, code := sessionErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Open navigator failed")
		}
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.ActiveExamStreams.Inc()
	defer metrics.ActiveExamStreams.Dec()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("exam_id", examID.String()).
		Logger()

	stream := &examStream{
		examID:    examID,
		studentID: studentID,
		nav:       nav,
		store:     h.sessionService,
		reporter:  h.proctor,
		log:       wsLog,
	}

	var remaining *float64
	if st, err := h.sessionService.GetExamState(reqCtx, examID, studentID); err == nil {
		remaining = &st.RemainingTime
	}
	if err := ws.WriteTyped(conn, stream.state(remaining)); err != nil {
		return
	}

	wsLog.Info().Msg("Student connected")

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		// Each action gets its own context so a slow Redis call cannot
		// outlive the connection.
		actionCtx, cancel := context.WithTimeout(reqCtx, actionTimeout)
		reply, done, err := stream.handle(actionCtx, raw)
		cancel()

		if err != nil {
			code := streamErrorCode(err)
			if code == response.ErrInternal {
				wsLog.Error().Err(err).Msg("Action failed")
			}
			ws.WriteError(conn, string(code), response.GetMessage(reqCtx, code))
			continue
		}
		if reply != nil {
			if err := ws.WriteTyped(conn, reply); err != nil {
				return
			}
		}
		if done {
			ws.CloseNormal(conn, "submitted")
			return
		}
	}
}

// sessionErrorStatus maps attempt errors to HTTP status and API code.
func sessionErrorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrExamNotActive):
		return http.StatusConflict, response.ErrExamNotActive
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusConflict, response.ErrNoQuestions
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
