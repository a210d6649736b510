package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

type cameraReleaser interface {
	ReleaseCamera(ctx context.Context, examID uuid.UUID, studentID int) error
}

type studentSessionResetter interface {
	ResetStudentSession(ctx context.Context, studentID int) error
}

// StudentSessionHandler lets a teacher move a student's attempt to another device.
type StudentSessionHandler struct {
	attempts cameraReleaser
	auth     studentSessionResetter
	log      zerolog.Logger
}

// NewStudentSessionHandler creates a new StudentSessionHandler.
func NewStudentSessionHandler(sessionService *service.ExamSessionService, authService *service.AuthService, log zerolog.Logger) *StudentSessionHandler {
	return &StudentSessionHandler{
		attempts: sessionService,
		auth:     authService,
		log:      log.With().Str("component", "student_session_handler").Logger(),
	}
}

// ResetStudentSession godoc
// POST /api/v1/teacher/exams/:exam_id/students/:student_id/reset-session
// Signs the student out of the current device and frees the camera, so the
// attempt can continue after logging in elsewhere. Answers are kept.
func (h *StudentSessionHandler) ResetStudentSession(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	if err := h.attempts.ReleaseCamera(ctx, examID, studentID); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrAlreadySubmitted):
			response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		default:
			h.log.Error().Err(err).Int("student_id", studentID).Msg("Release camera failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	if err := h.auth.ResetStudentSession(ctx, studentID); err != nil {
		h.log.Error().Err(err).Int("student_id", studentID).Msg("Reset student session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Int("student_id", studentID).Str("exam_id", examID.String()).Msg("Student session reset")
	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}
