package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

// StudentPortalHandler handles student-facing exam endpoints.
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessionService *service.ExamSessionService) *StudentPortalHandler {
	return &StudentPortalHandler{sessionService: sessionService}
}

// JoinExam godoc
// POST /api/v1/student/exams/:exam_id/join
// Creates the attempt on first call; later calls return the same session.
func (h *StudentPortalHandler) JoinExam(c *gin.Context) {
	studentID, examID, ok := studentExamParams(c)
	if !ok {
		return
	}

	session, err := h.sessionService.JoinExam(c.Request.Context(), examID, studentID)
	if err != nil {
		status, code := sessionErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Served from Redis. Only students who joined may download it.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	studentID, examID, ok := studentExamParams(c)
	if !ok {
		return
	}

	paper, err := h.sessionService.GetExamPaper(c.Request.Context(), examID, studentID)
	if err != nil {
		status, code := sessionErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam_id/state
// Returns autosaved answers, position and remaining time for a reconnect.
func (h *StudentPortalHandler) GetExamState(c *gin.Context) {
	studentID, examID, ok := studentExamParams(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetExamState(c.Request.Context(), examID, studentID)
	if err != nil {
		status, code := sessionErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, state)
}

func studentExamParams(c *gin.Context) (int, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, uuid.Nil, false
	}
	return claims.UserID, examID, true
}
