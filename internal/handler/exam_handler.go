package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/examform"
	"github.com/stemsi/examguard-backend/internal/i18n"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
)

// Notification is a toast shown by the dashboard after a form submit.
type Notification struct {
	Severity examform.Severity `json:"severity"`
	Message  string            `json:"message"`
}

// ExamHandler handles exam management endpoints for teachers.
type ExamHandler struct {
	examService *service.ExamService
	creator     examform.Creator
	log         zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		examService: examService,
		creator:     examService,
		log:         log.With().Str("component", "exam_handler").Logger(),
	}
}

// CreateExam godoc
// POST /api/v1/teacher/exams
// Submits the create-exam form. The exam is always created as scheduled and
// owned by the caller.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	ctx := c.Request.Context()
	var notes []Notification
	notifier := examform.NotifierFunc(func(sev examform.Severity, msg string) {
		notes = append(notes, Notification{Severity: sev, Message: msg})
	})
	messages := examform.Messages{
		Created:       i18n.T(ctx, "ExamCreated"),
		MissingFields: i18n.T(ctx, "ExamFormMissingFields"),
		InvalidNumber: i18n.T(ctx, "ExamFormInvalidNumber"),
		CreateFailed:  i18n.T(ctx, string(response.ErrExamCreateFailed)),
	}

	form := examform.New(h.creator, notifier, claims.UserID, messages)
	form.Open()
	form.SetDraft(examform.Draft{
		Title:    string(req.Title),
		Course:   string(req.Course),
		Duration: string(req.Duration),
		Points:   string(req.Points),
	})

	exam, err := form.Submit(ctx)
	if err != nil {
		var ve *examform.ValidationError
		switch {
		case errors.As(err, &ve):
			metrics.ExamsCreated.WithLabelValues("invalid").Inc()
			response.FailWithData(c, http.StatusBadRequest, response.ErrValidation, ve.Fields,
				gin.H{"notifications": notes})
		default:
			metrics.ExamsCreated.WithLabelValues("failed").Inc()
			h.log.Error().Err(err).Int("teacher_id", claims.UserID).Msg("Create exam failed")
			response.FailWithData(c, http.StatusInternalServerError, response.ErrExamCreateFailed, nil,
				gin.H{"notifications": notes})
		}
		return
	}

	metrics.ExamsCreated.WithLabelValues("created").Inc()
	response.Success(c, http.StatusCreated, gin.H{
		"exam":          exam,
		"notifications": notes,
	})
}

// GetExam godoc
// GET /api/v1/teacher/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"exam": middleware.GetExam(c)})
}

// AddQuestion godoc
// POST /api/v1/teacher/exams/:exam_id/questions
// Appends a question to a scheduled exam.
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	exam := middleware.GetExam(c)

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.examService.AddQuestion(c.Request.Context(), exam.ID, claims.UserID, &req)
	if err != nil {
		status, code := examErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// StartExam godoc
// POST /api/v1/teacher/exams/:exam_id/start
// Moves a scheduled exam to active and warms the paper cache.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	exam := middleware.GetExam(c)

	if err := h.examService.Start(c.Request.Context(), exam.ID, claims.UserID); err != nil {
		status, code := examErrorStatus(err)
		if code == response.ErrInternal {
			h.log.Error().Err(err).Str("exam_id", exam.ID.String()).Msg("Start exam failed")
		}
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_id": exam.ID, "status": model.ExamStatusActive})
}

// CompleteExam godoc
// POST /api/v1/teacher/exams/:exam_id/complete
func (h *ExamHandler) CompleteExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	exam := middleware.GetExam(c)

	if err := h.examService.Complete(c.Request.Context(), exam.ID, claims.UserID); err != nil {
		status, code := examErrorStatus(err)
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam_id": exam.ID, "status": model.ExamStatusCompleted})
}

func examErrorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrNotExamOwner):
		return http.StatusForbidden, response.ErrNotExamOwner
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, service.ErrExamNotScheduled):
		return http.StatusConflict, response.ErrExamNotScheduled
	case errors.Is(err, service.ErrExamNotActive):
		return http.StatusConflict, response.ErrExamNotActive
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
