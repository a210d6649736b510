package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

// ContextKeyExam is the Gin context key for the exam loaded by RequireExamOwner.
const ContextKeyExam = "exam"

// RequireExamOwner loads the :exam_id exam and checks the authenticated
// teacher owns it. Must run after RequireTeacherJWT.
func RequireExamOwner(examService *service.ExamService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		examID, err := uuid.Parse(c.Param("exam_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		exam, err := examService.GetOwned(c.Request.Context(), examID, claims.UserID)
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		case errors.Is(err, service.ErrNotExamOwner):
			response.AbortFail(c, http.StatusForbidden, response.ErrNotExamOwner)
			return
		case err != nil:
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyExam, exam)
		c.Next()
	}
}

// GetExam retrieves the exam stored by RequireExamOwner.
func GetExam(c *gin.Context) *model.Exam {
	val, exists := c.Get(ContextKeyExam)
	if !exists {
		return nil
	}
	exam, _ := val.(*model.Exam)
	return exam
}

// NoStore marks responses as uncacheable. Exam state and papers change per
// request and must never be served from a proxy.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
