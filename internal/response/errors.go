package response

import (
	"context"

	"github.com/stemsi/examguard-backend/internal/i18n"
)

// ErrCode is a typed error code enum for consistent API error identification.
// Each code doubles as the message ID in the locale bundles.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotActive     ErrCode = "EXAM_NOT_ACTIVE"
	ErrExamNotScheduled  ErrCode = "EXAM_NOT_SCHEDULED"
	ErrNotExamOwner      ErrCode = "NOT_EXAM_OWNER"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrExamCreateFailed  ErrCode = "EXAM_CREATE_FAILED"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrNotOnLastQuestion ErrCode = "NOT_ON_LAST_QUESTION"
	ErrIndexOutOfRange   ErrCode = "INDEX_OUT_OF_RANGE"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrCameraBusy        ErrCode = "CAMERA_BUSY"
	ErrCameraUnavailable ErrCode = "CAMERA_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
	errUnknown  ErrCode = "UNKNOWN_ERROR"
)

// GetMessage returns the localized, human-readable message for a given error code.
func GetMessage(ctx context.Context, code ErrCode) string {
	msg := i18n.T(ctx, string(code))
	if msg == string(code) {
		return i18n.T(ctx, string(errUnknown))
	}
	return msg
}
