package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitted  SessionStatus = "SUBMITTED"
)

// ExamSession represents a student's exam attempt.
type ExamSession struct {
	ID          uuid.UUID     `json:"id"`
	ExamID      uuid.UUID     `json:"exam_id"`
	StudentID   int           `json:"student_id"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Status      SessionStatus `json:"status"`
}

// ExamSessionState is what a reconnecting student needs to rebuild the
// exam screen: position, autosaved answers and time left.
type ExamSessionState struct {
	ExamID        uuid.UUID         `json:"exam_id"`
	StudentID     int               `json:"student_id"`
	CurrentIndex  int               `json:"current_index"`
	Answers       map[string]string `json:"answers"`
	RemainingTime float64           `json:"remaining_time"`
}
