package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusActive    ExamStatus = "active"
	ExamStatusCompleted ExamStatus = "completed"
)

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Course          string     `json:"course"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalPoints     int        `json:"total_points"`
	TeacherID       int        `json:"teacher_id"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateExamRequest mirrors the teacher's "Create Exam" dialog. Every field
// arrives as text; validation and integer parsing happen in examform.
type CreateExamRequest struct {
	Title    FormValue `json:"title"`
	Course   FormValue `json:"course"`
	Duration FormValue `json:"duration"`
	Points   FormValue `json:"points"`
}

// ExamPaper is the Redis-cached payload sent to students.
type ExamPaper struct {
	ExamID    uuid.UUID  `json:"exam_id"`
	Title     string     `json:"title"`
	Course    string     `json:"course"`
	Duration  int        `json:"duration_minutes"`
	Questions []Question `json:"questions"`
}

// ExamSummary is an exam card on the teacher dashboard.
type ExamSummary struct {
	Exam
	Students int `json:"students"`
	Flagged  int `json:"flagged"`
}
