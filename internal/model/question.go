package model

import (
	"github.com/google/uuid"
)

// QuestionKind enumerates how a question is answered.
type QuestionKind string

const (
	QuestionKindMultipleChoice QuestionKind = "MULTIPLE_CHOICE"
	QuestionKindCode           QuestionKind = "CODE"
	QuestionKindText           QuestionKind = "TEXT"
)

// Question represents a single exam question. Options is only set for
// multiple-choice questions.
type Question struct {
	ID       uuid.UUID    `json:"id"`
	ExamID   uuid.UUID    `json:"exam_id"`
	Kind     QuestionKind `json:"kind"`
	Prompt   string       `json:"prompt"`
	Options  []string     `json:"options,omitempty"`
	Points   int          `json:"points"`
	OrderNum int          `json:"order_num"`
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Kind     string   `json:"kind" binding:"required,oneof=MULTIPLE_CHOICE CODE TEXT"`
	Prompt   string   `json:"prompt" binding:"required,nonblank,max=4000"`
	Options  []string `json:"options" binding:"required_if=Kind MULTIPLE_CHOICE,omitempty,min=2,max=10,dive,required,max=500"`
	Points   int      `json:"points" binding:"required,min=1,max=1000"`
	OrderNum int      `json:"order_num" binding:"min=0"`
}
