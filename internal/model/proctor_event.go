package model

import (
	"time"

	"github.com/google/uuid"
)

// ProctorEventKind enumerates the proctoring events a client can report.
type ProctorEventKind string

const (
	ProctorEventTabSwitch     ProctorEventKind = "TAB_SWITCH"
	ProctorEventCameraActive  ProctorEventKind = "CAMERA_ACTIVE"
	ProctorEventCameraLost    ProctorEventKind = "CAMERA_LOST"
	ProctorEventExamSubmitted ProctorEventKind = "EXAM_SUBMITTED"
)

// Severity ranks proctoring events on the teacher's activity feed.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityInfo   Severity = "info"
)

// SeverityOf returns the fixed severity of an event kind.
func SeverityOf(kind ProctorEventKind) Severity {
	switch kind {
	case ProctorEventCameraLost:
		return SeverityHigh
	case ProctorEventTabSwitch:
		return SeverityMedium
	default:
		return SeverityInfo
	}
}

// ProctorEvent is a single recorded proctoring event.
type ProctorEvent struct {
	ID         int64            `json:"id"`
	ExamID     uuid.UUID        `json:"exam_id"`
	StudentID  int              `json:"student_id"`
	Kind       ProctorEventKind `json:"kind"`
	Severity   Severity         `json:"severity"`
	Detail     string           `json:"detail,omitempty"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// ActivityItem is a proctoring event joined with display names.
type ActivityItem struct {
	ProctorEvent
	StudentName string `json:"student_name"`
	ExamTitle   string `json:"exam_title"`
}
