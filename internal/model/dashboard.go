package model

import "time"

// DashboardStats are the four counters at the top of the teacher dashboard.
type DashboardStats struct {
	ActiveExams    int `json:"active_exams"`
	TotalStudents  int `json:"total_students"`
	FlaggedEvents  int `json:"flagged_events"`
	CompletedExams int `json:"completed_exams"`
}

// ProctoringSummary is the analytics view of the teacher's sessions. A session
// is clean when it recorded no high or medium severity events.
type ProctoringSummary struct {
	TotalSessions    int     `json:"total_sessions"`
	CleanSessions    int     `json:"clean_sessions"`
	CleanSessionRate float64 `json:"clean_session_rate"`
	TabSwitches      int     `json:"tab_switches"`
	CameraLosses     int     `json:"camera_losses"`
}

// PageQuery holds the common pagination query parameters.
type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// Normalize applies defaults to zero values.
func (q *PageQuery) Normalize() {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}
}

// ActivityQuery bounds the recent activity feed.
type ActivityQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// StudentProgress is one row of the live exam monitor.
type StudentProgress struct {
	StudentID int           `json:"student_id"`
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Answered  int64         `json:"answered"`
	Flagged   int           `json:"flagged"`
}
