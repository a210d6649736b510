package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examguard-backend/internal/model"
)

// DashboardRepository handles teacher dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetStats retrieves the headline counters for one teacher's exams.
// Students are counted once even if they sit several of the teacher's exams.
func (r *DashboardRepository) GetStats(ctx context.Context, teacherID int) (*model.DashboardStats, error) {
	st := &model.DashboardStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM exams WHERE teacher_id = $1 AND status = $2),
			(SELECT COUNT(DISTINCT s.student_id)
			   FROM exam_sessions s JOIN exams e ON e.id = s.exam_id
			  WHERE e.teacher_id = $1),
			(SELECT COUNT(*)
			   FROM proctor_events p JOIN exams e ON e.id = p.exam_id
			  WHERE e.teacher_id = $1 AND p.severity IN ('high', 'medium')),
			(SELECT COUNT(*) FROM exams WHERE teacher_id = $1 AND status = $3)`,
		teacherID, model.ExamStatusActive, model.ExamStatusCompleted,
	).Scan(&st.ActiveExams, &st.TotalStudents, &st.FlaggedEvents, &st.CompletedExams)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetProctoringSummary counts the teacher's sessions, how many of them stayed
// clean, and the tab switch and camera loss events behind the rest.
// The clean rate is left for the caller.
func (r *DashboardRepository) GetProctoringSummary(ctx context.Context, teacherID int) (*model.ProctoringSummary, error) {
	sum := &model.ProctoringSummary{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*)
			   FROM exam_sessions s JOIN exams e ON e.id = s.exam_id
			  WHERE e.teacher_id = $1),
			(SELECT COUNT(*)
			   FROM exam_sessions s JOIN exams e ON e.id = s.exam_id
			  WHERE e.teacher_id = $1
			    AND NOT EXISTS (
			        SELECT 1 FROM proctor_events p
			         WHERE p.exam_id = s.exam_id AND p.student_id = s.student_id
			           AND p.severity IN ('high', 'medium'))),
			(SELECT COUNT(*)
			   FROM proctor_events p JOIN exams e ON e.id = p.exam_id
			  WHERE e.teacher_id = $1 AND p.kind = $2),
			(SELECT COUNT(*)
			   FROM proctor_events p JOIN exams e ON e.id = p.exam_id
			  WHERE e.teacher_id = $1 AND p.kind = $3)`,
		teacherID, string(model.ProctorEventTabSwitch), string(model.ProctorEventCameraLost),
	).Scan(&sum.TotalSessions, &sum.CleanSessions, &sum.TabSwitches, &sum.CameraLosses)
	if err != nil {
		return nil, err
	}
	return sum, nil
}
