package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ErrStatusConflict is returned when a status transition finds the exam in
// a different state than expected.
var ErrStatusConflict = errors.New("exam status changed concurrently")

const examColumns = `id, title, course, duration_minutes, total_points, teacher_id, status, created_at, updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Course, &e.DurationMinutes, &e.TotalPoints,
		&e.TeacherID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByTeacherPaginated retrieves a teacher's exams, newest first, with the
// number of enrolled students and high/medium proctoring events per exam.
func (r *ExamRepository) ListByTeacherPaginated(ctx context.Context, teacherID, limit, offset int) ([]model.ExamSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE teacher_id = $1`, teacherID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT e.id, e.title, e.course, e.duration_minutes, e.total_points, e.teacher_id,
		       e.status, e.created_at, e.updated_at,
		       (SELECT COUNT(*) FROM exam_sessions s WHERE s.exam_id = e.id),
		       (SELECT COUNT(*) FROM proctor_events p
		         WHERE p.exam_id = e.id AND p.severity IN ('high', 'medium'))
		FROM exams e
		WHERE e.teacher_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, teacherID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams := []model.ExamSummary{}
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.Course, &e.DurationMinutes, &e.TotalPoints,
			&e.TeacherID, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.Students, &e.Flagged); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// Create inserts a new exam and fills in its generated fields.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, course, duration_minutes, total_points, teacher_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Course, e.DurationMinutes, e.TotalPoints, e.TeacherID, e.Status,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// TransitionStatus moves an exam from one status to another. It returns
// ErrStatusConflict if the exam is not currently in the from state.
func (r *ExamRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.ExamStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListActive returns all active exams. Used for cache prewarming on startup.
func (r *ExamRepository) ListActive(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1 ORDER BY created_at DESC`,
		model.ExamStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Course, &e.DurationMinutes, &e.TotalPoints,
			&e.TeacherID, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
