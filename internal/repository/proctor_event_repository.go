package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ProctorEventRepository handles proctoring event data access.
type ProctorEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctorEventRepository creates a new ProctorEventRepository.
func NewProctorEventRepository(pool *pgxpool.Pool) *ProctorEventRepository {
	return &ProctorEventRepository{pool: pool}
}

// CopyInsert bulk-loads events with the COPY protocol.
func (r *ProctorEventRepository) CopyInsert(ctx context.Context, events []model.ProctorEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.ExamID, e.StudentID, string(e.Kind), string(e.Severity), e.Detail, e.RecordedAt})
	}
	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_events"},
		[]string{"exam_id", "student_id", "kind", "severity", "detail", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
}

// Insert stores a single event.
func (r *ProctorEventRepository) Insert(ctx context.Context, e *model.ProctorEvent) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctor_events (exam_id, student_id, kind, severity, detail, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		e.ExamID, e.StudentID, e.Kind, e.Severity, e.Detail, e.RecordedAt,
	).Scan(&e.ID)
}

// ListRecentByTeacher returns the newest events across a teacher's exams.
func (r *ProctorEventRepository) ListRecentByTeacher(ctx context.Context, teacherID, limit int) ([]model.ActivityItem, error) {
	return r.listRecent(ctx, `e.teacher_id = $1`, teacherID, limit)
}

// ListRecentByExam returns the newest events of one exam.
func (r *ProctorEventRepository) ListRecentByExam(ctx context.Context, examID uuid.UUID, limit int) ([]model.ActivityItem, error) {
	return r.listRecent(ctx, `p.exam_id = $1`, examID, limit)
}

func (r *ProctorEventRepository) listRecent(ctx context.Context, where string, arg any, limit int) ([]model.ActivityItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.exam_id, p.student_id, p.kind, p.severity, p.detail, p.recorded_at,
		        s.name, e.title
		 FROM proctor_events p
		 JOIN exams e ON e.id = p.exam_id
		 JOIN students s ON s.id = p.student_id
		 WHERE `+where+`
		 ORDER BY p.recorded_at DESC, p.id DESC
		 LIMIT `+placeholder(2), arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.ActivityItem{}
	for rows.Next() {
		var it model.ActivityItem
		if err := rows.Scan(&it.ID, &it.ExamID, &it.StudentID, &it.Kind, &it.Severity, &it.Detail,
			&it.RecordedAt, &it.StudentName, &it.ExamTitle); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
