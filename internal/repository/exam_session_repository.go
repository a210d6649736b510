package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// GetByExamAndStudent retrieves a session for a specific exam-student combination.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, submitted_at, status
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.SubmittedAt, &s.Status)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new exam session (student joins the exam). It returns
// pgx.ErrNoRows when a concurrent join already created the row.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at, status`,
		s.ExamID, s.StudentID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt, &s.Status)
}

// SubmittedSession identifies one session to close in a batch.
type SubmittedSession struct {
	ExamID      uuid.UUID
	StudentID   int
	SubmittedAt time.Time
}

// MarkSubmittedBatch closes many sessions with a single UNNEST update.
// Already-submitted sessions keep their original timestamp.
func (r *ExamSessionRepository) MarkSubmittedBatch(ctx context.Context, batch []SubmittedSession) (int64, error) {
	examIDs := make([]uuid.UUID, len(batch))
	studentIDs := make([]int32, len(batch))
	times := make([]time.Time, len(batch))
	for i, s := range batch {
		examIDs[i] = s.ExamID
		studentIDs[i] = int32(s.StudentID)
		times[i] = s.SubmittedAt
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions AS es
		 SET status = $1, submitted_at = data.submitted_at
		 FROM (
		     SELECT UNNEST($2::uuid[]) AS exam_id,
		            UNNEST($3::int4[]) AS student_id,
		            UNNEST($4::timestamptz[]) AS submitted_at
		 ) AS data
		 WHERE es.exam_id = data.exam_id
		   AND es.student_id = data.student_id
		   AND es.status <> $1`,
		model.SessionStatusSubmitted, examIDs, studentIDs, times,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
