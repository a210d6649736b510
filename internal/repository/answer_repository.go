package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository handles persisted student answers.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

const upsertAnswerSQL = `INSERT INTO student_answers (exam_id, student_id, question_id, answer)
	 VALUES ($1, $2, $3, $4)
	 ON CONFLICT (exam_id, student_id, question_id) DO UPDATE
	 SET answer = EXCLUDED.answer, updated_at = NOW()`

// Upsert creates or overwrites a single answer. Last write wins.
func (r *AnswerRepository) Upsert(ctx context.Context, examID uuid.UUID, studentID int, questionID uuid.UUID, answer string) error {
	_, err := r.pool.Exec(ctx, upsertAnswerSQL, examID, studentID, questionID, answer)
	return err
}

// UpsertAll writes a full answer snapshot in one transaction.
func (r *AnswerRepository) UpsertAll(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for qID, answer := range answers {
			batch.Queue(upsertAnswerSQL, examID, studentID, qID, answer)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// ListByExamAndStudent returns a student's persisted answers keyed by question ID.
func (r *AnswerRepository) ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (map[string]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer FROM student_answers WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[string]string)
	for rows.Next() {
		var qID uuid.UUID
		var answer string
		if err := rows.Scan(&qID, &answer); err != nil {
			return nil, err
		}
		answers[qID.String()] = answer
	}
	return answers, rows.Err()
}

