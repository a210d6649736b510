package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/examguard-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for a given exam, ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, kind, prompt, options, points, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Kind, &q.Prompt, &q.Options, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question. A zero OrderNum appends it after the
// exam's current last question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, kind, prompt, options, points, order_num)
		 VALUES ($1, $2, $3, $4, $5,
		         CASE WHEN $6 > 0 THEN $6
		              ELSE (SELECT COALESCE(MAX(order_num), 0) + 1 FROM questions WHERE exam_id = $1) END)
		 RETURNING id, order_num`,
		q.ExamID, q.Kind, q.Prompt, q.Options, q.Points, q.OrderNum,
	).Scan(&q.ID, &q.OrderNum)
}

// CreateBatch inserts many questions in one round trip.
func (r *QuestionRepository) CreateBatch(ctx context.Context, questions []model.Question) error {
	batch := &pgx.Batch{}
	for i := range questions {
		q := &questions[i]
		batch.Queue(
			`INSERT INTO questions (exam_id, kind, prompt, options, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			q.ExamID, q.Kind, q.Prompt, q.Options, q.Points, q.OrderNum,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID)
		})
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// MaxOrderNum returns the highest order_num in an exam, or 0 when it has no questions.
func (r *QuestionRepository) MaxOrderNum(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_num), 0) FROM questions WHERE exam_id = $1`, examID,
	).Scan(&n)
	return n, err
}
