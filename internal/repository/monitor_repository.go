package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
)

// MonitorRepository provides data access for the live exam monitor.
// It combines PostgreSQL (roster, flags) and Redis (live answer counts).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// GetRoster returns every student who joined the exam with their session
// status and flagged event count. Answered counts are left at zero.
func (r *MonitorRepository) GetRoster(ctx context.Context, examID uuid.UUID) ([]model.StudentProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT es.student_id, st.name, es.status, es.started_at,
		        (SELECT COUNT(*) FROM proctor_events p
		          WHERE p.exam_id = es.exam_id AND p.student_id = es.student_id
		            AND p.severity IN ('high', 'medium'))
		 FROM exam_sessions es
		 JOIN students st ON st.id = es.student_id
		 WHERE es.exam_id = $1
		 ORDER BY st.name`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roster := []model.StudentProgress{}
	for rows.Next() {
		var p model.StudentProgress
		if err := rows.Scan(&p.StudentID, &p.Name, &p.Status, &p.StartedAt, &p.Flagged); err != nil {
			return nil, err
		}
		roster = append(roster, p)
	}
	return roster, rows.Err()
}

// GetLiveAnsweredCounts reads each student's answer hash length from Redis
// in one pipeline.
func (r *MonitorRepository) GetLiveAnsweredCounts(ctx context.Context, examID uuid.UUID, studentIDs []int) (map[int]int64, error) {
	result := make(map[int]int64, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make(map[int]*redis.IntCmd, len(studentIDs))
	for _, id := range studentIDs {
		cmds[id] = pipe.HLen(ctx, config.CacheKey.StudentAnswersKey(examID.String(), id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for id, cmd := range cmds {
		result[id] = cmd.Val()
	}
	return result, nil
}
