package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports dependency status and queue backlog.
type HealthHandler struct {
	pool      *pgxpool.Pool
	rdb       *redis.Client
	startTime time.Time
}

func NewHealthHandler(pool *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pool: pool, rdb: rdb, startTime: time.Now()}
}

type healthStatus struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Goroutines   int               `json:"goroutines"`
	Dependencies map[string]string `json:"dependencies"`
	Queues       map[string]int64  `json:"queues"`
}

// Health godoc
// GET /health
// Returns 503 when PostgreSQL or Redis is unreachable.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	deps, ok := database.Health(ctx, h.pool, h.rdb)
	st := healthStatus{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Truncate(time.Second).String(),
		Goroutines:   runtime.NumGoroutine(),
		Dependencies: deps,
		Queues:       h.queueDepths(ctx),
	}
	if !ok {
		st.Status = "degraded"
		response.Success(c, http.StatusServiceUnavailable, st)
		return
	}
	response.Success(c, http.StatusOK, st)
}

// queueDepths reads every persistence queue length in one pipeline and
// mirrors them into the queue depth gauge.
func (h *HealthHandler) queueDepths(ctx context.Context) map[string]int64 {
	queues := []string{
		config.WorkerKey.PersistAnswersQueue,
		config.WorkerKey.PersistProctorEventsQueue,
		config.WorkerKey.PersistSubmissionsQueue,
	}

	pipe := h.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(queues))
	for i, q := range queues {
		cmds[i] = pipe.LLen(ctx, q)
	}
	depths := make(map[string]int64, len(queues))
	if _, err := pipe.Exec(ctx); err != nil {
		return depths
	}
	for i, q := range queues {
		n, _ := cmds[i].Result()
		depths[q] = n
		metrics.QueueDepth.WithLabelValues(q).Set(float64(n))
	}
	return depths
}
