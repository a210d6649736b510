package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Health pings both stores concurrently. The map holds "up" or the error
// text per dependency; ok is false if any is down.
func Health(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) (map[string]string, bool) {
	var (
		pgErr, redisErr error
		wg              sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pgErr = pool.Ping(ctx)
	}()
	go func() {
		defer wg.Done()
		redisErr = rdb.Ping(ctx).Err()
	}()
	wg.Wait()

	status := map[string]string{"postgres": "up", "redis": "up"}
	ok := true
	if pgErr != nil {
		status["postgres"] = pgErr.Error()
		ok = false
	}
	if redisErr != nil {
		status["redis"] = redisErr.Error()
		ok = false
	}
	return status, ok
}
