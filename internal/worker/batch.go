// Package worker drains the Redis persistence queues into PostgreSQL so
// request paths never wait on a database write.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/metrics"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis

	shutdownFlushTimeout = 5 * time.Second
	requeueBackoff       = 2 * time.Second
	redisErrorBackoff    = 3 * time.Second
)

// flushFunc persists a batch of raw queue items and returns the ones that
// should be retried. Items that can never succeed are logged and dropped.
type flushFunc func(ctx context.Context, batch []string) (retry []string)

// batchConsumer pops items off a Redis list and flushes them when the batch
// is full or BatchTimeout has passed since the last flush.
type batchConsumer struct {
	name  string
	rdb   *redis.Client
	queue string
	flush flushFunc
	log   zerolog.Logger
}

func (b *batchConsumer) run(ctx context.Context) {
	b.log.Info().Str("queue", b.queue).Msg("Worker started")

	buffer := make([]string, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			b.flushBatch(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			b.shutdown(buffer)
			return
		default:
		}

		result, err := b.rdb.BLPop(ctx, PollTimeout, b.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			b.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleep(ctx, redisErrorBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}
		buffer = append(buffer, result[1])
	}
}

func (b *batchConsumer) flushBatch(ctx context.Context, batch []string) {
	start := time.Now()
	retry := b.flush(ctx, batch)
	metrics.WorkerBatchDuration.WithLabelValues(b.name).Observe(time.Since(start).Seconds())

	if len(retry) > 0 {
		b.requeue(ctx, retry)
	}
}

func (b *batchConsumer) requeue(ctx context.Context, items []string) {
	// Requeue must survive the shutdown context.
	ctx = context.WithoutCancel(ctx)

	args := make([]interface{}, len(items))
	for i, item := range items {
		args[i] = item
	}
	if err := b.rdb.RPush(ctx, b.queue, args...).Err(); err != nil {
		b.log.Error().Err(err).Int("count", len(items)).Msg("Failed to requeue items, data lost")
		return
	}
	b.log.Warn().Int("count", len(items)).Msg("Requeued failed items")
	sleep(ctx, requeueBackoff)
}

func (b *batchConsumer) shutdown(buffer []string) {
	b.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing buffer")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer cancel()

	if len(buffer) > 0 {
		b.flushBatch(ctx, buffer)
	}
	b.log.Info().Msg("Worker stopped")
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
