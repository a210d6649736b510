package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/model"
)

const autosaveRetryDelay = 5 * time.Second

type answerUpserter interface {
	Upsert(ctx context.Context, examID uuid.UUID, studentID int, questionID uuid.UUID, answer string) error
}

// AutosaveWorker consumes the answers queue and upserts each answer as it
// arrives. Answers are small and frequent; batching would only delay the
// database copy a reconnecting student may fall back to.
type AutosaveWorker struct {
	store answerUpserter
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store answerUpserter, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store: store,
		rdb:   rdb,
		queue: config.WorkerKey.PersistAnswersQueue,
		log:   log.With().Str("component", "autosave_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleep(ctx, redisErrorBackoff)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	start := time.Now()
	err = w.persist(ctx, result[1])
	metrics.WorkerBatchDuration.WithLabelValues("answers").Observe(time.Since(start).Seconds())

	var bad *malformedError
	switch {
	case err == nil:
	case errors.As(err, &bad):
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed answer")
	default:
		w.log.Error().Err(err).Msg("Persist error, retrying")
		w.rdb.RPush(context.WithoutCancel(ctx), w.queue, result[1])
		sleep(ctx, autosaveRetryDelay)
	}
}

type malformedError struct{ err error }

func (e *malformedError) Error() string { return "malformed answer record: " + e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func (w *AutosaveWorker) persist(ctx context.Context, raw string) error {
	var rec model.AnswerRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return &malformedError{err}
	}
	examID, err := uuid.Parse(rec.ExamID)
	if err != nil {
		return &malformedError{err}
	}
	questionID, err := uuid.Parse(rec.QuestionID)
	if err != nil {
		return &malformedError{err}
	}
	return w.store.Upsert(ctx, examID, rec.StudentID, questionID, rec.Answer)
}

// drain persists what is left in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		err = w.persist(ctx, raw)
		var bad *malformedError
		if errors.As(err, &bad) {
			continue
		}
		if err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
