package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
)

// eventStore is the subset of ProctorEventRepository the worker needs.
type eventStore interface {
	CopyInsert(ctx context.Context, events []model.ProctorEvent) (int64, error)
	Insert(ctx context.Context, e *model.ProctorEvent) error
}

// ProctorEventWorker copies queued proctoring events into proctor_events.
type ProctorEventWorker struct {
	store    eventStore
	consumer *batchConsumer
	log      zerolog.Logger
}

func NewProctorEventWorker(store eventStore, rdb *redis.Client, log zerolog.Logger) *ProctorEventWorker {
	w := &ProctorEventWorker{
		store: store,
		log:   log.With().Str("component", "proctor_event_worker").Logger(),
	}
	w.consumer = &batchConsumer{
		name:  "proctor_events",
		rdb:   rdb,
		queue: config.WorkerKey.PersistProctorEventsQueue,
		flush: w.flush,
		log:   w.log,
	}
	return w
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *ProctorEventWorker) Start(ctx context.Context) {
	w.consumer.run(ctx)
}

// flush tries COPY first, then row by row so one bad row does not sink the
// batch. Only rows that fail to insert are retried.
func (w *ProctorEventWorker) flush(ctx context.Context, batch []string) []string {
	events := make([]model.ProctorEvent, 0, len(batch))
	raws := make([]string, 0, len(batch))
	for _, raw := range batch {
		e, err := decodeProctorEvent(raw)
		if err != nil {
			w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed proctor event")
			continue
		}
		events = append(events, e)
		raws = append(raws, raw)
	}
	if len(events) == 0 {
		return nil
	}

	_, err := w.store.CopyInsert(ctx, events)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(events)).Msg("Bulk copy failed, inserting row by row")

	var retry []string
	for i := range events {
		if err := w.store.Insert(ctx, &events[i]); err != nil {
			w.log.Error().Err(err).Int("student_id", events[i].StudentID).Msg("Insert failed")
			retry = append(retry, raws[i])
		}
	}
	return retry
}

func decodeProctorEvent(raw string) (model.ProctorEvent, error) {
	var rec model.ProctorEventRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return model.ProctorEvent{}, err
	}
	examID, err := uuid.Parse(rec.ExamID)
	if err != nil {
		return model.ProctorEvent{}, err
	}
	return model.ProctorEvent{
		ExamID:     examID,
		StudentID:  rec.StudentID,
		Kind:       rec.Kind,
		Severity:   model.SeverityOf(rec.Kind),
		Detail:     rec.Detail,
		RecordedAt: time.UnixMilli(rec.Timestamp),
	}, nil
}
