package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/model"
)

// MonitorMessage is the envelope published on an exam's monitor channel and
// forwarded verbatim to SSE subscribers.
type MonitorMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Monitor message types.
const (
	MonitorTypeProctorEvent = "proctor_event"
	MonitorTypeProgress     = "progress"
	MonitorTypeSnapshot     = "snapshot"
)

// ProgressUpdate is published when a student's answered count changes.
type ProgressUpdate struct {
	StudentID int `json:"student_id"`
	Answered  int `json:"answered"`
	Total     int `json:"total"`
}

// ProctorService records proctoring events. Events are queued for the
// proctor event worker and fanned out to live monitors immediately.
type ProctorService struct {
	rdb *redis.Client
	log zerolog.Logger
	now func() time.Time
}

// NewProctorService creates a new ProctorService.
func NewProctorService(rdb *redis.Client, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		rdb: rdb,
		log: log.With().Str("component", "proctor_service").Logger(),
		now: time.Now,
	}
}

// Report queues a proctoring event and publishes it to the exam monitor.
func (s *ProctorService) Report(ctx context.Context, examID uuid.UUID, studentID int, kind model.ProctorEventKind, detail string) error {
	now := s.now()

	record, err := json.Marshal(model.ProctorEventRecord{
		StudentID: studentID,
		ExamID:    examID.String(),
		Kind:      kind,
		Detail:    detail,
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	live, err := json.Marshal(MonitorMessage{
		Type: MonitorTypeProctorEvent,
		Data: model.ProctorEvent{
			ExamID:     examID,
			StudentID:  studentID,
			Kind:       kind,
			Severity:   model.SeverityOf(kind),
			Detail:     detail,
			RecordedAt: now,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal monitor message: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistProctorEventsQueue, record)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), live)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue event: %w", err)
	}

	metrics.ProctorEvents.WithLabelValues(string(kind)).Inc()
	s.log.Debug().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Str("kind", string(kind)).
		Msg("Proctor event reported")
	return nil
}

// PublishProgress announces a student's answered count to live monitors.
// Failures are logged only; progress is advisory.
func (s *ProctorService) PublishProgress(ctx context.Context, examID uuid.UUID, update ProgressUpdate) {
	data, err := json.Marshal(MonitorMessage{Type: MonitorTypeProgress, Data: update})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Publish progress failed")
	}
}

// Subscribe opens a Pub/Sub subscription to an exam's monitor channel.
// The caller must Close it.
func (s *ProctorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}
