package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

type answerStore interface {
	UpsertAll(ctx context.Context, examID uuid.UUID, studentID int, answers map[uuid.UUID]string) error
}

type sessionStore interface {
	MarkSubmittedBatch(ctx context.Context, batch []repository.SubmittedSession) (int64, error)
}

// SubmissionWorker writes final answer snapshots and closes the sessions of
// submitted attempts. No scoring happens here.
type SubmissionWorker struct {
	answers  answerStore
	sessions sessionStore
	consumer *batchConsumer
	log      zerolog.Logger
}

func NewSubmissionWorker(answers answerStore, sessions sessionStore, rdb *redis.Client, log zerolog.Logger) *SubmissionWorker {
	w := &SubmissionWorker{
		answers:  answers,
		sessions: sessions,
		log:      log.With().Str("component", "submission_worker").Logger(),
	}
	w.consumer = &batchConsumer{
		name:  "submissions",
		rdb:   rdb,
		queue: config.WorkerKey.PersistSubmissionsQueue,
		flush: w.flush,
		log:   w.log,
	}
	return w
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.consumer.run(ctx)
}

type submission struct {
	session repository.SubmittedSession
	answers map[uuid.UUID]string
}

// flush upserts each snapshot, then closes every flushed session with one
// UPDATE. Both steps are idempotent, so a retried item is safe.
func (w *SubmissionWorker) flush(ctx context.Context, batch []string) []string {
	var (
		retry  []string
		closed []repository.SubmittedSession
		raws   []string
	)

	for _, raw := range batch {
		sub, err := decodeSubmission(raw)
		if err != nil {
			w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed submission")
			continue
		}
		if err := w.answers.UpsertAll(ctx, sub.session.ExamID, sub.session.StudentID, sub.answers); err != nil {
			w.log.Error().Err(err).
				Int("student_id", sub.session.StudentID).
				Str("exam_id", sub.session.ExamID.String()).
				Msg("Persist final answers failed")
			retry = append(retry, raw)
			continue
		}
		closed = append(closed, sub.session)
		raws = append(raws, raw)
	}

	if len(closed) == 0 {
		return retry
	}

	n, err := w.sessions.MarkSubmittedBatch(ctx, closed)
	if err != nil {
		w.log.Error().Err(err).Int("count", len(closed)).Msg("Mark sessions submitted failed")
		return append(retry, raws...)
	}
	w.log.Info().Int64("sessions", n).Int("batch", len(closed)).Msg("Submissions persisted")
	return retry
}

func decodeSubmission(raw string) (*submission, error) {
	var rec model.SubmissionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	examID, err := uuid.Parse(rec.ExamID)
	if err != nil {
		return nil, err
	}

	answers := make(map[uuid.UUID]string, len(rec.Answers))
	for qid, ans := range rec.Answers {
		id, err := uuid.Parse(qid)
		if err != nil {
			return nil, fmt.Errorf("question id %q: %w", qid, err)
		}
		answers[id] = ans
	}

	return &submission{
		session: repository.SubmittedSession{
			ExamID:      examID,
			StudentID:   rec.StudentID,
			SubmittedAt: time.Unix(rec.SubmittedAt, 0),
		},
		answers: answers,
	}, nil
}
