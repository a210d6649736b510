package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

type fakeEventStore struct {
	copyErr   error
	failKinds map[model.ProctorEventKind]bool
	copied    []model.ProctorEvent
	inserted  []model.ProctorEvent
}

func (f *fakeEventStore) CopyInsert(_ context.Context, events []model.ProctorEvent) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copied = append(f.copied, events...)
	return int64(len(events)), nil
}

func (f *fakeEventStore) Insert(_ context.Context, e *model.ProctorEvent) error {
	if f.failKinds[e.Kind] {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, *e)
	return nil
}

func eventJSON(t *testing.T, examID string, kind model.ProctorEventKind) string {
	t.Helper()
	b, err := json.Marshal(model.ProctorEventRecord{
		StudentID: 3,
		ExamID:    examID,
		Kind:      kind,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC).UnixMilli(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestProctorEventFlush(t *testing.T) {
	examID := uuid.NewString()
	good := eventJSON(t, examID, model.ProctorEventTabSwitch)
	lost := eventJSON(t, examID, model.ProctorEventCameraLost)
	badUUID := eventJSON(t, "not-a-uuid", model.ProctorEventTabSwitch)

	testCases := []struct {
		name         string
		store        *fakeEventStore
		batch        []string
		wantCopied   int
		wantInserted int
		wantRetry    []string
	}{
		{
			name:       "copy fast path drops malformed rows",
			store:      &fakeEventStore{},
			batch:      []string{good, "{", badUUID, lost},
			wantCopied: 2,
		},
		{
			name:         "row fallback retries only failing rows",
			store:        &fakeEventStore{copyErr: errors.New("copy failed"), failKinds: map[model.ProctorEventKind]bool{model.ProctorEventCameraLost: true}},
			batch:        []string{good, lost},
			wantInserted: 1,
			wantRetry:    []string{lost},
		},
		{
			name:  "nothing valid",
			store: &fakeEventStore{},
			batch: []string{"{", badUUID},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := &ProctorEventWorker{store: tc.store, log: zerolog.Nop()}
			retry := w.flush(context.Background(), tc.batch)

			if len(tc.store.copied) != tc.wantCopied {
				t.Errorf("copied = %d, want %d", len(tc.store.copied), tc.wantCopied)
			}
			if len(tc.store.inserted) != tc.wantInserted {
				t.Errorf("inserted = %d, want %d", len(tc.store.inserted), tc.wantInserted)
			}
			if len(retry) != len(tc.wantRetry) {
				t.Fatalf("retry = %v, want %v", retry, tc.wantRetry)
			}
			for i := range retry {
				if retry[i] != tc.wantRetry[i] {
					t.Errorf("retry[%d] = %s, want %s", i, retry[i], tc.wantRetry[i])
				}
			}
		})
	}
}

func TestDecodeProctorEventSeverity(t *testing.T) {
	examID := uuid.NewString()
	testCases := []struct {
		kind model.ProctorEventKind
		want model.Severity
	}{
		{model.ProctorEventCameraLost, model.SeverityHigh},
		{model.ProctorEventTabSwitch, model.SeverityMedium},
		{model.ProctorEventExamSubmitted, model.SeverityInfo},
	}
	for _, tc := range testCases {
		e, err := decodeProctorEvent(eventJSON(t, examID, tc.kind))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.kind, err)
		}
		if e.Severity != tc.want {
			t.Errorf("%s severity = %s, want %s", tc.kind, e.Severity, tc.want)
		}
		if !e.RecordedAt.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
			t.Errorf("recorded_at = %v", e.RecordedAt)
		}
	}
}

type fakeAnswerStore struct {
	failStudent int
	upserts     map[int]map[uuid.UUID]string
}

func (f *fakeAnswerStore) UpsertAll(_ context.Context, _ uuid.UUID, studentID int, answers map[uuid.UUID]string) error {
	if studentID == f.failStudent {
		return errors.New("deadlock detected")
	}
	if f.upserts == nil {
		f.upserts = make(map[int]map[uuid.UUID]string)
	}
	f.upserts[studentID] = answers
	return nil
}

type fakeSessionStore struct {
	err    error
	marked []repository.SubmittedSession
}

func (f *fakeSessionStore) MarkSubmittedBatch(_ context.Context, batch []repository.SubmittedSession) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.marked = append(f.marked, batch...)
	return int64(len(batch)), nil
}

func submissionJSON(t *testing.T, studentID int, answers map[string]string) string {
	t.Helper()
	b, err := json.Marshal(model.SubmissionRecord{
		StudentID:   studentID,
		ExamID:      uuid.NewString(),
		Answers:     answers,
		SubmittedAt: time.Now().Unix(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestSubmissionFlush(t *testing.T) {
	q := uuid.NewString()
	first := submissionJSON(t, 1, map[string]string{q: "B"})
	second := submissionJSON(t, 2, map[string]string{q: "C"})
	badQuestion := submissionJSON(t, 3, map[string]string{"q1": "A"})

	t.Run("answers written then sessions closed", func(t *testing.T) {
		answers := &fakeAnswerStore{}
		sessions := &fakeSessionStore{}
		w := &SubmissionWorker{answers: answers, sessions: sessions, log: zerolog.Nop()}

		retry := w.flush(context.Background(), []string{first, badQuestion, second})
		if len(retry) != 0 {
			t.Fatalf("retry = %v", retry)
		}
		if len(sessions.marked) != 2 {
			t.Fatalf("marked = %d, want 2", len(sessions.marked))
		}
		if answers.upserts[1][uuid.MustParse(q)] != "B" {
			t.Fatalf("upserts = %v", answers.upserts)
		}
	})

	t.Run("failed upsert is retried alone", func(t *testing.T) {
		sessions := &fakeSessionStore{}
		w := &SubmissionWorker{answers: &fakeAnswerStore{failStudent: 2}, sessions: sessions, log: zerolog.Nop()}

		retry := w.flush(context.Background(), []string{first, second})
		if len(retry) != 1 || retry[0] != second {
			t.Fatalf("retry = %v", retry)
		}
		if len(sessions.marked) != 1 || sessions.marked[0].StudentID != 1 {
			t.Fatalf("marked = %+v", sessions.marked)
		}
	})

	t.Run("session update failure retries the whole batch", func(t *testing.T) {
		w := &SubmissionWorker{
			answers:  &fakeAnswerStore{},
			sessions: &fakeSessionStore{err: errors.New("connection reset")},
			log:      zerolog.Nop(),
		}

		retry := w.flush(context.Background(), []string{first, second})
		if len(retry) != 2 {
			t.Fatalf("retry = %v, want both items", retry)
		}
	})
}
