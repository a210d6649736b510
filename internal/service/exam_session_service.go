package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/navigator"
	"github.com/stemsi/examguard-backend/internal/repository"
)

var (
	ErrSessionNotFound  = errors.New("student has not joined this exam")
	ErrAlreadySubmitted = errors.New("exam session already submitted")
)

// ExamSessionService handles a student's attempt: joining, restoring state
// and recording the submission.
type ExamSessionService struct {
	sessionRepo *repository.ExamSessionRepository
	answerRepo  *repository.AnswerRepository
	examService *ExamService
	proctor     *ProctorService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessionRepo *repository.ExamSessionRepository,
	answerRepo *repository.AnswerRepository,
	examService *ExamService,
	proctor *ProctorService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		examService: examService,
		proctor:     proctor,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_session_service").Logger(),
	}
}

// JoinExam creates the student's session for an active exam. Joining again
// returns the existing session.
func (s *ExamSessionService) JoinExam(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	exam, err := s.examService.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	// Idempotent rejoin: make sure Redis still has the start time.
	if existing != nil {
		_ = s.rdb.Set(ctx, config.CacheKey.StudentExamSessionStartKey(examID.String(), studentID), existing.StartedAt.Unix(), 0)
		return existing, nil
	}

	if exam.Status != model.ExamStatusActive {
		return nil, ErrExamNotActive
	}

	session := &model.ExamSession{ExamID: examID, StudentID: studentID}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent join detected
			existing, fetchErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent join detected, but fetch failed: %w", fetchErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	startKey := config.CacheKey.StudentExamSessionStartKey(examID.String(), studentID)
	if err := s.rdb.Set(ctx, startKey, session.StartedAt.Unix(), 0).Err(); err != nil {
		// GetExamState falls back to PostgreSQL.
		s.log.Warn().Err(err).Msg("Failed to cache start time")
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Student joined exam")
	return session, nil
}

// GetExamPaper returns the questions of an active exam the student joined.
func (s *ExamSessionService) GetExamPaper(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamPaper, error) {
	if _, err := s.activeSession(ctx, examID, studentID); err != nil {
		return nil, err
	}
	return s.examService.GetPaper(ctx, examID)
}

// GetExamState retrieves what a reconnecting student needs: position,
// autosaved answers and remaining time.
func (s *ExamSessionService) GetExamState(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSessionState, error) {
	paper, err := s.examService.GetPaper(ctx, examID)
	if err != nil {
		return nil, err
	}

	answers, err := s.loadAnswers(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	current, err := s.loadCurrentIndex(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	startTime, err := s.loadStartTime(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	endTime := startTime.Add(time.Duration(paper.Duration) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	return &model.ExamSessionState{
		ExamID:        examID,
		StudentID:     studentID,
		CurrentIndex:  current,
		Answers:       answers,
		RemainingTime: remaining.Seconds(),
	}, nil
}

// OpenNavigator rebuilds the student's exam screen state from the cached
// paper and their saved position and answers.
func (s *ExamSessionService) OpenNavigator(ctx context.Context, examID uuid.UUID, studentID int) (*navigator.Navigator, *model.ExamPaper, error) {
	if _, err := s.activeSession(ctx, examID, studentID); err != nil {
		return nil, nil, err
	}

	paper, err := s.examService.GetPaper(ctx, examID)
	if err != nil {
		return nil, nil, err
	}

	nav, err := navigator.New(paper.Questions)
	if err != nil {
		return nil, nil, err
	}

	raw, err := s.loadAnswers(ctx, examID, studentID)
	if err != nil {
		return nil, nil, err
	}
	answers := make(map[uuid.UUID]string, len(raw))
	for k, v := range raw {
		if id, err := uuid.Parse(k); err == nil {
			answers[id] = v
		}
	}

	current, err := s.loadCurrentIndex(ctx, examID, studentID)
	if err != nil {
		return nil, nil, err
	}

	nav.Restore(current, answers)
	return nav, paper, nil
}

// SaveIndex stores which question the student has on screen.
func (s *ExamSessionService) SaveIndex(ctx context.Context, examID uuid.UUID, studentID, index int) error {
	key := config.CacheKey.StudentCurrentIndexKey(examID.String(), studentID)
	if err := s.rdb.Set(ctx, key, index, 0).Err(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// SaveAnswer stores an answer in Redis and queues it for PostgreSQL.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, examID uuid.UUID, studentID int, questionID uuid.UUID, value string) error {
	payload, err := json.Marshal(model.AnswerRecord{
		StudentID:  studentID,
		ExamID:     examID.String(),
		QuestionID: questionID.String(),
		Answer:     value,
	})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.StudentAnswersKey(examID.String(), studentID), questionID.String(), value)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// SubmitHandler returns the handler run when the student submits. It
// records the submission only: the submitted flag is set, the final
// answers are queued for persistence and monitors get an EXAM_SUBMITTED
// event. No scoring happens here.
func (s *ExamSessionService) SubmitHandler(examID uuid.UUID, studentID int) navigator.SubmitHandler {
	return navigator.SubmitHandlerFunc(func(ctx context.Context, sub navigator.Submission) error {
		answers := make(map[string]string, len(sub.Answers))
		for id, v := range sub.Answers {
			answers[id.String()] = v
		}

		payload, err := json.Marshal(model.SubmissionRecord{
			StudentID:   studentID,
			ExamID:      examID.String(),
			Answers:     answers,
			SubmittedAt: sub.SubmittedAt.Unix(),
		})
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}

		submittedKey := config.CacheKey.StudentSubmittedKey(examID.String(), studentID)
		ok, err := s.rdb.SetNX(ctx, submittedKey, sub.SubmittedAt.Unix(), 24*time.Hour).Result()
		if err != nil {
			return fmt.Errorf("mark submitted: %w", err)
		}
		if !ok {
			return ErrAlreadySubmitted
		}

		if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, payload).Err(); err != nil {
			// Let the student retry.
			s.rdb.Del(ctx, submittedKey)
			return fmt.Errorf("queue submission: %w", err)
		}

		metrics.Submissions.Inc()
		if err := s.proctor.Report(ctx, examID, studentID, model.ProctorEventExamSubmitted, ""); err != nil {
			s.log.Warn().Err(err).Msg("Failed to report submission event")
		}

		s.log.Info().
			Str("exam_id", examID.String()).
			Int("student_id", studentID).
			Int("answers", len(answers)).
			Msg("Exam submitted")
		return nil
	})
}

// VerifyAttempt checks the student joined the exam and has not submitted.
func (s *ExamSessionService) VerifyAttempt(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := s.activeSession(ctx, examID, studentID)
	return err
}

// ReleaseCamera drops the camera lease of an attempt still in progress, so
// the student can continue on another device. The old connection sees the
// lease go and reports CAMERA_LOST.
func (s *ExamSessionService) ReleaseCamera(ctx context.Context, examID uuid.UUID, studentID int) error {
	if _, err := s.activeSession(ctx, examID, studentID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, config.CacheKey.StudentCameraLeaseKey(examID.String(), studentID)).Err(); err != nil {
		return fmt.Errorf("release camera lease: %w", err)
	}
	return nil
}

// activeSession returns the student's session, rejecting students who never
// joined or already submitted.
func (s *ExamSessionService) activeSession(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	n, err := s.rdb.Exists(ctx, config.CacheKey.StudentSubmittedKey(examID.String(), studentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check submitted: %w", err)
	}
	if n > 0 {
		return nil, ErrAlreadySubmitted
	}

	sess, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	return sess, nil
}

// loadAnswers reads the answer hash, falling back to PostgreSQL and
// re-seeding Redis when the hash was evicted.
func (s *ExamSessionService) loadAnswers(ctx context.Context, examID uuid.UUID, studentID int) (map[string]string, error) {
	key := config.CacheKey.StudentAnswersKey(examID.String(), studentID)
	answers, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	if len(answers) > 0 {
		return answers, nil
	}

	answers, err = s.answerRepo.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if len(answers) > 0 {
		fields := make(map[string]interface{}, len(answers))
		for k, v := range answers {
			fields[k] = v
		}
		_ = s.rdb.HSet(ctx, key, fields)
	}
	return answers, nil
}

func (s *ExamSessionService) loadCurrentIndex(ctx context.Context, examID uuid.UUID, studentID int) (int, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.StudentCurrentIndexKey(examID.String(), studentID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get current index: %w", err)
	}
	return val, nil
}

func (s *ExamSessionService) loadStartTime(ctx context.Context, examID uuid.UUID, studentID int) (time.Time, error) {
	startKey := config.CacheKey.StudentExamSessionStartKey(examID.String(), studentID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if errors.Is(err, redis.Nil) {
		// Cache miss: PostgreSQL is the source of truth. Self-heal Redis.
		sess, dbErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
		if dbErr != nil {
			if errors.Is(dbErr, pgx.ErrNoRows) {
				return time.Time{}, ErrSessionNotFound
			}
			return time.Time{}, fmt.Errorf("get session: %w", dbErr)
		}
		_ = s.rdb.Set(ctx, startKey, sess.StartedAt.Unix(), 0)
		return sess.StartedAt, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("redis error getting start time: %w", err)
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start time format in cache: %w", err)
	}
	return time.Unix(unix, 0), nil
}
