package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

// Domain Errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrNotExamOwner     = errors.New("not the owner of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot start")
	ErrExamNotScheduled = errors.New("exam status is not scheduled")
	ErrExamNotActive    = errors.New("exam status is not active")
)

// ExamService handles exam business logic and Redis caching of exam papers.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// Create persists a new exam record as given. It satisfies examform.Creator;
// the form decides status and owner.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("teacher_id", exam.TeacherID).
		Msg("Exam created")
	return nil
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// GetOwned retrieves an exam and checks it belongs to teacherID.
func (s *ExamService) GetOwned(ctx context.Context, id uuid.UUID, teacherID int) (*model.Exam, error) {
	exam, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.TeacherID != teacherID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

// AddQuestion appends a question to a scheduled exam. Questions are frozen
// once the exam starts so every student sees the same paper.
func (s *ExamService) AddQuestion(ctx context.Context, examID uuid.UUID, teacherID int, req *model.AddQuestionRequest) (*model.Question, error) {
	exam, err := s.GetOwned(ctx, examID, teacherID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusScheduled {
		return nil, ErrExamNotScheduled
	}

	q := &model.Question{
		ExamID:   examID,
		Kind:     model.QuestionKind(req.Kind),
		Prompt:   req.Prompt,
		Points:   req.Points,
		OrderNum: req.OrderNum,
	}
	if q.Kind == model.QuestionKindMultipleChoice {
		q.Options = req.Options
	}

	if err := s.questionRepo.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return q, nil
}

// ImportQuestions bulk-inserts questions into a scheduled exam the teacher
// owns. Their order numbers are shifted past the highest existing order_num.
func (s *ExamService) ImportQuestions(ctx context.Context, examID uuid.UUID, teacherID int, questions []model.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	exam, err := s.GetOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusScheduled {
		return ErrExamNotScheduled
	}
	maxOrder, err := s.questionRepo.MaxOrderNum(ctx, examID)
	if err != nil {
		return fmt.Errorf("max order num: %w", err)
	}
	appendAfter(questions, examID, maxOrder)
	if err := s.questionRepo.CreateBatch(ctx, questions); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

// appendAfter binds questions to examID and shifts their order numbers past
// maxOrder so they sort after every existing question.
func appendAfter(questions []model.Question, examID uuid.UUID, maxOrder int) {
	for i := range questions {
		questions[i].ExamID = examID
		questions[i].OrderNum += maxOrder
	}
}

// Start opens a scheduled exam to students and caches its paper.
func (s *ExamService) Start(ctx context.Context, examID uuid.UUID, teacherID int) error {
	exam, err := s.GetOwned(ctx, examID, teacherID)
	if err != nil {
		return err
	}
	if exam.Status != model.ExamStatusScheduled {
		return ErrExamNotScheduled
	}

	if err := s.WarmPaperCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.TransitionStatus(ctx, examID, model.ExamStatusScheduled, model.ExamStatusActive); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return ErrExamNotScheduled
		}
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam started")
	return nil
}

// Complete closes an active exam and evicts its cached paper.
func (s *ExamService) Complete(ctx context.Context, examID uuid.UUID, teacherID int) error {
	if _, err := s.GetOwned(ctx, examID, teacherID); err != nil {
		return err
	}

	if err := s.examRepo.TransitionStatus(ctx, examID, model.ExamStatusActive, model.ExamStatusCompleted); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return ErrExamNotActive
		}
		return fmt.Errorf("update status: %w", err)
	}

	if err := s.rdb.Del(ctx, config.CacheKey.ExamPaperKey(examID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to evict paper cache")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam completed")
	return nil
}

// GetPaper returns the student-facing paper of an active exam, reading
// through the Redis cache.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ExamPaperKey(examID.String())).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(raw, &paper); err == nil {
			return &paper, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt paper cache, reloading")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get paper cache: %w", err)
	}

	exam, err := s.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusActive {
		return nil, ErrExamNotActive
	}

	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return nil, err
	}
	if err := s.cachePaper(ctx, paper); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to cache paper")
	}
	return paper, nil
}

// WarmPaperCache loads an exam's questions from PostgreSQL into Redis.
func (s *ExamService) WarmPaperCache(ctx context.Context, exam *model.Exam) error {
	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return err
	}
	if err := s.cachePaper(ctx, paper); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(paper.Questions)).
		Msg("Paper cache warmed")
	return nil
}

// PrewarmAllCaches warms the paper cache of every active exam. Called at
// startup so the first wave of students hits Redis.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmPaperCache(ctx, &exams[i]); err != nil {
			s.log.Error().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Prewarm failed")
			continue
		}
		warmed++
	}

	s.log.Info().Int("exams", warmed).Msg("Paper caches prewarmed")
	return nil
}

func (s *ExamService) buildPaper(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	return &model.ExamPaper{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Course:    exam.Course,
		Duration:  exam.DurationMinutes,
		Questions: questions,
	}, nil
}

func (s *ExamService) cachePaper(ctx context.Context, paper *model.ExamPaper) error {
	data, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	return s.rdb.Set(ctx, config.CacheKey.ExamPaperKey(paper.ExamID.String()), data, 0).Err()
}
