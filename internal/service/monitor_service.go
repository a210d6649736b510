package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

// MonitorSnapshot is the first message a teacher's live monitor receives.
type MonitorSnapshot struct {
	Exam           *model.Exam             `json:"exam"`
	TotalQuestions int                     `json:"total_questions"`
	Students       []model.StudentProgress `json:"students"`
	Recent         []model.ActivityItem    `json:"recent"`
}

// MonitorService orchestrates live exam monitoring.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	eventRepo   *repository.ProctorEventRepository
	examService *ExamService
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	monitorRepo *repository.MonitorRepository,
	eventRepo *repository.ProctorEventRepository,
	examService *ExamService,
) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo, eventRepo: eventRepo, examService: examService}
}

// GetSnapshot builds the roster of an exam the teacher owns. The roster,
// recent events and question count are fetched in parallel; only the
// roster is required.
func (s *MonitorService) GetSnapshot(ctx context.Context, examID uuid.UUID, teacherID int) (*MonitorSnapshot, error) {
	exam, err := s.examService.GetOwned(ctx, examID, teacherID)
	if err != nil {
		return nil, err
	}

	var (
		roster    []model.StudentProgress
		recent    []model.ActivityItem
		paper     *model.ExamPaper
		rosterErr error
		wg        sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		roster, rosterErr = s.monitorRepo.GetRoster(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		recent, _ = s.eventRepo.ListRecentByExam(ctx, examID, defaultActivityLimit)
	}()
	go func() {
		defer wg.Done()
		if exam.Status == model.ExamStatusActive {
			paper, _ = s.examService.GetPaper(ctx, examID)
		}
	}()
	wg.Wait()

	if rosterErr != nil {
		return nil, rosterErr
	}

	ids := make([]int, len(roster))
	for i, p := range roster {
		ids[i] = p.StudentID
	}
	if counts, err := s.monitorRepo.GetLiveAnsweredCounts(ctx, examID, ids); err == nil {
		for i := range roster {
			roster[i].Answered = counts[roster[i].StudentID]
		}
	}

	snap := &MonitorSnapshot{Exam: exam, Students: roster, Recent: recent}
	if snap.Recent == nil {
		snap.Recent = []model.ActivityItem{}
	}
	if paper != nil {
		snap.TotalQuestions = len(paper.Questions)
	}
	return snap, nil
}
