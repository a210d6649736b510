package service

import (
	"context"
	"fmt"
	"math"

	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/response"
)

const (
	defaultActivityLimit = 10
	maxActivityLimit     = 100
)

// DashboardService assembles the teacher dashboard.
type DashboardService struct {
	examRepo      *repository.ExamRepository
	dashboardRepo *repository.DashboardRepository
	eventRepo     *repository.ProctorEventRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(
	examRepo *repository.ExamRepository,
	dashboardRepo *repository.DashboardRepository,
	eventRepo *repository.ProctorEventRepository,
) *DashboardService {
	return &DashboardService{examRepo: examRepo, dashboardRepo: dashboardRepo, eventRepo: eventRepo}
}

// ListExams returns one page of the teacher's exams with student and flag counts.
func (s *DashboardService) ListExams(ctx context.Context, teacherID, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListByTeacherPaginated(ctx, teacherID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list exams: %w", err)
	}

	return exams, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// GetStats returns the dashboard counters.
func (s *DashboardService) GetStats(ctx context.Context, teacherID int) (*model.DashboardStats, error) {
	stats, err := s.dashboardRepo.GetStats(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// RecentActivity returns the newest proctoring events across the teacher's exams.
func (s *DashboardService) RecentActivity(ctx context.Context, teacherID, limit int) ([]model.ActivityItem, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	items, err := s.eventRepo.ListRecentByTeacher(ctx, teacherID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return items, nil
}

// ProctoringSummary returns the clean session rate and the violation counts
// behind the analytics view.
func (s *DashboardService) ProctoringSummary(ctx context.Context, teacherID int) (*model.ProctoringSummary, error) {
	sum, err := s.dashboardRepo.GetProctoringSummary(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get proctoring summary: %w", err)
	}
	sum.CleanSessionRate = cleanSessionRate(sum.CleanSessions, sum.TotalSessions)
	return sum, nil
}

// cleanSessionRate is a percentage rounded to one decimal. No sessions reads as 0.
func cleanSessionRate(clean, total int) float64 {
	if total <= 0 {
		return 0
	}
	if clean > total {
		clean = total
	}
	return math.Round(float64(clean)*1000/float64(total)) / 10
}
