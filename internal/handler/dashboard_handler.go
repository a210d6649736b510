package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
)

// DashboardHandler handles teacher dashboard endpoints.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// ListExams godoc
// GET /api/v1/teacher/exams?page=&per_page=
// Lists the caller's exams with enrolled and flagged counts.
func (h *DashboardHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var q model.PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	q.Normalize()

	exams, pagination, err := h.dashboardService.ListExams(c.Request.Context(), claims.UserID, q.Page, q.PerPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetStats godoc
// GET /api/v1/teacher/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	claims := middleware.GetClaims(c)

	stats, err := h.dashboardService.GetStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// GetSummary godoc
// GET /api/v1/teacher/dashboard/summary
// Returns the clean session rate with tab switch and camera loss counts.
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	claims := middleware.GetClaims(c)

	summary, err := h.dashboardService.ProctoringSummary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

// RecentActivity godoc
// GET /api/v1/teacher/dashboard/activity?limit=
// Returns the newest proctoring events across the caller's exams.
func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var q model.ActivityQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	items, err := h.dashboardService.RecentActivity(c.Request.Context(), claims.UserID, q.Limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if items == nil {
		items = []model.ActivityItem{}
	}

	response.Success(c, http.StatusOK, gin.H{"activity": items})
}
