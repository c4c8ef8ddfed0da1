package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/service"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

// AnalyticsHandler serves the reporting endpoints. Everything except MyStats
// sits behind the ADMIN role guard.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// CategoryStats godoc
// @Summary Grievance volume per category
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/category-stats [get]
func (h *AnalyticsHandler) CategoryStats(c *gin.Context) {
	stats, err := h.service.CategoryStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats)
}

// MonthlyTrend godoc
// @Summary Submissions per month for the trailing six months
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/monthly-trend [get]
func (h *AnalyticsHandler) MonthlyTrend(c *gin.Context) {
	points, err := h.service.MonthlyTrend(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, points)
}

// ResolutionTime godoc
// @Summary Average hours to resolution per category
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/resolution-time [get]
func (h *AnalyticsHandler) ResolutionTime(c *gin.Context) {
	stats, err := h.service.ResolutionTime(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats)
}

// DepartmentWorkload godoc
// @Summary Grievance volume per assigned department
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/department-workload [get]
func (h *AnalyticsHandler) DepartmentWorkload(c *gin.Context) {
	workloads, err := h.service.DepartmentWorkload(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, workloads)
}

// RecentActivity godoc
// @Summary Latest status-change events
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of events" default(10)
// @Success 200 {object} response.Envelope
// @Router /analytics/recent-activity [get]
func (h *AnalyticsHandler) RecentActivity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
			return
		}
		limit = parsed
	}

	events, err := h.service.RecentActivity(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, events)
}

// MyStats godoc
// @Summary The caller's own grievance counts by status
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /analytics/my-stats [get]
func (h *AnalyticsHandler) MyStats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.service.MyStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats)
}
