package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type analyticsRepository interface {
	CategoryStats(ctx context.Context) ([]models.CategoryStat, error)
	MonthlyTrend(ctx context.Context) ([]models.MonthlyTrendPoint, error)
	ResolutionTime(ctx context.Context) ([]models.ResolutionTimeStat, error)
	DepartmentWorkload(ctx context.Context) ([]models.DepartmentWorkload, error)
	RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error)
	StudentStats(ctx context.Context, studentID string) (*models.GrievanceStats, error)
}

// AnalyticsService serves read-only aggregates over grievances, caching the
// portal-wide ones in Redis.
type AnalyticsService struct {
	repo    analyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService instance.
func NewAnalyticsService(repo analyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// CategoryStats returns per-category grievance volume.
func (s *AnalyticsService) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	var cached []models.CategoryStat
	if hit, _ := s.cache.Get(ctx, "analytics:category-stats", &cached); hit {
		return cached, nil
	}

	start := time.Now()
	stats, err := s.repo.CategoryStats(ctx)
	s.metrics.ObserveDBQuery("analytics_category_stats", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch category statistics")
	}
	_ = s.cache.Set(ctx, "analytics:category-stats", stats, 0)
	return stats, nil
}

// MonthlyTrend returns submission counts for the trailing six months.
func (s *AnalyticsService) MonthlyTrend(ctx context.Context) ([]models.MonthlyTrendPoint, error) {
	var cached []models.MonthlyTrendPoint
	if hit, _ := s.cache.Get(ctx, "analytics:monthly-trend", &cached); hit {
		return cached, nil
	}

	start := time.Now()
	points, err := s.repo.MonthlyTrend(ctx)
	s.metrics.ObserveDBQuery("analytics_monthly_trend", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch monthly trend data")
	}
	_ = s.cache.Set(ctx, "analytics:monthly-trend", points, 0)
	return points, nil
}

// ResolutionTime returns average resolution hours per category.
func (s *AnalyticsService) ResolutionTime(ctx context.Context) ([]models.ResolutionTimeStat, error) {
	var cached []models.ResolutionTimeStat
	if hit, _ := s.cache.Get(ctx, "analytics:resolution-time", &cached); hit {
		return cached, nil
	}

	start := time.Now()
	stats, err := s.repo.ResolutionTime(ctx)
	s.metrics.ObserveDBQuery("analytics_resolution_time", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch resolution time data")
	}
	_ = s.cache.Set(ctx, "analytics:resolution-time", stats, 0)
	return stats, nil
}

// DepartmentWorkload returns grievance volume per assigned department.
func (s *AnalyticsService) DepartmentWorkload(ctx context.Context) ([]models.DepartmentWorkload, error) {
	var cached []models.DepartmentWorkload
	if hit, _ := s.cache.Get(ctx, "analytics:department-workload", &cached); hit {
		return cached, nil
	}

	start := time.Now()
	workloads, err := s.repo.DepartmentWorkload(ctx)
	s.metrics.ObserveDBQuery("analytics_department_workload", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch department workload data")
	}
	_ = s.cache.Set(ctx, "analytics:department-workload", workloads, 0)
	return workloads, nil
}

// RecentActivity returns the latest status-change events.
func (s *AnalyticsService) RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	key := fmt.Sprintf("analytics:recent-activity:%d", limit)
	var cached []models.ActivityEvent
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	start := time.Now()
	events, err := s.repo.RecentActivity(ctx, limit)
	s.metrics.ObserveDBQuery("analytics_recent_activity", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch recent activity")
	}
	_ = s.cache.Set(ctx, key, events, 0)
	return events, nil
}

// MyStats aggregates the calling student's own grievance counts. Per-user, so
// never cached.
func (s *AnalyticsService) MyStats(ctx context.Context, studentID string) (*models.GrievanceStats, error) {
	start := time.Now()
	stats, err := s.repo.StudentStats(ctx, studentID)
	s.metrics.ObserveDBQuery("analytics_student_stats", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user statistics")
	}
	return stats, nil
}
