package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grievance-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries over
// grievances and their status history.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CategoryStats breaks grievance volume down per category, busiest first.
func (r *AnalyticsRepository) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	const query = `SELECT category,
        COUNT(*) AS count,
        COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0) AS resolved_count,
        COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending_count,
        COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0) AS in_progress_count
        FROM grievances
        GROUP BY category
        ORDER BY count DESC`
	stats := []models.CategoryStat{}
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	return stats, nil
}

// MonthlyTrend counts submissions per month over the trailing six months.
func (r *AnalyticsRepository) MonthlyTrend(ctx context.Context) ([]models.MonthlyTrendPoint, error) {
	const query = `SELECT to_char(created_at, 'YYYY-MM') AS month,
        COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0) AS resolved,
        COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending
        FROM grievances
        WHERE created_at >= NOW() - INTERVAL '6 months'
        GROUP BY month
        ORDER BY month ASC`
	points := []models.MonthlyTrendPoint{}
	if err := r.db.SelectContext(ctx, &points, query); err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	return points, nil
}

// ResolutionTime reports the average hours between submission and the first
// Resolved history entry, per category.
func (r *AnalyticsRepository) ResolutionTime(ctx context.Context) ([]models.ResolutionTimeStat, error) {
	const query = `SELECT g.category,
        AVG(EXTRACT(EPOCH FROM (h.changed_at - g.created_at)) / 3600) AS avg_hours,
        COUNT(*) AS resolved_count
        FROM grievances g
        JOIN grievance_status_history h ON g.id = h.grievance_id
        WHERE h.status = 'Resolved'
        GROUP BY g.category
        ORDER BY avg_hours ASC`
	stats := []models.ResolutionTimeStat{}
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("resolution time: %w", err)
	}
	return stats, nil
}

// DepartmentWorkload aggregates grievance volume per assigned department.
func (r *AnalyticsRepository) DepartmentWorkload(ctx context.Context) ([]models.DepartmentWorkload, error) {
	const query = `SELECT COALESCE(assigned_department, 'Unassigned') AS department,
        COUNT(*) AS total_grievances,
        COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0) AS resolved,
        COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0) AS in_progress,
        COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending
        FROM grievances
        GROUP BY assigned_department
        ORDER BY total_grievances DESC`
	workloads := []models.DepartmentWorkload{}
	if err := r.db.SelectContext(ctx, &workloads, query); err != nil {
		return nil, fmt.Errorf("department workload: %w", err)
	}
	return workloads, nil
}

// RecentActivity returns the latest status-change events with actor context.
func (r *AnalyticsRepository) RecentActivity(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT h.grievance_id, h.status, h.changed_at, h.admin_remark,
        u.full_name AS changed_by_name,
        g.category,
        s.full_name AS student_name
        FROM grievance_status_history h
        LEFT JOIN users u ON h.changed_by = u.id
        LEFT JOIN grievances g ON h.grievance_id = g.id
        LEFT JOIN users s ON g.student_id = s.id
        ORDER BY h.changed_at DESC
        LIMIT $1`
	events := []models.ActivityEvent{}
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return events, nil
}

// StudentStats aggregates one student's grievance counts by status.
func (r *AnalyticsRepository) StudentStats(ctx context.Context, studentID string) (*models.GrievanceStats, error) {
	const query = `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0) AS in_progress,
        COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0) AS resolved,
        COALESCE(SUM(CASE WHEN status = 'Rejected' THEN 1 ELSE 0 END), 0) AS rejected
        FROM grievances
        WHERE student_id = $1`
	var stats models.GrievanceStats
	if err := r.db.GetContext(ctx, &stats, query, studentID); err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}
	return &stats, nil
}
