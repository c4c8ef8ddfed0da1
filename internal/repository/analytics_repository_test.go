package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grievance-api/internal/models"
)

func TestCategoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"category", "count", "resolved_count", "pending_count", "in_progress_count"}).
		AddRow("Hostel Issues", 5, 2, 2, 1).
		AddRow("Other", 1, 0, 1, 0)
	mock.ExpectQuery("SELECT category").WillReturnRows(rows)

	stats, err := repo.CategoryStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "Hostel Issues", stats[0].Category)
	assert.Equal(t, 5, stats[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthlyTrend(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"month", "total", "resolved", "pending"}).
		AddRow("2025-07", 3, 1, 2).
		AddRow("2025-08", 4, 2, 1)
	mock.ExpectQuery("SELECT to_char").WillReturnRows(rows)

	points, err := repo.MonthlyTrend(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "2025-07", points[0].Month)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentActivityClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"grievance_id", "status", "changed_at", "admin_remark", "changed_by_name", "category", "student_name"}).
		AddRow("g1", string(models.StatusResolved), time.Now(), nil, "Admin", "Other", "Student")
	mock.ExpectQuery("SELECT h.grievance_id").
		WithArgs(10).
		WillReturnRows(rows)

	events, err := repo.RecentActivity(context.Background(), -5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusResolved, events[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	rows := sqlmock.NewRows([]string{"total", "pending", "in_progress", "resolved", "rejected"}).
		AddRow(3, 1, 1, 1, 0)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("u1").
		WillReturnRows(rows)

	stats, err := repo.StudentStats(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.InProgress)
	assert.NoError(t, mock.ExpectationsWereMet())
}
