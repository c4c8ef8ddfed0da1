package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

// GrievanceRepository provides database access for grievances and their
// append-only status history.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository creates a new instance of GrievanceRepository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts the grievance and its first Pending history entry authored
// by the submitting student in a single transaction.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.Status = models.StatusPending
	g.CreatedAt = now
	g.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create grievance: %w", err)
	}

	const insertGrievance = `INSERT INTO grievances (id, student_id, category, description, attachment_path, status, created_at, updated_at)
        VALUES (:id, :student_id, :category, :description, :attachment_path, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertGrievance, g); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grievance: %w", err)
	}

	const insertHistory = `INSERT INTO grievance_status_history (id, grievance_id, status, changed_by, changed_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), g.ID, models.StatusPending, g.StudentID, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert first history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create grievance: %w", err)
	}
	return nil
}

// FindByID returns a grievance by identifier.
func (r *GrievanceRepository) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	const query = `SELECT id, student_id, category, description, attachment_path, status, assigned_department, admin_remark, created_at, updated_at
        FROM grievances WHERE id = $1 LIMIT 1`
	var g models.Grievance
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grievance by id: %w", err)
	}
	return &g, nil
}

// ListByStudent returns a student's grievances, newest first.
func (r *GrievanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Grievance, error) {
	const query = `SELECT id, student_id, category, description, attachment_path, status, assigned_department, admin_remark, created_at, updated_at
        FROM grievances WHERE student_id = $1 ORDER BY created_at DESC`
	grievances := []models.Grievance{}
	if err := r.db.SelectContext(ctx, &grievances, query, studentID); err != nil {
		return nil, fmt.Errorf("list grievances by student: %w", err)
	}
	return grievances, nil
}

// ListAll returns every grievance joined with the owning student, newest first.
func (r *GrievanceRepository) ListAll(ctx context.Context) ([]models.GrievanceWithStudent, error) {
	const query = `SELECT g.id, g.student_id, g.category, g.description, g.attachment_path, g.status, g.assigned_department, g.admin_remark, g.created_at, g.updated_at,
        u.full_name AS student_name, u.email AS student_email
        FROM grievances g
        JOIN users u ON g.student_id = u.id
        ORDER BY g.created_at DESC`
	grievances := []models.GrievanceWithStudent{}
	if err := r.db.SelectContext(ctx, &grievances, query); err != nil {
		return nil, fmt.Errorf("list all grievances: %w", err)
	}
	return grievances, nil
}

// History returns a grievance's status history in chronological order.
func (r *GrievanceRepository) History(ctx context.Context, grievanceID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT id, grievance_id, status, changed_by, admin_remark, assigned_department, changed_at
        FROM grievance_status_history WHERE grievance_id = $1 ORDER BY changed_at ASC`
	entries := []models.StatusHistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, grievanceID); err != nil {
		return nil, fmt.Errorf("grievance history: %w", err)
	}
	return entries, nil
}

// HistoryDetailed joins actor identity onto each history entry for admin views.
func (r *GrievanceRepository) HistoryDetailed(ctx context.Context, grievanceID string) ([]models.StatusHistoryDetail, error) {
	const query = `SELECT h.id, h.grievance_id, h.status, h.changed_by, h.admin_remark, h.assigned_department, h.changed_at,
        u.full_name AS changed_by_name, u.role AS changed_by_role
        FROM grievance_status_history h
        LEFT JOIN users u ON h.changed_by = u.id
        WHERE h.grievance_id = $1
        ORDER BY h.changed_at ASC`
	entries := []models.StatusHistoryDetail{}
	if err := r.db.SelectContext(ctx, &entries, query, grievanceID); err != nil {
		return nil, fmt.Errorf("grievance history detailed: %w", err)
	}
	return entries, nil
}

// UpdateWithHistory applies an admin update and appends the matching history
// entry as one atomic unit. The current row is locked and the lifecycle
// transition re-checked inside the transaction so concurrent updates on the
// same grievance serialize and never tear status from history.
func (r *GrievanceRepository) UpdateWithHistory(ctx context.Context, grievanceID string, req models.AdminUpdateRequest, actorID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grievance update: %w", err)
	}

	var current models.GrievanceStatus
	const lock = `SELECT status FROM grievances WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lock, grievanceID); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return fmt.Errorf("lock grievance: %w", err)
	}

	if !current.CanTransitionTo(req.Status) {
		tx.Rollback() //nolint:errcheck
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("illegal status transition %s -> %s", current, req.Status))
	}

	now := time.Now().UTC()
	const update = `UPDATE grievances SET status = $2, admin_remark = $3, assigned_department = $4, updated_at = $5 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, grievanceID, req.Status, req.AdminRemark, req.AssignedDepartment, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update grievance: %w", err)
	}

	const insertHistory = `INSERT INTO grievance_status_history (id, grievance_id, status, changed_by, admin_remark, assigned_department, changed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertHistory, uuid.NewString(), grievanceID, req.Status, actorID, req.AdminRemark, req.AssignedDepartment, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grievance update: %w", err)
	}
	return nil
}

// Stats returns grievance counts grouped by status.
func (r *GrievanceRepository) Stats(ctx context.Context) (*models.GrievanceStats, error) {
	const query = `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN status = 'Pending' THEN 1 ELSE 0 END), 0) AS pending,
        COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0) AS in_progress,
        COALESCE(SUM(CASE WHEN status = 'Resolved' THEN 1 ELSE 0 END), 0) AS resolved,
        COALESCE(SUM(CASE WHEN status = 'Rejected' THEN 1 ELSE 0 END), 0) AS rejected
        FROM grievances`
	var stats models.GrievanceStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("grievance stats: %w", err)
	}
	return &stats, nil
}
