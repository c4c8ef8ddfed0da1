package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/export"
)

type grievanceRepository interface {
	Create(ctx context.Context, g *models.Grievance) error
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Grievance, error)
	ListAll(ctx context.Context) ([]models.GrievanceWithStudent, error)
	History(ctx context.Context, grievanceID string) ([]models.StatusHistoryEntry, error)
	HistoryDetailed(ctx context.Context, grievanceID string) ([]models.StatusHistoryDetail, error)
	UpdateWithHistory(ctx context.Context, grievanceID string, req models.AdminUpdateRequest, actorID string) error
	Stats(ctx context.Context) (*models.GrievanceStats, error)
}

type grievanceUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type grievanceNotifier interface {
	SendSubmissionConfirmation(email, name, grievanceID, category string)
	SendStatusUpdate(email, name, grievanceID, newStatus string, remark *string)
}

// GrievanceService owns the grievance lifecycle: submission, visibility,
// admin updates and the append-only status audit trail.
type GrievanceService struct {
	repo      grievanceRepository
	users     grievanceUserLookup
	notifier  grievanceNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGrievanceService constructs a GrievanceService instance.
func NewGrievanceService(repo grievanceRepository, users grievanceUserLookup, notifier grievanceNotifier, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GrievanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GrievanceService{repo: repo, users: users, notifier: notifier, cache: cache, validator: validate, logger: logger}
}

// Submit files a new grievance for the student. The grievance row and the
// first Pending history entry are written atomically by the repository.
func (s *GrievanceService) Submit(ctx context.Context, studentID string, req models.SubmitGrievanceRequest, attachmentPath *string) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grievance payload")
	}
	if !validCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid category selected")
	}

	g := &models.Grievance{
		StudentID:      studentID,
		Category:       req.Category,
		Description:    req.Description,
		AttachmentPath: attachmentPath,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit grievance")
	}

	s.invalidateAnalytics(ctx)

	if s.notifier != nil {
		if student, err := s.users.FindByID(ctx, studentID); err == nil {
			s.notifier.SendSubmissionConfirmation(student.Email, student.FullName, g.ID, g.Category)
		} else {
			s.logger.Warn("failed to load student for confirmation email",
				zap.String("student_id", studentID), zap.Error(err))
		}
	}

	s.logger.Info("grievance submitted",
		zap.String("grievance_id", g.ID),
		zap.String("student_id", studentID),
		zap.String("category", g.Category))
	return g, nil
}

// ListMine returns the student's grievances, newest first.
func (s *GrievanceService) ListMine(ctx context.Context, studentID string) ([]models.Grievance, error) {
	grievances, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grievances")
	}
	return grievances, nil
}

// ListAll returns every grievance with student identity. Admin only.
func (s *GrievanceService) ListAll(ctx context.Context) ([]models.GrievanceWithStudent, error) {
	grievances, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grievances")
	}
	return grievances, nil
}

// GetHistory returns a grievance's status history for its owner. Ownership is
// checked first; non-owners get NotFound so existence is never leaked.
func (s *GrievanceService) GetHistory(ctx context.Context, grievanceID, requesterID string, requesterRole models.UserRole) ([]models.StatusHistoryEntry, error) {
	g, err := s.repo.FindByID(ctx, grievanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grievance")
	}
	if requesterRole != models.RoleAdmin && g.StudentID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}

	history, err := s.repo.History(ctx, grievanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch history")
	}
	return history, nil
}

// GetHistoryDetailed returns history with actor identity. Admin only.
func (s *GrievanceService) GetHistoryDetailed(ctx context.Context, grievanceID string) ([]models.StatusHistoryDetail, error) {
	if _, err := s.repo.FindByID(ctx, grievanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grievance")
	}
	history, err := s.repo.HistoryDetailed(ctx, grievanceID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch history")
	}
	return history, nil
}

// AdminUpdate moves a grievance through its lifecycle. The repository
// serializes the status write with its history entry; illegal transitions
// surface as conflicts.
func (s *GrievanceService) AdminUpdate(ctx context.Context, grievanceID string, req models.AdminUpdateRequest, actorID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if !req.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "invalid status value")
	}

	if err := s.repo.UpdateWithHistory(ctx, grievanceID, req, actorID); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grievance")
	}

	s.invalidateAnalytics(ctx)

	if s.notifier != nil {
		if g, err := s.repo.FindByID(ctx, grievanceID); err == nil {
			if student, err := s.users.FindByID(ctx, g.StudentID); err == nil {
				s.notifier.SendStatusUpdate(student.Email, student.FullName, g.ID, string(req.Status), req.AdminRemark)
			}
		}
	}

	s.logger.Info("grievance updated",
		zap.String("grievance_id", grievanceID),
		zap.String("status", string(req.Status)),
		zap.String("actor_id", actorID))
	return nil
}

// Stats returns grievance counts by status. Admin only.
func (s *GrievanceService) Stats(ctx context.Context) (*models.GrievanceStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch stats")
	}
	return stats, nil
}

// ExportAll renders every grievance as a CSV or PDF document. Admin only.
func (s *GrievanceService) ExportAll(ctx context.Context, format string) ([]byte, string, error) {
	grievances, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch grievances")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Student", "Email", "Category", "Status", "Department", "Submitted"},
	}
	for _, g := range grievances {
		department := ""
		if g.AssignedDepartment != nil {
			department = *g.AssignedDepartment
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":         g.ID,
			"Student":    g.StudentName,
			"Email":      g.StudentEmail,
			"Category":   g.Category,
			"Status":     string(g.Status),
			"Department": department,
			"Submitted":  g.CreatedAt.Format(time.RFC3339),
		})
	}

	switch format {
	case "pdf":
		data, err := export.NewPDFExporter().Render(dataset, "Grievance Report")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	case "", "csv":
		data, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *GrievanceService) invalidateAnalytics(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "analytics:*")
	}
}

func validCategory(category string) bool {
	for _, c := range models.GrievanceCategories {
		if c == category {
			return true
		}
	}
	return false
}
