package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type mockGrievanceRepo struct {
	grievances map[string]*models.Grievance
	history    map[string][]models.StatusHistoryEntry
	listAll    []models.GrievanceWithStudent
	createErr  error
	updateErr  error
	updates    []models.AdminUpdateRequest
	stats      *models.GrievanceStats
}

func newMockGrievanceRepo() *mockGrievanceRepo {
	return &mockGrievanceRepo{
		grievances: map[string]*models.Grievance{},
		history:    map[string][]models.StatusHistoryEntry{},
	}
}

func (m *mockGrievanceRepo) Create(ctx context.Context, g *models.Grievance) error {
	if m.createErr != nil {
		return m.createErr
	}
	if g.ID == "" {
		g.ID = "g1"
	}
	g.Status = models.StatusPending
	m.grievances[g.ID] = g
	m.history[g.ID] = []models.StatusHistoryEntry{{
		ID: "h1", GrievanceID: g.ID, Status: models.StatusPending, ChangedBy: g.StudentID, ChangedAt: time.Now(),
	}}
	return nil
}

func (m *mockGrievanceRepo) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	g, ok := m.grievances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return g, nil
}

func (m *mockGrievanceRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Grievance, error) {
	out := []models.Grievance{}
	for _, g := range m.grievances {
		if g.StudentID == studentID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockGrievanceRepo) ListAll(ctx context.Context) ([]models.GrievanceWithStudent, error) {
	return m.listAll, nil
}

func (m *mockGrievanceRepo) History(ctx context.Context, grievanceID string) ([]models.StatusHistoryEntry, error) {
	return m.history[grievanceID], nil
}

func (m *mockGrievanceRepo) HistoryDetailed(ctx context.Context, grievanceID string) ([]models.StatusHistoryDetail, error) {
	out := []models.StatusHistoryDetail{}
	for _, e := range m.history[grievanceID] {
		out = append(out, models.StatusHistoryDetail{StatusHistoryEntry: e})
	}
	return out, nil
}

func (m *mockGrievanceRepo) UpdateWithHistory(ctx context.Context, grievanceID string, req models.AdminUpdateRequest, actorID string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	g, ok := m.grievances[grievanceID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	if !g.Status.CanTransitionTo(req.Status) {
		return appErrors.Clone(appErrors.ErrConflict, "illegal status transition")
	}
	g.Status = req.Status
	m.history[grievanceID] = append(m.history[grievanceID], models.StatusHistoryEntry{
		ID: "h-next", GrievanceID: grievanceID, Status: req.Status, ChangedBy: actorID, ChangedAt: time.Now(),
	})
	m.updates = append(m.updates, req)
	return nil
}

func (m *mockGrievanceRepo) Stats(ctx context.Context) (*models.GrievanceStats, error) {
	return m.stats, nil
}

type mockGrievanceNotifier struct {
	confirmations []string
	statusUpdates []string
}

func (m *mockGrievanceNotifier) SendSubmissionConfirmation(email, name, grievanceID, category string) {
	m.confirmations = append(m.confirmations, grievanceID)
}

func (m *mockGrievanceNotifier) SendStatusUpdate(email, name, grievanceID, newStatus string, remark *string) {
	m.statusUpdates = append(m.statusUpdates, newStatus)
}

func newTestGrievanceService(repo *mockGrievanceRepo, users *mockUserRepo, notifier *mockGrievanceNotifier) *GrievanceService {
	var n grievanceNotifier
	if notifier != nil {
		n = notifier
	}
	return NewGrievanceService(repo, users, n, nil, validator.New(), zap.NewNop())
}

func TestSubmitCreatesPendingGrievance(t *testing.T) {
	repo := newMockGrievanceRepo()
	users := newMockUserRepo()
	users.add(&models.User{ID: "u1", Email: "student@example.com", FullName: "Student", Role: models.RoleStudent})
	notifier := &mockGrievanceNotifier{}
	svc := newTestGrievanceService(repo, users, notifier)

	g, err := svc.Submit(context.Background(), "u1", models.SubmitGrievanceRequest{
		Category:    "Hostel Issues",
		Description: "The water supply has been broken for a week",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, g.Status)
	require.Len(t, repo.history[g.ID], 1)
	assert.Equal(t, models.StatusPending, repo.history[g.ID][0].Status)
	assert.Equal(t, "u1", repo.history[g.ID][0].ChangedBy)
	assert.Equal(t, []string{g.ID}, notifier.confirmations)
}

func TestSubmitDescriptionLengthBoundary(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), newMockUserRepo(), nil)

	_, err := svc.Submit(context.Background(), "u1", models.SubmitGrievanceRequest{
		Category:    "Other",
		Description: strings.Repeat("x", 9),
	}, nil)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	users := newMockUserRepo()
	users.add(&models.User{ID: "u1", Email: "s@example.com", FullName: "S", Role: models.RoleStudent})
	svc = newTestGrievanceService(newMockGrievanceRepo(), users, nil)
	_, err = svc.Submit(context.Background(), "u1", models.SubmitGrievanceRequest{
		Category:    "Other",
		Description: strings.Repeat("x", 10),
	}, nil)
	require.NoError(t, err)
}

func TestSubmitRejectsUnknownCategory(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), newMockUserRepo(), nil)

	_, err := svc.Submit(context.Background(), "u1", models.SubmitGrievanceRequest{
		Category:    "Parking Issues",
		Description: "A perfectly valid description",
	}, nil)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestGetHistoryHidesOtherStudentsGrievances(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", StudentID: "owner", Status: models.StatusPending}
	svc := newTestGrievanceService(repo, newMockUserRepo(), nil)

	_, err := svc.GetHistory(context.Background(), "g1", "intruder", models.RoleStudent)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGetHistoryAdminBypassesOwnership(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", StudentID: "owner", Status: models.StatusPending}
	repo.history["g1"] = []models.StatusHistoryEntry{{ID: "h1", GrievanceID: "g1", Status: models.StatusPending, ChangedBy: "owner"}}
	svc := newTestGrievanceService(repo, newMockUserRepo(), nil)

	history, err := svc.GetHistory(context.Background(), "g1", "some-admin", models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].Status)
}

func TestAdminUpdateAppendsHistoryAndNotifies(t *testing.T) {
	repo := newMockGrievanceRepo()
	users := newMockUserRepo()
	users.add(&models.User{ID: "owner", Email: "owner@example.com", FullName: "Owner", Role: models.RoleStudent})
	notifier := &mockGrievanceNotifier{}
	svc := newTestGrievanceService(repo, users, notifier)

	g, err := svc.Submit(context.Background(), "owner", models.SubmitGrievanceRequest{
		Category:    "Academic Issues",
		Description: "Grades were published with errors",
	}, nil)
	require.NoError(t, err)

	remark := "forwarded to examination cell"
	err = svc.AdminUpdate(context.Background(), g.ID, models.AdminUpdateRequest{Status: models.StatusInProgress, AdminRemark: &remark}, "admin1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, repo.grievances[g.ID].Status)
	require.Len(t, repo.history[g.ID], 2)
	assert.Equal(t, models.StatusInProgress, repo.history[g.ID][1].Status)
	assert.Equal(t, []string{string(models.StatusInProgress)}, notifier.statusUpdates)
}

func TestAdminUpdateTerminalStatusConflicts(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", StudentID: "owner", Status: models.StatusRejected}
	users := newMockUserRepo()
	users.add(&models.User{ID: "owner", Email: "owner@example.com", FullName: "Owner", Role: models.RoleStudent})
	svc := newTestGrievanceService(repo, users, nil)

	err := svc.AdminUpdate(context.Background(), "g1", models.AdminUpdateRequest{Status: models.StatusInProgress}, "admin1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.updates)
}

func TestAdminUpdateRejectsInvalidStatus(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), newMockUserRepo(), nil)

	err := svc.AdminUpdate(context.Background(), "g1", models.AdminUpdateRequest{Status: "Escalated"}, "admin1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportAllCSV(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.listAll = []models.GrievanceWithStudent{{
		Grievance: models.Grievance{
			ID: "g1", StudentID: "u1", Category: "Other", Description: "desc",
			Status: models.StatusPending, CreatedAt: time.Now(),
		},
		StudentName:  "Student",
		StudentEmail: "student@example.com",
	}}
	svc := newTestGrievanceService(repo, newMockUserRepo(), nil)

	data, contentType, err := svc.ExportAll(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "student@example.com")
}

func TestExportAllUnsupportedFormat(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), newMockUserRepo(), nil)

	_, _, err := svc.ExportAll(context.Background(), "xlsx")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
