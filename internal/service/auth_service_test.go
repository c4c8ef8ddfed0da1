package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail    map[string]*models.User
	usersByID       map[string]*models.User
	createErr       error
	created         []*models.User
	resetTokens     map[string]string
	resetMatched    bool
	resetCalled     bool
	profileUpdates  int
	lastProfileName *string
	lastProfileHash *string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		usersByEmail: map[string]*models.User{},
		usersByID:    map[string]*models.User{},
		resetTokens:  map[string]string{},
		resetMatched: true,
	}
}

func (m *mockUserRepo) add(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.usersByEmail[user.Email]; exists {
		return appErrors.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	m.add(user)
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) SetResetToken(ctx context.Context, id, token string, updatedAt time.Time) error {
	m.resetTokens[id] = token
	return nil
}

func (m *mockUserRepo) ResetPassword(ctx context.Context, id, presentedToken, passwordHash string, updatedAt time.Time) (bool, error) {
	m.resetCalled = true
	if !m.resetMatched {
		return false, nil
	}
	if user, ok := m.usersByID[id]; ok {
		user.PasswordHash = passwordHash
		user.TokenVersion++
	}
	return true, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id string, name, passwordHash *string, updatedAt time.Time) error {
	m.profileUpdates++
	m.lastProfileName = name
	m.lastProfileHash = passwordHash
	return nil
}

type mockResetNotifier struct {
	emails []string
	tokens []string
}

func (m *mockResetNotifier) SendPasswordReset(email, name, resetToken string) {
	m.emails = append(m.emails, email)
	m.tokens = append(m.tokens, resetToken)
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		TokenSecret: "test_secret",
		TokenExpiry: time.Hour,
		ResetSecret: "test_reset_secret",
		ResetExpiry: time.Hour,
		AdminSecret: "super-secret",
		BcryptCost:  bcrypt.MinCost,
		Issuer:      "grievance-api",
	}
}

func newTestAuthService(repo *mockUserRepo, notifier *mockResetNotifier) *AuthService {
	var n resetNotifier
	if notifier != nil {
		n = notifier
	}
	return NewAuthService(repo, n, validator.New(), zap.NewNop(), testAuthConfig())
}

func TestRegisterThenLogin(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, nil)

	err := svc.Register(context.Background(), models.RegisterRequest{Name: "Student", Email: "student@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleStudent, repo.created[0].Role)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleStudent, res.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, nil)

	req := models.RegisterRequest{Name: "Student", Email: "student@example.com", Password: "secret1"}
	require.NoError(t, svc.Register(context.Background(), req))

	err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEmail)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), nil)

	err := svc.Register(context.Background(), models.RegisterRequest{Name: "Student", Email: "student@example.com", Password: "short"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestRegisterAdminWrongSecret(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), nil)

	err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret1", AdminSecret: "wrong",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRegisterAdminDisabledWhenSecretUnset(t *testing.T) {
	cfg := testAuthConfig()
	cfg.AdminSecret = ""
	svc := NewAuthService(newMockUserRepo(), nil, validator.New(), zap.NewNop(), cfg)

	err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		Name: "Admin", Email: "admin@example.com", Password: "secret1", AdminSecret: "anything",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
	repo.add(&models.User{ID: "u1", Email: "student@example.com", PasswordHash: string(hash), FullName: "Student", Role: models.RoleStudent})
	svc := newTestAuthService(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong-password"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAdminLoginRejectsStudent(t *testing.T) {
	repo := newMockUserRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	repo.add(&models.User{ID: "u1", Email: "student@example.com", PasswordHash: string(hash), FullName: "Student", Role: models.RoleStudent})
	svc := newTestAuthService(repo, nil)

	_, err := svc.AdminLogin(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestRequestPasswordResetStoresAndNotifies(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "student@example.com", FullName: "Student", Role: models.RoleStudent})
	notifier := &mockResetNotifier{}
	svc := newTestAuthService(repo, notifier)

	token, err := svc.RequestPasswordReset(context.Background(), models.ForgotPasswordRequest{Email: "student@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, repo.resetTokens["u1"])
	require.Len(t, notifier.emails, 1)
	assert.Equal(t, "student@example.com", notifier.emails[0])
	assert.Equal(t, token, notifier.tokens[0])
}

func TestResetPasswordHappyPath(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "student@example.com", FullName: "Student", Role: models.RoleStudent})
	svc := newTestAuthService(repo, nil)

	token, err := svc.RequestPasswordReset(context.Background(), models.ForgotPasswordRequest{Email: "student@example.com"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "brand-new-pass"})
	require.NoError(t, err)
	assert.True(t, repo.resetCalled)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.usersByID["u1"].PasswordHash), []byte("brand-new-pass")))
}

func TestResetPasswordExpiredToken(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "student@example.com", FullName: "Student", Role: models.RoleStudent})
	svc := newTestAuthService(repo, nil)

	past := time.Now().Add(-2 * time.Hour)
	claims := &models.ResetClaims{
		UserID: "u1",
		Email:  "student@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(past),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAuthConfig().ResetSecret))
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: expired, NewPassword: "brand-new-pass"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidResetToken.Code, appErr.Code)
	assert.False(t, repo.resetCalled)
}

func TestResetPasswordSupersededToken(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "student@example.com", FullName: "Student", Role: models.RoleStudent})
	repo.resetMatched = false
	svc := newTestAuthService(repo, nil)

	token, err := svc.RequestPasswordReset(context.Background(), models.ForgotPasswordRequest{Email: "student@example.com"})
	require.NoError(t, err)

	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "brand-new-pass"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidResetToken.Code, appErr.Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	repo := newMockUserRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	repo.add(&models.User{ID: "u1", Email: "student@example.com", PasswordHash: string(hash), FullName: "Student", Role: models.RoleStudent})
	svc := newTestAuthService(repo, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret1"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestValidateTokenRevokedByPasswordChange(t *testing.T) {
	repo := newMockUserRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	user := &models.User{ID: "u1", Email: "student@example.com", PasswordHash: string(hash), FullName: "Student", Role: models.RoleStudent}
	repo.add(user)
	svc := newTestAuthService(repo, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret1"})
	require.NoError(t, err)

	user.TokenVersion++

	_, err = svc.ValidateToken(context.Background(), res.Token)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestUpdateProfileNothingToUpdate(t *testing.T) {
	svc := newTestAuthService(newMockUserRepo(), nil)

	err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUpdateProfilePasswordHashed(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestAuthService(repo, nil)

	password := "new-password"
	err := svc.UpdateProfile(context.Background(), "u1", models.UpdateProfileRequest{Password: &password})
	require.NoError(t, err)
	require.NotNil(t, repo.lastProfileHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*repo.lastProfileHash), []byte(password)))
}
