package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pattern-signup-api/internal/models"
	appErrors "github.com/noah-isme/pattern-signup-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	findErr          error
	createErr        error
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedAll       bool
}

func newMockAuthRepo(t *testing.T, password string, active bool) *mockAuthRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "admin-1",
		Username:     "teacher",
		PasswordHash: string(hash),
		FullName:     "Course Teacher",
		Role:         models.RoleAdmin,
		Active:       active,
	}
	return &mockAuthRepo{
		users:         map[string]*models.User{user.ID: user},
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.ID = uuid.NewString()
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string, revokedAt time.Time) error {
	m.revokedAll = true
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if stored, ok := m.refreshTokens[token]; ok {
		return stored, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "pattern-signup-test",
		SingleSession:      true,
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(t, "correct-horse", true)
	svc := newTestAuthService(repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: " teacher ", Password: "correct-horse", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.True(t, repo.lastLoginUpdated)
	assert.True(t, repo.revokedAll)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, "teacher", claims.Username)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	cases := []struct {
		name     string
		repo     func(t *testing.T) *mockAuthRepo
		username string
		password string
		code     string
	}{
		{name: "unknown user", repo: func(t *testing.T) *mockAuthRepo { return newMockAuthRepo(t, "pw-12345", true) }, username: "ghost", password: "pw-12345", code: appErrors.ErrInvalidCredentials.Code},
		{name: "wrong password", repo: func(t *testing.T) *mockAuthRepo { return newMockAuthRepo(t, "pw-12345", true) }, username: "teacher", password: "nope", code: appErrors.ErrInvalidCredentials.Code},
		{name: "inactive", repo: func(t *testing.T) *mockAuthRepo { return newMockAuthRepo(t, "pw-12345", false) }, username: "teacher", password: "pw-12345", code: appErrors.ErrInactiveAccount.Code},
		{name: "missing password", repo: func(t *testing.T) *mockAuthRepo { return newMockAuthRepo(t, "pw-12345", true) }, username: "teacher", code: appErrors.ErrValidation.Code},
		{name: "storage", repo: func(t *testing.T) *mockAuthRepo {
			repo := newMockAuthRepo(t, "pw-12345", true)
			repo.findErr = errors.New("connection reset")
			return repo
		}, username: "teacher", password: "pw-12345", code: appErrors.ErrStorage.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestAuthService(tc.repo(t))
			_, err := svc.Login(context.Background(), models.LoginRequest{Username: tc.username, Password: tc.password})
			requireAppError(t, err, tc.code)
		})
	}
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := newMockAuthRepo(t, "correct-horse", true)
	svc := newTestAuthService(repo)
	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "unknown"})
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthServiceLogoutAndSession(t *testing.T) {
	repo := newMockAuthRepo(t, "correct-horse", true)
	svc := newTestAuthService(repo)
	login, err := svc.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "correct-horse"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(login.AccessToken)
	require.NoError(t, err)

	session, err := svc.Session(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Equal(t, "teacher", session.User.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	_, err = svc.Session(context.Background(), nil)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	stranger := &models.JWTClaims{UserID: "someone-else"}
	err = svc.Logout(context.Background(), login.RefreshToken, stranger, "", "")
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	require.NoError(t, svc.Logout(context.Background(), login.RefreshToken, claims, "10.0.0.1", "test"))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[len(repo.auditLogs)-1].Action)
}

func TestAuthServiceCreateAdmin(t *testing.T) {
	repo := newMockAuthRepo(t, "unused-pass", true)
	svc := newTestAuthService(repo)

	user, err := svc.CreateAdmin(context.Background(), " second ", "long-enough", "Second Admin")
	require.NoError(t, err)
	assert.Equal(t, "second", user.Username)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("long-enough")))
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)

	_, err = svc.CreateAdmin(context.Background(), "third", "short", "")
	appErr := requireAppError(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "password")

	repo.createErr = errors.New("duplicate")
	_, err = svc.CreateAdmin(context.Background(), "fourth", "long-enough", "")
	requireAppError(t, err, appErrors.ErrStorage.Code)
}

func TestAuthServiceValidateTokenRejectsForeignIssuer(t *testing.T) {
	repo := newMockAuthRepo(t, "correct-horse", true)
	issuer := newTestAuthService(repo)
	login, err := issuer.Login(context.Background(), models.LoginRequest{Username: "teacher", Password: "correct-horse"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", Issuer: "someone-else", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(login.AccessToken)
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)

	_, err = issuer.ValidateToken("not-a-token")
	requireAppError(t, err, appErrors.ErrUnauthorized.Code)
}
