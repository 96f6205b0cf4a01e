package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admissions-portal/internal/models"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
)

type mockStaffRepo struct {
	userByEmail      *models.StaffUser
	userByID         *models.StaffUser
	findByEmailErr   error
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	revokedSessions  int
	lastLoginUpdated bool
}

func (m *mockStaffRepo) FindByEmail(ctx context.Context, email string) (*models.StaffUser, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.userByEmail, nil
}

func (m *mockStaffRepo) FindByID(ctx context.Context, id string) (*models.StaffUser, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockStaffRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockStaffRepo) RevokeStaffRefreshTokens(ctx context.Context, staffID string) error {
	m.revokedSessions++
	return nil
}

func (m *mockStaffRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockStaffRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockStaffRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := &mockStaffRepo{userByEmail: &models.StaffUser{ID: "s1", Email: "office@school.example", PasswordHash: string(password), Active: true, Role: models.RoleAdmin}}
	cfg := testAuthConfig()
	cfg.SingleSession = true
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), cfg)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "office@school.example", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
	assert.Equal(t, 1, repo.revokedSessions)
	stored := repo.refreshTokens[hashRefreshToken(res.RefreshToken)]
	require.NotNil(t, stored)
	assert.Equal(t, "s1", stored.StaffID)
	assert.NotContains(t, repo.refreshTokens, res.RefreshToken)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	cases := []struct {
		name string
		repo *mockStaffRepo
		req  models.LoginRequest
		code string
	}{
		{"inactive", &mockStaffRepo{userByEmail: &models.StaffUser{ID: "s1", PasswordHash: string(password)}}, models.LoginRequest{Email: "a@b.example", Password: "password"}, appErrors.ErrInactiveAccount.Code},
		{"wrong password", &mockStaffRepo{userByEmail: &models.StaffUser{ID: "s1", PasswordHash: string(password), Active: true}}, models.LoginRequest{Email: "a@b.example", Password: "nope"}, appErrors.ErrInvalidCredentials.Code},
		{"unknown account", &mockStaffRepo{findByEmailErr: sql.ErrNoRows}, models.LoginRequest{Email: "a@b.example", Password: "password"}, appErrors.ErrInvalidCredentials.Code},
		{"bad payload", &mockStaffRepo{}, models.LoginRequest{Email: "not-an-email"}, appErrors.ErrValidation.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewAuthService(tc.repo, nil, nil, testAuthConfig())
			_, err := svc.Login(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockStaffRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.StaffUser{ID: "s1", Email: "office@school.example", Active: true, Role: models.RoleReviewer}
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", StaffID: user.ID, TokenHash: hashRefreshToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.TokenHash] = token

	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, token.Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: res.RefreshToken})
	assert.NoError(t, err)
}

func TestAuthServiceRefreshRejectsExpiredToken(t *testing.T) {
	repo := &mockStaffRepo{refreshTokens: map[string]*models.RefreshToken{}}
	repo.refreshTokens[hashRefreshToken("old")] = &models.RefreshToken{ID: "rt1", StaffID: "s1", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockStaffRepo{refreshTokens: map[string]*models.RefreshToken{}}
	token := &models.RefreshToken{ID: "rt1", StaffID: "s1", TokenHash: hashRefreshToken("live"), ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.TokenHash] = token
	svc := NewAuthService(repo, nil, nil, testAuthConfig())
	ctx := context.Background()

	require.NoError(t, svc.Logout(ctx, models.RefreshTokenRequest{RefreshToken: "live"}))
	assert.True(t, token.Revoked)
	require.NoError(t, svc.Logout(ctx, models.RefreshTokenRequest{RefreshToken: "live"}))
	require.NoError(t, svc.Logout(ctx, models.RefreshTokenRequest{RefreshToken: "unknown"}))

	err := svc.Logout(ctx, models.RefreshTokenRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Issuer = "admissions-portal"
	svc := NewAuthService(&mockStaffRepo{}, validator.New(), zap.NewNop(), cfg)
	user := &models.StaffUser{ID: "s1", Email: "office@school.example", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := NewAuthService(&mockStaffRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "other"})
	_, err = other.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	foreign := NewAuthService(&mockStaffRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	_, err = foreign.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	expired := NewAuthService(&mockStaffRepo{}, nil, nil, cfg)
	stale, err := expired.generateAccessToken(user, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(stale)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
