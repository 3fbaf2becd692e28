package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/routebill/routebill-backend/pkg/auth"
	"github.com/routebill/routebill-backend/pkg/auth/session"
	"github.com/routebill/routebill-backend/pkg/config"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "routebill",
		ExpirationMinutes: 30,
	}
}

func TestServiceLoginAgent(t *testing.T) {
	password := "agent-secret"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "agent@routebill.test",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Route Agent",
		Role:         enums.UserRoleAgent,
		IsActive:     true,
	}
	cfg := testJWTConfig()
	svc, _ := buildTestService(t, user, cfg)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.UserRoleAgent {
		t.Fatalf("expected agent role claim, got %s", claims.Role)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s in claims, got %s", user.ID, claims.UserID)
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected refresh token to be set")
	}
	if resp.User == nil || resp.User.Email != user.Email {
		t.Fatalf("expected user dto in response")
	}
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "admin@routebill.test",
		PasswordHash: mustHashPassword(t, "right-password"),
		Name:         "Admin",
		Role:         enums.UserRoleAdmin,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user, testJWTConfig())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: "wrong-password",
	})
	requireUnauthorized(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@routebill.test",
		Password: "right-password",
	})
	requireUnauthorized(t, err)
}

func TestServiceLoginRejectsInactiveUser(t *testing.T) {
	password := "disabled"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "former@routebill.test",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Former Agent",
		Role:         enums.UserRoleAgent,
		IsActive:     false,
	}
	svc, _ := buildTestService(t, user, testJWTConfig())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    user.Email,
		Password: password,
	})
	requireUnauthorized(t, err)
}

func TestServiceRefreshRotatesSession(t *testing.T) {
	password := "rotate-me"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "admin@routebill.test",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Admin",
		Role:         enums.UserRoleAdmin,
		IsActive:     true,
	}
	cfg := testJWTConfig()
	svc, sessions := buildTestService(t, user, cfg)

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == login.AccessToken {
		t.Fatalf("expected a new access token after refresh")
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatalf("expected a new refresh token after refresh")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, refreshed.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleAdmin {
		t.Fatalf("rotated token lost identity claims")
	}

	// The old session key must be gone after rotation.
	oldClaims, err := pkgAuth.ParseAccessToken(cfg, login.AccessToken)
	if err != nil {
		t.Fatalf("parse original token: %v", err)
	}
	if _, ok := sessions.tokens[oldClaims.ID]; ok {
		t.Fatalf("expected old session to be revoked after rotation")
	}
}

func TestServiceRefreshRejectsWrongToken(t *testing.T) {
	password := "rotate-me"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "admin@routebill.test",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Admin",
		Role:         enums.UserRoleAdmin,
		IsActive:     true,
	}
	svc, _ := buildTestService(t, user, testJWTConfig())

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "not-the-stored-token",
	})
	requireUnauthorized(t, err)
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	password := "bye"
	user := &models.User{
		ID:           uuid.New(),
		Email:        "agent@routebill.test",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Route Agent",
		Role:         enums.UserRoleAgent,
		IsActive:     true,
	}
	cfg := testJWTConfig()
	svc, sessions := buildTestService(t, user, cfg)

	login, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: password})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(context.Background(), LogoutRequest{AccessToken: login.AccessToken}); err != nil {
		t.Fatalf("logout: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if _, ok := sessions.tokens[claims.ID]; ok {
		t.Fatalf("expected session to be revoked on logout")
	}
}

func buildTestService(t *testing.T, user *models.User, cfg config.JWTConfig) (Service, *stubSessionManager) {
	t.Helper()
	sessions := &stubSessionManager{tokens: map[string]string{}}
	svc, err := NewService(ServiceParams{
		UserRepo:       stubUserRepo{user: user},
		SessionManager: sessions,
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected unauthorized error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

type stubUserRepo struct {
	user *models.User
}

func (s stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubSessionManager struct {
	tokens map[string]string
	seq    int
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	s.seq++
	token := "refresh-" + uuid.NewString()
	s.tokens[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	newAccessID := session.NewAccessID()
	token, err := s.Generate(ctx, newAccessID)
	if err != nil {
		return "", "", err
	}
	return newAccessID, token, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(s.tokens, accessID)
	return nil
}
