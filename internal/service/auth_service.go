package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

const (
	minPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	tokenTypeBearer  = "Bearer"
)

// AuthService coordinates registration, login and bearer token resolution.
type AuthService struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	TokenRepo repository.TokenRepository
	Logger    *zap.Logger
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.TokenRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a new account. Emails are compared case-insensitively.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = normalizeEmail(input.Email)

	details := map[string]any{}
	if input.FirstName == "" {
		details["first_name"] = "is required"
	}
	if input.LastName == "" {
		details["last_name"] = "is required"
	}
	if msg := validateEmail(input.Email); msg != "" {
		details["email"] = msg
	}
	switch {
	case input.Password == "":
		details["password"] = "is required"
	case len([]rune(input.Password)) < minPasswordLength:
		details["password"] = "must be at least 6 characters"
	case len(input.Password) > maxPasswordBytes:
		details["password"] = "must be at most 72 bytes"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration payload", details)
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, emailTaken(input.Email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, emailTaken(input.Email)
		}
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues a fresh bearer token. Previously
// issued tokens stay valid.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.IssuedToken, error) {
	email = normalizeEmail(email)

	details := map[string]any{}
	if msg := validateEmail(email); msg != "" {
		details["email"] = msg
	}
	if password == "" {
		details["password"] = "is required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid login payload", details)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidationError("invalid login payload",
				map[string]any{"email": "the selected email is invalid"})
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}

	signed, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	record := &domain.AccessToken{
		ID:        signed.ID,
		UserID:    user.ID,
		ExpiresAt: signed.ExpiresAt,
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("token_id", record.ID))
	return &domain.IssuedToken{
		Token:     signed.Token,
		TokenType: tokenTypeBearer,
		ExpiresAt: signed.ExpiresAt,
		Record:    record,
	}, nil
}

// Authenticate resolves a raw bearer token to its user. The token must carry
// a valid signature, be known to the token store, be neither expired nor
// revoked, and belong to a user that still exists.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, *domain.AccessToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil, apperrors.NewUnauthorized("missing token")
	}

	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid token")
	}

	record, err := s.tokens.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid token")
		}
		return nil, nil, err
	}
	if !record.Active(s.now()) {
		return nil, nil, apperrors.NewUnauthorized("token expired or revoked")
	}
	if record.UserID != claims.UserID {
		return nil, nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, nil, err
	}
	return user, record, nil
}

// Logout revokes the presented token only; other sessions of the user survive.
func (s *AuthService) Logout(ctx context.Context, tokenID string) error {
	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("token already revoked")
		}
		return err
	}
	s.logger.Info("token revoked", zap.String("token_id", tokenID))
	return nil
}

// TokenManager exposes the underlying token manager.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateEmail returns a problem description, or "" when the address is usable.
// Display-name forms like "Bob <bob@x.com>" are rejected.
func validateEmail(email string) string {
	if email == "" {
		return "is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "must be a valid email address"
	}
	return ""
}

func emailTaken(email string) error {
	return apperrors.NewConflict("email already registered", map[string]any{"email": email})
}
