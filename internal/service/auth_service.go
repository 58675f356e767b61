package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/access"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 8

// AuthService coordinates registration, login and token refresh.
type AuthService struct {
	users      repository.UserRepository
	granter    *access.PermissionGranter
	tokens     *auth.TokenManager
	refresh    auth.RefreshStore
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Granter      *access.PermissionGranter
	Tokens       *auth.TokenManager
	RefreshStore auth.RefreshStore
	BcryptCost   int
	Logger       *zap.Logger
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User    *domain.User
	Access  auth.IssuedToken
	Refresh auth.IssuedToken
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email       string
	Password    string
	Role        string
	IsStaff     bool
	IsSuperuser bool
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		granter:    deps.Granter,
		tokens:     deps.Tokens,
		refresh:    deps.RefreshStore,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

// Login authenticates by email and password and issues an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.CompareDecoy(password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUnauthorized("user is inactive")
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.refresh.Save(ctx, refreshToken.JTI, user.ID, s.tokens.RefreshTTL()); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &LoginResult{User: user, Access: accessToken, Refresh: refreshToken}, nil
}

// Refresh exchanges a live refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (auth.IssuedToken, error) {
	claims, err := s.redeemable(ctx, refreshToken)
	if err != nil {
		return auth.IssuedToken{}, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.IssuedToken{}, apperrors.NewUnauthorized("user not found")
		}
		return auth.IssuedToken{}, apperrors.MapError(err)
	}
	if !user.IsActive {
		return auth.IssuedToken{}, apperrors.NewUnauthorized("user is inactive")
	}

	issued, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return auth.IssuedToken{}, apperrors.NewInternalError(err)
	}
	return issued, nil
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.redeemable(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.refresh.Revoke(ctx, claims.ID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *AuthService) redeemable(ctx context.Context, refreshToken string) (*auth.Claims, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.NewValidationError("refresh_token is required", nil)
	}
	claims, err := s.tokens.ParseToken(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid refresh token")
	}
	owner, err := s.refresh.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenRevoked) {
			return nil, apperrors.NewUnauthorized("refresh token revoked")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if owner != claims.Subject {
		return nil, apperrors.NewUnauthorized("invalid refresh token")
	}
	return claims, nil
}

// RegisterUser creates an account and grants the permissions derived from its role.
// When the grant fails the created user is returned together with the error;
// a later permission reconcile repairs it.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	if len(input.Password) < MinPasswordLength {
		return nil, apperrors.NewValidationError("password is too short", map[string]any{
			"field":      "password",
			"min_length": MinPasswordLength,
		})
	}
	role := domain.RoleAttendant
	if raw := strings.TrimSpace(input.Role); raw != "" {
		parsed, ok := domain.ParseRole(raw)
		if !ok {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"field": "role", "value": raw})
		}
		role = parsed
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsStaff:      input.IsStaff,
		IsSuperuser:  input.IsSuperuser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	if s.granter != nil {
		if err := s.granter.Grant(ctx, user); err != nil {
			return user, apperrors.NewInternalError(err)
		}
	}
	return user, nil
}
