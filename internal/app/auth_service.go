package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/webscanio/api/internal/config"
	"github.com/webscanio/api/internal/metrics"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/domain/user"
	"github.com/webscanio/api/pkg/jwt"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/password"
)

// TokenStore tracks issued refresh tokens by hash. Rotation reports false
// when the presented token is not live, which means it was already rotated
// or revoked.
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, tokenHash string, ttl time.Duration) error
	RotateRefreshToken(ctx context.Context, userID, oldTokenHash, newTokenHash string, ttl time.Duration) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
}

// AuthService handles registration, login, and token refresh.
type AuthService struct {
	userRepo       user.Repository
	tokens         TokenStore
	passwordHasher *password.Hasher
	tokenGenerator *jwt.Generator
	config         config.AuthConfig
	logger         *logger.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo user.Repository,
	tokens TokenStore,
	cfg config.AuthConfig,
	log *logger.Logger,
) *AuthService {
	hasher := password.New(password.WithPolicy(password.Policy{
		MinLength:      cfg.PasswordMinLength,
		RequireUpper:   cfg.PasswordRequireUpper,
		RequireLower:   cfg.PasswordRequireLower,
		RequireNumber:  cfg.PasswordRequireNumber,
		RequireSpecial: cfg.PasswordRequireSpecial,
	}))

	tokenGen := jwt.NewGenerator(jwt.TokenConfig{
		Secret:               cfg.JWTSecret,
		Issuer:               cfg.JWTIssuer,
		AccessTokenDuration:  cfg.AccessTokenDuration,
		RefreshTokenDuration: cfg.RefreshTokenDuration,
	})

	return &AuthService{
		userRepo:       userRepo,
		tokens:         tokens,
		passwordHasher: hasher,
		tokenGenerator: tokenGen,
		config:         cfg,
		logger:         log.With("service", "auth"),
	}
}

// RegisterInput represents the input for user registration.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginInput represents the input for login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult carries the authenticated user and an issued token pair.
type AuthResult struct {
	User         *user.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Register creates a new user account and issues a token pair.
// A duplicate email surfaces as the repository's duplicate error.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if !s.config.AllowRegistration {
		return nil, shared.Forbidden("Registration is disabled")
	}

	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.Name)

	if err := s.passwordHasher.Validate(input.Password); err != nil {
		return nil, shared.InvalidInput(err.Error())
	}

	passwordHash, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := user.New(email, name, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	metrics.RegistrationsTotal.Inc()
	s.logger.Info("user registered", "user_id", newUser.ID().String(), "email", email)

	return s.issueTokens(ctx, newUser)
}

// Login verifies credentials and issues a token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if shared.IsNotFound(err) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return nil, shared.Unauthenticated("Invalid credentials")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.IsLocked() {
		return nil, shared.Forbidden("Account temporarily locked")
	}
	if u.Status() == user.StatusSuspended {
		return nil, shared.Forbidden("Account is suspended")
	}

	if err := s.passwordHasher.Verify(input.Password, u.PasswordHash()); err != nil {
		u.RecordFailedLogin(s.config.MaxLoginAttempts, s.config.LockoutDuration)
		if updateErr := s.userRepo.Update(ctx, u); updateErr != nil {
			s.logger.Error("failed to record failed login", "error", updateErr)
		}
		if u.IsLocked() {
			// The lockout invalidates outstanding refresh tokens too,
			// otherwise a stolen refresh token rides out the lock.
			if revokeErr := s.tokens.RevokeAllRefreshTokens(ctx, u.ID().String()); revokeErr != nil {
				s.logger.Error("failed to revoke refresh tokens on lockout", "error", revokeErr)
			}
			s.logger.Warn("account locked after failed logins",
				"user_id", u.ID().String(),
				"attempts", u.FailedLoginAttempts(),
			)
		}
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, shared.Unauthenticated("Invalid credentials")
	}

	// Upgrade hashes stored with an older cost factor
	if s.passwordHasher.NeedsRehash(u.PasswordHash()) {
		if newHash, hashErr := s.passwordHasher.Hash(input.Password); hashErr == nil {
			if setErr := u.SetPasswordHash(newHash); setErr == nil {
				if updateErr := s.userRepo.Update(ctx, u); updateErr != nil {
					s.logger.Error("failed to store rehashed password", "error", updateErr)
				}
			}
		}
	}

	u.RecordSuccessfulLogin()
	if err := s.userRepo.Update(ctx, u); err != nil {
		s.logger.Error("failed to record successful login", "error", err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", "user_id", u.ID().String())

	return s.issueTokens(ctx, u)
}

// Refresh rotates a refresh token and issues a new token pair. A token
// that fails verification or was already rotated is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		return nil, shared.Unauthenticated("Invalid refresh token")
	}

	userID, err := shared.ParseID(claims.UserID)
	if err != nil {
		return nil, shared.Unauthenticated("Invalid refresh token")
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.Unauthenticated("Invalid refresh token")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if u.Status() == user.StatusSuspended {
		return nil, shared.Forbidden("Account is suspended")
	}

	pair, err := s.tokenGenerator.GenerateTokenPair(u.ID().String(), u.Email(), u.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	rotated, err := s.tokens.RotateRefreshToken(ctx,
		u.ID().String(),
		hashToken(refreshToken),
		hashToken(pair.RefreshToken),
		s.config.RefreshTokenDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !rotated {
		metrics.TokenRefreshesTotal.WithLabelValues("failure").Inc()
		s.logger.Warn("refresh token replay detected", "user_id", u.ID().String())
		return nil, shared.Unauthenticated("Invalid refresh token")
	}

	metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	return &AuthResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

// GetCurrentUser returns the profile for an authenticated subject.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID shared.ID) (*user.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// WSTokenTTL bounds how long a WebSocket handshake token stays valid.
// The token travels as a query parameter, so it must expire before it
// is worth stealing from an access log.
const WSTokenTTL = 30 * time.Second

// IssueWSToken mints a short-lived token for the WebSocket handshake,
// where the credential rides in the query string instead of a header.
func (s *AuthService) IssueWSToken(ctx context.Context, userID shared.ID) (string, time.Duration, error) {
	token, err := s.tokenGenerator.GenerateShortLivedToken(userID.String(), WSTokenTTL)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate websocket token: %w", err)
	}
	return token, WSTokenTTL, nil
}

// issueTokens generates a token pair and records the refresh token hash.
func (s *AuthService) issueTokens(ctx context.Context, u *user.User) (*AuthResult, error) {
	pair, err := s.tokenGenerator.GenerateTokenPair(u.ID().String(), u.Email(), u.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.tokens.StoreRefreshToken(ctx,
		u.ID().String(),
		hashToken(pair.RefreshToken),
		s.config.RefreshTokenDuration,
	); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResult{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}

// hashToken hashes a token for storage. Tokens are never stored verbatim.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
