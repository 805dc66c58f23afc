package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/infra/logger"
	"github.com/bmyhack/omms-api/internal/infra/security"
	"github.com/bmyhack/omms-api/internal/repository"
)

var (
	// ErrInvalidCredentials is returned when username or password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive is returned when a disabled account attempts to log in.
	ErrUserInactive = errors.New("user account is inactive")
	// ErrTooManyAttempts is returned when the login rate limit is exhausted.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// RateLimitedError carries the wait until the sliding window admits another
// attempt. It matches ErrTooManyAttempts under errors.Is.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many login attempts, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrTooManyAttempts }

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        domain.User
	Roles       []domain.Role
}

// AuthService authenticates users and resolves their permission sets.
type AuthService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
	tokens      *security.TokenManager
	hasher      *security.PasswordHasher
	cache       port.PermissionCache
	limiter     port.RateLimitStore
	audit       port.AuditPublisher
	log         *zap.Logger

	loginWindow      time.Duration
	loginMaxAttempts int
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	tokens *security.TokenManager,
	hasher *security.PasswordHasher,
	cache port.PermissionCache,
	limiter port.RateLimitStore,
	audit port.AuditPublisher,
	log *zap.Logger,
	loginWindow time.Duration,
	loginMaxAttempts int,
) *AuthService {
	return &AuthService{
		users:            users,
		roles:            roles,
		permissions:      permissions,
		tokens:           tokens,
		hasher:           hasher,
		cache:            cache,
		limiter:          limiter,
		audit:            audit,
		log:              log,
		loginWindow:      loginWindow,
		loginMaxAttempts: loginMaxAttempts,
	}
}

// Login verifies credentials and issues an access token. Failed attempts
// count against a per-client-IP sliding window.
func (s *AuthService) Login(ctx context.Context, username, password, clientIP string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	identifier := "login:ip:" + clientIP
	if clientIP == "" {
		identifier = "login:user:" + strings.ToLower(username)
	}
	if err := s.checkRateLimit(ctx, identifier); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAttempt(ctx, identifier)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordAttempt(ctx, identifier)
		s.log.Warn("login failed",
			zap.String("username", username),
			zap.String("client_ip", logger.MaskIP(clientIP)),
		)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	roles, err := s.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.IsSuperuser, roleNames)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	if s.audit != nil {
		_ = s.audit.PublishAudit(ctx, domain.AuditEvent{
			Action:     domain.AuditActionLogin,
			EntityType: "user",
			EntityID:   user.ID,
			ActorID:    user.ID,
			OccurredAt: now,
			Details:    map[string]any{"client_ip": logger.MaskIP(clientIP)},
		})
	}

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        *user,
		Roles:       roles,
	}, nil
}

// CurrentUser loads the authenticated user's profile with the assigned roles.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*domain.User, []domain.Role, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	roles, err := s.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list user roles: %w", err)
	}
	return user, roles, nil
}

// ParseAccessToken validates a bearer token and returns its claims.
func (s *AuthService) ParseAccessToken(token string) (*security.AccessClaims, error) {
	return s.tokens.Parse(token)
}

// ResolvePermissions returns the effective permission codes for a user.
// Superusers receive the full catalog. Results are cached under the
// current epoch.
func (s *AuthService) ResolvePermissions(ctx context.Context, userID int64, isSuperuser bool) ([]string, error) {
	if isSuperuser {
		return s.permissions.ListAllCodes(ctx)
	}

	if s.cache != nil {
		if codes, hit, err := s.cache.Get(ctx, userID); err == nil && hit {
			return codes, nil
		} else if err != nil {
			s.log.Warn("permission cache read", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	codes, err := s.permissions.ListCodesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user permissions: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, codes); err != nil {
			s.log.Warn("permission cache write", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return codes, nil
}

func (s *AuthService) checkRateLimit(ctx context.Context, identifier string) error {
	if s.limiter == nil || s.loginMaxAttempts <= 0 {
		return nil
	}

	now := time.Now().UTC()
	if err := s.limiter.TrimWindow(ctx, identifier, s.loginWindow, now); err != nil {
		s.log.Warn("rate limit trim", zap.Error(err))
		return nil
	}
	count, err := s.limiter.CountAttempts(ctx, identifier, s.loginWindow, now)
	if err != nil {
		s.log.Warn("rate limit count", zap.Error(err))
		return nil
	}
	if count >= s.loginMaxAttempts {
		retryAfter := s.loginWindow
		if oldest, ok, err := s.limiter.OldestAttempt(ctx, identifier, s.loginWindow, now); err == nil && ok {
			if wait := oldest.Add(s.loginWindow).Sub(now); wait > 0 {
				retryAfter = wait
			}
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	}
	return nil
}

func (s *AuthService) recordAttempt(ctx context.Context, identifier string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordAttempt(ctx, identifier, time.Now().UTC()); err != nil {
		s.log.Warn("rate limit record", zap.Error(err))
	}
}
