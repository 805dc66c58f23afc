package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/infra/logger"
	"github.com/bmyhack/omms-api/internal/infra/security"
	"github.com/bmyhack/omms-api/internal/repository"
)

var (
	// ErrUsernameTaken indicates another user already owns the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken indicates another user already owns the email.
	ErrEmailTaken = errors.New("email already taken")
	// ErrValidation wraps field-level validation failures.
	ErrValidation = errors.New("validation failed")
)

// CreateUserInput captures the payload for creating a user.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	FullName    *string
	Phone       *string
	Avatar      *string
	IsActive    *bool
	IsSuperuser *bool
}

// UpdateUserInput captures a partial user update. Nil fields are left
// unchanged.
type UpdateUserInput struct {
	Username    *string
	Email       *string
	Password    *string
	FullName    *string
	Phone       *string
	Avatar      *string
	IsActive    *bool
	IsSuperuser *bool
}

// ListUsersInput narrows and pages a user listing.
type ListUsersInput struct {
	Username    string
	Email       string
	IsActive    *bool
	IsSuperuser *bool
	Page        int
	Size        int
}

// UserService manages user accounts.
type UserService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
	hasher      *security.PasswordHasher
	cache       port.PermissionCache
	audit       port.AuditPublisher
	log         *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(
	users port.UserRepository,
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	hasher *security.PasswordHasher,
	cache port.PermissionCache,
	audit port.AuditPublisher,
	log *zap.Logger,
) *UserService {
	return &UserService{users: users, roles: roles, permissions: permissions, hasher: hasher, cache: cache, audit: audit, log: log}
}

// ListUsers returns one page of users with the total match count.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) ([]domain.User, int, error) {
	page, size := normalizePage(input.Page, input.Size)
	filter := port.UserFilter{
		Username:    strings.TrimSpace(input.Username),
		Email:       strings.TrimSpace(input.Email),
		IsActive:    input.IsActive,
		IsSuperuser: input.IsSuperuser,
		Limit:       size,
		Offset:      (page - 1) * size,
	}

	total, err := s.users.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// GetUser returns a single user together with the assigned roles.
func (s *UserService) GetUser(ctx context.Context, id int64) (*domain.User, []domain.Role, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	roles, err := s.roles.ListByUser(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list user roles: %w", err)
	}
	return user, roles, nil
}

// CreateUser validates and provisions a new account.
func (s *UserService) CreateUser(ctx context.Context, actorID int64, input CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}

	validator := security.DefaultPasswordValidator(username, email)
	if err := validator.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		Username:     username,
		Email:        email,
		FullName:     trimOptional(input.FullName),
		Phone:        trimOptional(input.Phone),
		Avatar:       trimOptional(input.Avatar),
		PasswordHash: hash,
		IsActive:     true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.IsSuperuser != nil {
		user.IsSuperuser = *input.IsSuperuser
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, userConflictError(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishAudit(ctx, domain.AuditActionCreate, "user", created.ID, actorID, map[string]any{
		"username": created.Username,
		"email":    logger.MaskEmail(created.Email),
	})
	return created, nil
}

// UpdateUser applies a partial update to an existing account.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id int64, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrValidation)
		}
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username, id); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}
	if input.Email != nil {
		email := strings.TrimSpace(*input.Email)
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
		}
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if input.Password != nil {
		validator := security.DefaultPasswordValidator(user.Username, user.Email)
		if err := validator.Validate(*input.Password); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if input.FullName != nil {
		user.FullName = trimOptional(input.FullName)
	}
	if input.Phone != nil {
		user.Phone = trimOptional(input.Phone)
	}
	if input.Avatar != nil {
		user.Avatar = trimOptional(input.Avatar)
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.IsSuperuser != nil {
		user.IsSuperuser = *input.IsSuperuser
	}

	if err := s.users.Update(ctx, *user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, userConflictError(err)
		}
		return nil, err
	}

	s.publishAudit(ctx, domain.AuditActionUpdate, "user", id, actorID, map[string]any{
		"username": user.Username,
	})
	return user, nil
}

// DeleteUser removes the account and its role assignments.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id int64) error {
	if err := s.users.ReplaceRoles(ctx, id, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear user roles: %w", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionDelete, "user", id, actorID, nil)
	return nil
}

// GetUserRoles returns the roles assigned to a user.
func (s *UserService) GetUserRoles(ctx context.Context, id int64) ([]domain.Role, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.roles.ListByUser(ctx, id)
}

// GetUserPermissions returns the effective permission codes of a user. A
// superuser holds the whole catalog.
func (s *UserService) GetUserPermissions(ctx context.Context, id int64) ([]string, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSuperuser {
		return s.permissions.ListAllCodes(ctx)
	}
	return s.permissions.ListCodesByUser(ctx, id)
}

// ReplaceUserRoles swaps the complete role set of a user.
func (s *UserService) ReplaceUserRoles(ctx context.Context, actorID, id int64, roleIDs []int64) ([]domain.Role, error) {
	if err := s.users.ReplaceRoles(ctx, id, roleIDs); err != nil {
		return nil, err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionReplace, "user_roles", id, actorID, map[string]any{
		"role_ids": roleIDs,
	})
	return s.roles.ListByUser(ctx, id)
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username string, selfID int64) error {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user by username: %w", err)
	}
	if existing.ID != selfID {
		return ErrUsernameTaken
	}
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, selfID int64) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user by email: %w", err)
	}
	if existing.ID != selfID {
		return ErrEmailTaken
	}
	return nil
}

// userConflictError resolves a unique violation that raced past the
// pre-checks to the field it concerns.
func userConflictError(err error) error {
	var conflict *repository.ConflictError
	if errors.As(err, &conflict) && strings.Contains(conflict.Constraint, "email") {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

func (s *UserService) bumpPermissionCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpEpoch(ctx); err != nil {
		s.log.Warn("permission cache bump", zap.Error(err))
	}
}

func (s *UserService) publishAudit(ctx context.Context, action, entityType string, entityID, actorID int64, details map[string]any) {
	if s.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
	}
	if err := s.audit.PublishAudit(ctx, event); err != nil {
		s.log.Warn("publish audit event", zap.String("action", action), zap.Error(err))
	}
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
