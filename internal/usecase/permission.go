package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/repository"
)

var (
	// ErrPermissionExists indicates a permission with the code already exists.
	ErrPermissionExists = errors.New("permission already exists")
	// ErrPermissionInUse indicates the permission is assigned to a role, so
	// its code cannot change.
	ErrPermissionInUse = errors.New("permission is assigned to a role")
)

var permissionCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*:[a-z][a-z0-9_]*$`)

// CreatePermissionInput captures the payload for creating a permission.
type CreatePermissionInput struct {
	Code        string
	Name        string
	Description *string
}

// UpdatePermissionInput captures a partial permission update.
type UpdatePermissionInput struct {
	Code        *string
	Name        *string
	Description *string
}

// ListPermissionsInput narrows and pages a permission listing.
type ListPermissionsInput struct {
	Code string
	Name string
	Page int
	Size int
}

// PermissionService manages the permission catalog.
type PermissionService struct {
	permissions port.PermissionRepository
	cache       port.PermissionCache
	audit       port.AuditPublisher
	log         *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(
	permissions port.PermissionRepository,
	cache port.PermissionCache,
	audit port.AuditPublisher,
	log *zap.Logger,
) *PermissionService {
	return &PermissionService{permissions: permissions, cache: cache, audit: audit, log: log}
}

// ListPermissions returns one page of permissions with the total match count.
func (s *PermissionService) ListPermissions(ctx context.Context, input ListPermissionsInput) ([]domain.Permission, int, error) {
	page, size := normalizePage(input.Page, input.Size)
	filter := port.PermissionFilter{
		Code:   strings.TrimSpace(input.Code),
		Name:   strings.TrimSpace(input.Name),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	total, err := s.permissions.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count permissions: %w", err)
	}

	permissions, err := s.permissions.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, total, nil
}

// GetPermission returns a single permission.
func (s *PermissionService) GetPermission(ctx context.Context, id int64) (*domain.Permission, error) {
	return s.permissions.GetByID(ctx, id)
}

// CreatePermission validates and stores a new permission.
func (s *PermissionService) CreatePermission(ctx context.Context, actorID int64, input CreatePermissionInput) (*domain.Permission, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if !permissionCodePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: permission code must match resource:action", ErrValidation)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrValidation)
	}

	if existing, err := s.permissions.GetByCode(ctx, code); err == nil && existing != nil {
		return nil, ErrPermissionExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup permission by code: %w", err)
	}

	permission := domain.Permission{
		Code:        code,
		Name:        name,
		Description: trimOptional(input.Description),
	}
	created, err := s.permissions.Create(ctx, permission)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPermissionExists
		}
		return nil, fmt.Errorf("create permission: %w", err)
	}

	s.publishAudit(ctx, domain.AuditActionCreate, "permission", created.ID, actorID, map[string]any{
		"code": created.Code,
	})
	return created, nil
}

// UpdatePermission applies a partial update. The code is immutable once the
// permission is assigned to any role.
func (s *PermissionService) UpdatePermission(ctx context.Context, actorID, id int64, input UpdatePermissionInput) (*domain.Permission, error) {
	permission, err := s.permissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		if code != permission.Code {
			if !permissionCodePattern.MatchString(code) {
				return nil, fmt.Errorf("%w: permission code must match resource:action", ErrValidation)
			}
			references, err := s.permissions.CountRoleReferences(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("count role references: %w", err)
			}
			if references > 0 {
				return nil, ErrPermissionInUse
			}
			if existing, err := s.permissions.GetByCode(ctx, code); err == nil && existing != nil && existing.ID != id {
				return nil, ErrPermissionExists
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("lookup permission by code: %w", err)
			}
			permission.Code = code
		}
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: permission name cannot be empty", ErrValidation)
		}
		permission.Name = name
	}
	if input.Description != nil {
		permission.Description = trimOptional(input.Description)
	}

	if err := s.permissions.Update(ctx, *permission); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPermissionExists
		}
		return nil, err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionUpdate, "permission", id, actorID, map[string]any{
		"code": permission.Code,
	})
	return permission, nil
}

// DeletePermission removes a permission. Assignment rows in role_permissions
// cascade with it, so every role silently loses the grant.
func (s *PermissionService) DeletePermission(ctx context.Context, actorID, id int64) error {
	permission, err := s.permissions.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.permissions.Delete(ctx, id); err != nil {
		return err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionDelete, "permission", id, actorID, map[string]any{
		"code": permission.Code,
	})
	return nil
}

func (s *PermissionService) bumpPermissionCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpEpoch(ctx); err != nil {
		s.log.Warn("permission cache bump", zap.Error(err))
	}
}

func (s *PermissionService) publishAudit(ctx context.Context, action, entityType string, entityID, actorID int64, details map[string]any) {
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
