package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/domain"
	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/repository"
)

var (
	// ErrRoleExists indicates a role with the provided name already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleProtected indicates the role is reserved and cannot be removed.
	ErrRoleProtected = errors.New("role is protected")
)

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string
	Description *string
}

// UpdateRoleInput captures a partial role update.
type UpdateRoleInput struct {
	Name        *string
	Description *string
}

// ListRolesInput narrows and pages a role listing.
type ListRolesInput struct {
	Name string
	Page int
	Size int
}

// RoleService manages roles and their permission assignments.
type RoleService struct {
	roles          port.RoleRepository
	permissions    port.PermissionRepository
	cache          port.PermissionCache
	audit          port.AuditPublisher
	log            *zap.Logger
	protectedRoles map[string]struct{}
}

// NewRoleService constructs a RoleService. Protected role names cannot be
// renamed or deleted.
func NewRoleService(
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	cache port.PermissionCache,
	audit port.AuditPublisher,
	log *zap.Logger,
	protectedRoles []string,
) *RoleService {
	protected := make(map[string]struct{}, len(protectedRoles))
	for _, name := range protectedRoles {
		protected[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	return &RoleService{
		roles:          roles,
		permissions:    permissions,
		cache:          cache,
		audit:          audit,
		log:            log,
		protectedRoles: protected,
	}
}

// ListRoles returns one page of roles with the total match count.
func (s *RoleService) ListRoles(ctx context.Context, input ListRolesInput) ([]domain.Role, int, error) {
	page, size := normalizePage(input.Page, input.Size)
	filter := port.RoleFilter{
		Name:   strings.TrimSpace(input.Name),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	total, err := s.roles.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}

	roles, err := s.roles.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	return roles, total, nil
}

// GetRole returns a single role together with its permissions.
func (s *RoleService) GetRole(ctx context.Context, id int64) (*domain.Role, []domain.Permission, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	permissions, err := s.permissions.ListByRole(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list role permissions: %w", err)
	}
	return role, permissions, nil
}

// CreateRole provisions a new role.
func (s *RoleService) CreateRole(ctx context.Context, actorID int64, input CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrValidation)
	}

	if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by name: %w", err)
	}

	role := domain.Role{Name: name, Description: trimOptional(input.Description)}
	created, err := s.roles.Create(ctx, role)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.publishAudit(ctx, domain.AuditActionCreate, "role", created.ID, actorID, map[string]any{
		"name": created.Name,
	})
	return created, nil
}

// UpdateRole applies a partial update. Protected roles keep their name.
func (s *RoleService) UpdateRole(ctx context.Context, actorID, id int64, input UpdateRoleInput) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role name cannot be empty", ErrValidation)
		}
		if name != role.Name {
			if s.isProtected(role.Name) {
				return nil, ErrRoleProtected
			}
			if existing, err := s.roles.GetByName(ctx, name); err == nil && existing != nil && existing.ID != id {
				return nil, ErrRoleExists
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("lookup role by name: %w", err)
			}
			role.Name = name
		}
	}
	if input.Description != nil {
		role.Description = trimOptional(input.Description)
	}

	if err := s.roles.Update(ctx, *role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrRoleExists
		}
		return nil, err
	}

	s.publishAudit(ctx, domain.AuditActionUpdate, "role", id, actorID, map[string]any{
		"name": role.Name,
	})
	return role, nil
}

// DeleteRole removes the role and all of its assignments.
func (s *RoleService) DeleteRole(ctx context.Context, actorID, id int64) error {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.isProtected(role.Name) {
		return ErrRoleProtected
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		return err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionDelete, "role", id, actorID, map[string]any{
		"name": role.Name,
	})
	return nil
}

// GetRolePermissions returns the permissions assigned to a role.
func (s *RoleService) GetRolePermissions(ctx context.Context, id int64) ([]domain.Permission, error) {
	if _, err := s.roles.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.permissions.ListByRole(ctx, id)
}

// ReplacePermissions swaps the complete permission set of a role.
func (s *RoleService) ReplacePermissions(ctx context.Context, actorID, id int64, permissionIDs []int64) ([]domain.Permission, error) {
	if err := s.roles.ReplacePermissions(ctx, id, permissionIDs); err != nil {
		return nil, err
	}

	s.bumpPermissionCache(ctx)
	s.publishAudit(ctx, domain.AuditActionReplace, "role_permissions", id, actorID, map[string]any{
		"permission_ids": permissionIDs,
	})
	return s.permissions.ListByRole(ctx, id)
}

func (s *RoleService) isProtected(name string) bool {
	_, ok := s.protectedRoles[strings.ToLower(name)]
	return ok
}

func (s *RoleService) bumpPermissionCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.BumpEpoch(ctx); err != nil {
		s.log.Warn("permission cache bump", zap.Error(err))
	}
}

func (s *RoleService) publishAudit(ctx context.Context, action, entityType string, entityID, actorID int64, details map[string]any) {
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
