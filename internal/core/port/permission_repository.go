package port

import (
	"context"

	"github.com/bmyhack/omms-api/internal/core/domain"
)

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	Code   string
	Name   string
	Limit  int
	Offset int
}

// PermissionRepository manages permission storage.
type PermissionRepository interface {
	Create(ctx context.Context, permission domain.Permission) (*domain.Permission, error)
	GetByID(ctx context.Context, id int64) (*domain.Permission, error)
	GetByCode(ctx context.Context, code string) (*domain.Permission, error)
	List(ctx context.Context, filter PermissionFilter) ([]domain.Permission, error)
	Count(ctx context.Context, filter PermissionFilter) (int, error)
	Update(ctx context.Context, permission domain.Permission) error
	Delete(ctx context.Context, id int64) error
	CountRoleReferences(ctx context.Context, permissionID int64) (int, error)
	ListByRole(ctx context.Context, roleID int64) ([]domain.Permission, error)
	ListCodesByUser(ctx context.Context, userID int64) ([]string, error)
	ListAllCodes(ctx context.Context) ([]string, error)
}
