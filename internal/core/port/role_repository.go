package port

import (
	"context"

	"github.com/bmyhack/omms-api/internal/core/domain"
)

// RoleFilter narrows role listings.
type RoleFilter struct {
	Name   string
	Limit  int
	Offset int
}

// RoleRepository handles role CRUD and permission assignment.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) (*domain.Role, error)
	GetByID(ctx context.Context, id int64) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context, filter RoleFilter) ([]domain.Role, error)
	Count(ctx context.Context, filter RoleFilter) (int, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id int64) error
	GetRolePermissions(ctx context.Context, roleID int64) ([]int64, error)
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Role, error)
}
