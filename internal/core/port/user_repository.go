package port

import (
	"context"
	"time"

	"github.com/bmyhack/omms-api/internal/core/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Username    string
	Email       string
	IsActive    *bool
	IsSuperuser *bool
	Limit       int
	Offset      int
}

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id int64) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	GetUserRoles(ctx context.Context, userID int64) ([]int64, error)
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
}
