package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles the PostgreSQL-backed repositories.
type Repositories struct {
	Users       *UserRepo
	Roles       *RoleRepo
	Permissions *PermissionRepo
}

// NewRepositories constructs every repository on a shared pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:       NewUserRepo(pool),
		Roles:       NewRoleRepo(pool),
		Permissions: NewPermissionRepo(pool),
	}
}
