package domain

import "time"

// Role defines a named bundle of permissions assignable to users.
type Role struct {
	ID          int64
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission defines an atomic capability identified by a unique code
// such as "role:edit". Codes are immutable once a role references them.
type Permission struct {
	ID          int64
	Code        string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RolePermission links a role with a permission.
type RolePermission struct {
	RoleID       int64
	PermissionID int64
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID int64
	RoleID int64
}
