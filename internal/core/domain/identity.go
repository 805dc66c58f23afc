package domain

import "time"

// User mirrors the persisted representation in the users table.
// PasswordHash never leaves the service layer.
type User struct {
	ID           int64
	Username     string
	Email        string
	FullName     *string
	Phone        *string
	Avatar       *string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time
}
