package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency probe.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// PermissionPayload describes a permission returned by the API.
type PermissionPayload struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePayload describes a role returned by the API.
type RolePayload struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description *string             `json:"description,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Permissions []PermissionPayload `json:"permissions,omitempty"`
}

// UserPayload describes a user returned by the API. The password hash is
// never exposed.
type UserPayload struct {
	ID          int64         `json:"id"`
	Username    string        `json:"username"`
	Email       string        `json:"email"`
	FullName    *string       `json:"full_name,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Avatar      *string       `json:"avatar,omitempty"`
	IsActive    bool          `json:"is_active"`
	IsSuperuser bool          `json:"is_superuser"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	LastLogin   *time.Time    `json:"last_login,omitempty"`
	Roles       []RolePayload `json:"roles,omitempty"`
}

// UserListResponse is a paginated envelope of users.
type UserListResponse struct {
	Items []UserPayload `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Pages int           `json:"pages"`
}

// RoleListResponse is a paginated envelope of roles.
type RoleListResponse struct {
	Items []RolePayload `json:"items"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Pages int           `json:"pages"`
}

// PermissionListResponse is a paginated envelope of permissions.
type PermissionListResponse struct {
	Items []PermissionPayload `json:"items"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
	Pages int                 `json:"pages"`
}

// PermissionIDsResponse lists the permission ids assigned to a role.
type PermissionIDsResponse struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

// PermissionCodesResponse lists effective permission codes.
type PermissionCodesResponse struct {
	Permissions []string `json:"permissions"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        UserPayload `json:"user"`
}

// UserCreateRequest defines the payload for creating a user.
type UserCreateRequest struct {
	Username    string  `json:"username" binding:"required"`
	Email       string  `json:"email" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	FullName    *string `json:"full_name"`
	Phone       *string `json:"phone"`
	Avatar      *string `json:"avatar"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// UserUpdateRequest defines a partial user update. Absent fields are left
// unchanged.
type UserUpdateRequest struct {
	Username    *string `json:"username"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	FullName    *string `json:"full_name"`
	Phone       *string `json:"phone"`
	Avatar      *string `json:"avatar"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// UserRolesReplaceRequest carries the full role set to assign to a user.
type UserRolesReplaceRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

// RoleCreateRequest defines the payload for creating a role.
type RoleCreateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// RoleUpdateRequest defines a partial role update.
type RoleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// RolePermissionsReplaceRequest carries the full permission set to assign
// to a role.
type RolePermissionsReplaceRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

// PermissionCreateRequest defines the payload for creating a permission.
type PermissionCreateRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// PermissionUpdateRequest defines a partial permission update.
type PermissionUpdateRequest struct {
	Code        *string `json:"code"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}
