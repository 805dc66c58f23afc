package handlers

import (
	"github.com/bmyhack/omms-api/internal/core/domain"
)

func toUserPayload(user domain.User, roles []domain.Role) UserPayload {
	payload := UserPayload{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		Phone:       user.Phone,
		Avatar:      user.Avatar,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLogin:   user.LastLogin,
	}
	for _, role := range roles {
		payload.Roles = append(payload.Roles, toRolePayload(role, nil))
	}
	return payload
}

func toRolePayload(role domain.Role, permissions []domain.Permission) RolePayload {
	payload := RolePayload{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
	for _, permission := range permissions {
		payload.Permissions = append(payload.Permissions, toPermissionPayload(permission))
	}
	return payload
}

func toPermissionPayload(permission domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          permission.ID,
		Code:        permission.Code,
		Name:        permission.Name,
		Description: permission.Description,
		CreatedAt:   permission.CreatedAt,
		UpdatedAt:   permission.UpdatedAt,
	}
}

func toPermissionIDs(permissions []domain.Permission) PermissionIDsResponse {
	ids := make([]int64, 0, len(permissions))
	for _, permission := range permissions {
		ids = append(ids, permission.ID)
	}
	return PermissionIDsResponse{PermissionIDs: ids}
}

func pageCount(total, size int) int {
	if size <= 0 {
		return 0
	}
	pages := total / size
	if total%size != 0 {
		pages++
	}
	return pages
}
