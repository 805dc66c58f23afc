package usecase

// Permission codes checked by the HTTP layer. Administrators manage the
// catalog at runtime; these constants cover the access-control endpoints
// this service ships with.
const (
	PermissionUserList   = "user:list"
	PermissionUserView   = "user:view"
	PermissionUserCreate = "user:create"
	PermissionUserEdit   = "user:edit"
	PermissionUserDelete = "user:delete"
	PermissionUserAssign = "user:assign"

	PermissionRoleList   = "role:list"
	PermissionRoleView   = "role:view"
	PermissionRoleCreate = "role:create"
	PermissionRoleEdit   = "role:edit"
	PermissionRoleDelete = "role:delete"
	PermissionRoleAssign = "role:assign"

	PermissionPermList   = "permission:list"
	PermissionPermView   = "permission:view"
	PermissionPermCreate = "permission:create"
	PermissionPermEdit   = "permission:edit"
	PermissionPermDelete = "permission:delete"
)
