package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bmyhack/omms-api/internal/repository"
	"github.com/bmyhack/omms-api/internal/transport/http/middleware"
	"github.com/bmyhack/omms-api/internal/usecase"
)

// UserHandler exposes user management endpoints.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid id"))
		return 0, false
	}
	return id, true
}

func requireActor(c *gin.Context) (int64, bool) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid authentication"))
		return 0, false
	}
	return actorID, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// ListUsers godoc
// @Summary List users
// @Description Returns a paginated user listing with optional substring filters.
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param username query string false "Username substring filter"
// @Param email query string false "Email substring filter"
// @Param is_active query bool false "Active flag filter"
// @Param is_superuser query bool false "Superuser flag filter"
// @Success 200 {object} UserListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	input := usecase.ListUsersInput{
		Username: c.Query("username"),
		Email:    c.Query("email"),
		Page:     queryInt(c, "page", 1),
		Size:     queryInt(c, "size", 20),
	}
	if raw := c.Query("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "is_active must be a boolean"))
			return
		}
		input.IsActive = &active
	}
	if raw := c.Query("is_superuser"); raw != "" {
		super, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "is_superuser must be a boolean"))
			return
		}
		input.IsSuperuser = &super
	}

	users, total, err := h.users.ListUsers(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list users"))
		return
	}

	page, size := input.Page, input.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	items := make([]UserPayload, 0, len(users))
	for _, user := range users {
		items = append(items, toUserPayload(user, nil))
	}
	c.JSON(http.StatusOK, UserListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pageCount(total, size),
	})
}

// GetUser godoc
// @Summary Get a user
// @Description Returns a single user with the assigned roles.
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	user, roles, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, toUserPayload(*user, roles))
}

// CreateUser godoc
// @Summary Create a user
// @Tags Users
// @Accept json
// @Produce json
// @Param request body UserCreateRequest true "User create request"
// @Success 201 {object} UserPayload
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	var req UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), actorID, usecase.CreateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Avatar:      req.Avatar,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already taken"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid user payload"},
		}, http.StatusInternalServerError, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, toUserPayload(*user, nil))
}

// UpdateUser godoc
// @Summary Update a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UserUpdateRequest true "User update request"
// @Success 200 {object} UserPayload
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid user payload"))
		return
	}

	user, err := h.users.UpdateUser(c.Request.Context(), actorID, id, usecase.UpdateUserInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Avatar:      req.Avatar,
		IsActive:    req.IsActive,
		IsSuperuser: req.IsSuperuser,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already taken"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid user payload"},
		}, http.StatusInternalServerError, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, toUserPayload(*user, nil))
}

// DeleteUser godoc
// @Summary Delete a user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), actorID, id); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to delete user")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "user deleted"})
}

// GetUserRoles godoc
// @Summary List roles assigned to a user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} RolePayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [get]
func (h *UserHandler) GetUserRoles(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	roles, err := h.users.GetUserRoles(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load user roles")
		return
	}

	items := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		items = append(items, toRolePayload(role, nil))
	}
	c.JSON(http.StatusOK, items)
}

// GetUserPermissions godoc
// @Summary List effective permission codes of a user
// @Description Returns the union of permission codes over the user's roles. Superusers hold every code.
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} PermissionCodesResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/users/{id}/permissions [get]
func (h *UserHandler) GetUserPermissions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	codes, err := h.users.GetUserPermissions(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "failed to load user permissions")
		return
	}

	if codes == nil {
		codes = []string{}
	}
	c.JSON(http.StatusOK, PermissionCodesResponse{Permissions: codes})
}

// ReplaceUserRoles godoc
// @Summary Replace the role set of a user
// @Description Atomically swaps every role assignment of the user.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UserRolesReplaceRequest true "Role IDs"
// @Success 200 {array} RolePayload
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [put]
func (h *UserHandler) ReplaceUserRoles(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req UserRolesReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	roles, err := h.users.ReplaceUserRoles(c.Request.Context(), actorID, id, req.RoleIDs)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"},
			{Err: repository.ErrInvalidReference, Status: http.StatusUnprocessableEntity, Message: "one or more role ids do not exist"},
		}, http.StatusInternalServerError, "failed to replace user roles")
		return
	}

	items := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		items = append(items, toRolePayload(role, nil))
	}
	c.JSON(http.StatusOK, items)
}
