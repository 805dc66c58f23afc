package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bmyhack/omms-api/internal/repository"
	"github.com/bmyhack/omms-api/internal/usecase"
)

// RoleHandler exposes role management endpoints.
type RoleHandler struct {
	roles *usecase.RoleService
}

// NewRoleHandler builds a RoleHandler.
func NewRoleHandler(roles *usecase.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// ListRoles godoc
// @Summary List roles
// @Description Returns a paginated role listing with an optional name filter.
// @Tags Roles
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param name query string false "Name substring filter"
// @Success 200 {object} RoleListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	input := usecase.ListRolesInput{
		Name: c.Query("name"),
		Page: queryInt(c, "page", 1),
		Size: queryInt(c, "size", 20),
	}

	roles, total, err := h.roles.ListRoles(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list roles"))
		return
	}

	page, size := input.Page, input.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	items := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		items = append(items, toRolePayload(role, nil))
	}
	c.JSON(http.StatusOK, RoleListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pageCount(total, size),
	})
}

// GetRole godoc
// @Summary Get a role
// @Description Returns a single role with its permissions.
// @Tags Roles
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} RolePayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	role, permissions, err := h.roles.GetRole(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to load role")
		return
	}

	c.JSON(http.StatusOK, toRolePayload(*role, permissions))
}

// CreateRole godoc
// @Summary Create a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param request body RoleCreateRequest true "Role create request"
// @Success 201 {object} RolePayload
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.CreateRole(c.Request.Context(), actorID, usecase.CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid role payload"},
		}, http.StatusInternalServerError, "failed to create role")
		return
	}

	c.JSON(http.StatusCreated, toRolePayload(*role, nil))
}

// UpdateRole godoc
// @Summary Update a role
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param request body RoleUpdateRequest true "Role update request"
// @Success 200 {object} RolePayload
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.UpdateRole(c.Request.Context(), actorID, id, usecase.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
			{Err: usecase.ErrRoleProtected, Status: http.StatusConflict, Message: "role is protected"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid role payload"},
		}, http.StatusInternalServerError, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, toRolePayload(*role, nil))
}

// DeleteRole godoc
// @Summary Delete a role
// @Description Removes the role and all of its user and permission assignments.
// @Tags Roles
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.roles.DeleteRole(c.Request.Context(), actorID, id); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: usecase.ErrRoleProtected, Status: http.StatusConflict, Message: "role is protected"},
		}, http.StatusInternalServerError, "failed to delete role")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "role deleted"})
}

// GetRolePermissions godoc
// @Summary List permission ids assigned to a role
// @Tags Roles
// @Produce json
// @Param id path int true "Role ID"
// @Success 200 {object} PermissionIDsResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [get]
func (h *RoleHandler) GetRolePermissions(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	permissions, err := h.roles.GetRolePermissions(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to load role permissions")
		return
	}

	c.JSON(http.StatusOK, toPermissionIDs(permissions))
}

// ReplaceRolePermissions godoc
// @Summary Replace the permission set of a role
// @Description Atomically swaps every permission assignment of the role.
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param request body RolePermissionsReplaceRequest true "Permission IDs"
// @Success 200 {object} PermissionIDsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [put]
func (h *RoleHandler) ReplaceRolePermissions(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req RolePermissionsReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid permission assignment payload"))
		return
	}

	permissions, err := h.roles.ReplacePermissions(c.Request.Context(), actorID, id, req.PermissionIDs)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
			{Err: repository.ErrInvalidReference, Status: http.StatusUnprocessableEntity, Message: "one or more permission ids do not exist"},
		}, http.StatusInternalServerError, "failed to replace role permissions")
		return
	}

	c.JSON(http.StatusOK, toPermissionIDs(permissions))
}
