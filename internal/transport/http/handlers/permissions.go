package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bmyhack/omms-api/internal/repository"
	"github.com/bmyhack/omms-api/internal/usecase"
)

// PermissionHandler exposes permission catalog endpoints.
type PermissionHandler struct {
	permissions *usecase.PermissionService
}

// NewPermissionHandler builds a PermissionHandler.
func NewPermissionHandler(permissions *usecase.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// ListPermissions godoc
// @Summary List permissions
// @Description Returns a paginated permission listing with optional filters.
// @Tags Permissions
// @Produce json
// @Param page query int false "Page number"
// @Param size query int false "Page size"
// @Param code query string false "Code substring filter"
// @Param name query string false "Name substring filter"
// @Success 200 {object} PermissionListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/permissions [get]
func (h *PermissionHandler) ListPermissions(c *gin.Context) {
	input := usecase.ListPermissionsInput{
		Code: c.Query("code"),
		Name: c.Query("name"),
		Page: queryInt(c, "page", 1),
		Size: queryInt(c, "size", 20),
	}

	permissions, total, err := h.permissions.ListPermissions(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list permissions"))
		return
	}

	page, size := input.Page, input.Size
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	items := make([]PermissionPayload, 0, len(permissions))
	for _, permission := range permissions {
		items = append(items, toPermissionPayload(permission))
	}
	c.JSON(http.StatusOK, PermissionListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Size:  size,
		Pages: pageCount(total, size),
	})
}

// GetPermission godoc
// @Summary Get a permission
// @Tags Permissions
// @Produce json
// @Param id path int true "Permission ID"
// @Success 200 {object} PermissionPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/permissions/{id} [get]
func (h *PermissionHandler) GetPermission(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	permission, err := h.permissions.GetPermission(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to load permission")
		return
	}

	c.JSON(http.StatusOK, toPermissionPayload(*permission))
}

// CreatePermission godoc
// @Summary Create a permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Param request body PermissionCreateRequest true "Permission create request"
// @Success 201 {object} PermissionPayload
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/permissions [post]
func (h *PermissionHandler) CreatePermission(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	var req PermissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid permission payload"))
		return
	}

	permission, err := h.permissions.CreatePermission(c.Request.Context(), actorID, usecase.CreatePermissionInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPermissionExists, Status: http.StatusConflict, Message: "permission already exists"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid permission payload"},
		}, http.StatusInternalServerError, "failed to create permission")
		return
	}

	c.JSON(http.StatusCreated, toPermissionPayload(*permission))
}

// UpdatePermission godoc
// @Summary Update a permission
// @Description Updates name and description. The code is immutable while the
// permission is assigned to any role.
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path int true "Permission ID"
// @Param request body PermissionUpdateRequest true "Permission update request"
// @Success 200 {object} PermissionPayload
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/permissions/{id} [put]
func (h *PermissionHandler) UpdatePermission(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req PermissionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "invalid permission payload"))
		return
	}

	permission, err := h.permissions.UpdatePermission(c.Request.Context(), actorID, id, usecase.UpdatePermissionInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "permission not found"},
			{Err: usecase.ErrPermissionExists, Status: http.StatusConflict, Message: "permission already exists"},
			{Err: usecase.ErrPermissionInUse, Status: http.StatusConflict, Message: "permission is assigned to a role"},
			{Err: usecase.ErrValidation, Status: http.StatusUnprocessableEntity, Message: "invalid permission payload"},
		}, http.StatusInternalServerError, "failed to update permission")
		return
	}

	c.JSON(http.StatusOK, toPermissionPayload(*permission))
}

// DeletePermission godoc
// @Summary Delete a permission
// @Description Removes a permission and cascades its role assignments.
// @Tags Permissions
// @Produce json
// @Param id path int true "Permission ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/permissions/{id} [delete]
func (h *PermissionHandler) DeletePermission(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.permissions.DeletePermission(c.Request.Context(), actorID, id); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "permission not found"},
		}, http.StatusInternalServerError, "failed to delete permission")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "permission deleted"})
}
