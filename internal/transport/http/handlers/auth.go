package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bmyhack/omms-api/internal/repository"
	"github.com/bmyhack/omms-api/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes wires the authentication endpoints onto the group. The
// profile endpoint sits behind the provided auth middleware; login stays open.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	r.POST("/login", h.Login)
	r.GET("/me", authMiddleware, h.Me)
}

// Login godoc
// @Summary Authenticate with username and password
// @Description Verifies credentials and returns a bearer access token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, "username and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		var limited *usecase.RateLimitedError
		if errors.As(err, &limited) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid username or password"},
			{Err: usecase.ErrUserInactive, Status: http.StatusUnauthorized, Message: "invalid username or password"},
			{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many login attempts"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresIn:   int(time.Until(result.ExpiresAt).Seconds()),
		User:        toUserPayload(result.User, result.Roles),
	})
}

// Me godoc
// @Summary Get the authenticated user
// @Description Returns the current user's profile with role names.
// @Tags Auth
// @Produce json
// @Success 200 {object} UserPayload
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	user, roles, err := h.auth.CurrentUser(c.Request.Context(), actorID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusUnauthorized, Message: "invalid authentication"},
		}, http.StatusInternalServerError, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, toUserPayload(*user, roles))
}
