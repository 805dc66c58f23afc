package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/infra/config"
	"github.com/bmyhack/omms-api/internal/transport/http/handlers"
	"github.com/bmyhack/omms-api/internal/transport/http/middleware"
	"github.com/bmyhack/omms-api/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth        *usecase.AuthService
	Users       *usecase.UserService
	Roles       *usecase.RoleService
	Permissions *usecase.PermissionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Services ServiceSet
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth)
	requirePermission := func(code string) gin.HandlerFunc {
		return middleware.RequirePermission(deps.Services.Auth, code)
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.Config.Telemetry.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth)
		authHandler.RegisterRoutes(api.Group("/auth"), authMiddleware)

		userHandler := handlers.NewUserHandler(deps.Services.Users)
		userGroup := api.Group("/users")
		userGroup.Use(authMiddleware)
		userGroup.GET("", requirePermission(usecase.PermissionUserList), userHandler.ListUsers)
		userGroup.POST("", requirePermission(usecase.PermissionUserCreate), userHandler.CreateUser)
		userGroup.GET("/:id", requirePermission(usecase.PermissionUserView), userHandler.GetUser)
		userGroup.PUT("/:id", requirePermission(usecase.PermissionUserEdit), userHandler.UpdateUser)
		userGroup.DELETE("/:id", requirePermission(usecase.PermissionUserDelete), userHandler.DeleteUser)
		userGroup.GET("/:id/roles", requirePermission(usecase.PermissionUserView), userHandler.GetUserRoles)
		userGroup.GET("/:id/permissions", requirePermission(usecase.PermissionUserView), userHandler.GetUserPermissions)
		userGroup.PUT("/:id/roles", requirePermission(usecase.PermissionUserAssign), userHandler.ReplaceUserRoles)

		roleHandler := handlers.NewRoleHandler(deps.Services.Roles)
		roleGroup := api.Group("/roles")
		roleGroup.Use(authMiddleware)
		roleGroup.GET("", requirePermission(usecase.PermissionRoleList), roleHandler.ListRoles)
		roleGroup.POST("", requirePermission(usecase.PermissionRoleCreate), roleHandler.CreateRole)
		roleGroup.GET("/:id", requirePermission(usecase.PermissionRoleView), roleHandler.GetRole)
		roleGroup.PUT("/:id", requirePermission(usecase.PermissionRoleEdit), roleHandler.UpdateRole)
		roleGroup.DELETE("/:id", requirePermission(usecase.PermissionRoleDelete), roleHandler.DeleteRole)
		roleGroup.GET("/:id/permissions", requirePermission(usecase.PermissionRoleView), roleHandler.GetRolePermissions)
		roleGroup.PUT("/:id/permissions", requirePermission(usecase.PermissionRoleAssign), roleHandler.ReplaceRolePermissions)

		permissionHandler := handlers.NewPermissionHandler(deps.Services.Permissions)
		permissionGroup := api.Group("/permissions")
		permissionGroup.Use(authMiddleware)
		permissionGroup.GET("", requirePermission(usecase.PermissionPermList), permissionHandler.ListPermissions)
		permissionGroup.POST("", requirePermission(usecase.PermissionPermCreate), permissionHandler.CreatePermission)
		permissionGroup.GET("/:id", requirePermission(usecase.PermissionPermView), permissionHandler.GetPermission)
		permissionGroup.PUT("/:id", requirePermission(usecase.PermissionPermEdit), permissionHandler.UpdatePermission)
		permissionGroup.DELETE("/:id", requirePermission(usecase.PermissionPermDelete), permissionHandler.DeletePermission)
	}

	handlers.RegisterSwagger(r)

	return r
}
