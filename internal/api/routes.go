package api

import (
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "waos/docs/swagger"
	"waos/internal/api/middleware"
	"waos/internal/api/registry"
	"waos/internal/handlers"
	"waos/internal/metrics"
	"waos/internal/routes"
	"waos/internal/services"
)

// registerRoutes mounts every route group, then seals the permission registry so no rule can be
// added once requests are served.
func (s *Server) registerRoutes() error {
	// Health check
	// @Summary Health check
	// @Description Check if the server and its database are up
	// @Produce json
	// @Success 200 {object} map[string]string "OK"
	// @Failure 503 {object} map[string]string "Database unreachable"
	// @Router /health [get]
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", metrics.Handler())
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	if local, ok := s.deps.Storage.(*services.LocalStorage); ok {
		s.echo.Static("/uploads", local.Root())
	}

	auth := middleware.NewAuthMiddleware(s.deps.Tokens, s.db)
	api := s.echo.Group("/api", auth.Middleware(), middleware.Authorize(s.registry))

	setup := []func(*echo.Group) error{
		func(g *echo.Group) error {
			return routes.SetupAuthRoutes(g, s.db, s.registry, s.config, handlers.AuthDeps{
				Tokens:     s.deps.Tokens,
				Security:   s.config.Security,
				Limiter:    s.deps.Limiter,
				Google:     s.deps.Google,
				Downloader: s.deps.Downloader,
				Avatars:    s.deps.Avatars,
			})
		},
		func(g *echo.Group) error {
			return routes.SetupUserRoutes(g, s.db, s.registry, s.config, s.deps.Avatars)
		},
		func(g *echo.Group) error {
			return routes.SetupUploadRoutes(g, s.db, s.registry, s.deps.Storage)
		},
		func(g *echo.Group) error {
			return registry.RegisterCRUDRoutes(g, s.db, s.registry, s.config)
		},
	}
	for _, register := range setup {
		if err := register(api); err != nil {
			return err
		}
	}

	s.registry.Seal()
	log.Success("Registered %d permission rules", len(s.registry.Rules()))
	return nil
}
