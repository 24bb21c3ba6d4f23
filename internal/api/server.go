package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-advanced-admin/admin"
	admingorm "github.com/go-advanced-admin/orm-gorm"
	adminecho "github.com/go-advanced-admin/web-echo"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/middleware"
	"waos/internal/api/response"
	"waos/internal/api/validator"
	"waos/internal/config"
	"waos/internal/handlers"
	"waos/internal/metrics"
	"waos/internal/models"
	"waos/internal/services"
	"waos/internal/utils"
	console "waos/internal/utils/logger"
)

const requestTimeout = 30 * time.Second

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	db       *gorm.DB
	deps     Deps
	registry *acl.Registry
}

// Deps are the collaborators the HTTP layer needs beyond the database.
type Deps struct {
	Tokens     *utils.TokenManager
	Storage    services.Storage
	Avatars    handlers.AvatarStore
	Limiter    handlers.ResetLimiter
	Google     handlers.ProfileFetcher
	Downloader handlers.Downloader
}

var log = console.New("API-Server")

// NewServer @title waos API
// @version 1.0
// @description Task and account API with schema validated bodies and role based access.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewServer(cfg *config.Config, db *gorm.DB, deps Deps) (*Server, error) {
	e := echo.New()
	e.HideBanner = true

	e.Validator = validator.NewValidator()
	e.HTTPErrorHandler = response.HTTPErrorHandler

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Recover())
	e.Use(console.RequestLogger(console.NewAccessLog(cfg.App.Name, nil)))
	e.Use(metrics.EchoPrometheusMiddleware(cfg.App.Name))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentLength},
	}))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.ContextTimeout(requestTimeout))
	e.Use(echomiddleware.GzipWithConfig(echomiddleware.GzipConfig{
		Level: 5,
	}))
	e.Use(echomiddleware.BodyLimit(cfg.Server.BodyLimit))
	if rps := cfg.RateLimit.RequestsPerSecond; rps > 0 {
		e.Use(echomiddleware.RateLimiter(echomiddleware.NewRateLimiterMemoryStore(rate.Limit(rps))))
	}

	s := &Server{
		echo:     e,
		config:   cfg,
		db:       db,
		deps:     deps,
		registry: acl.NewRegistry(),
	}

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}

	if cfg.Admin.PanelEnabled {
		if err := s.mountAdminPanel(); err != nil {
			_ = log.Error("Failed to create admin panel", err)
		}
	}

	return s, nil
}

// Echo exposes the router, mostly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Registry returns the sealed permission registry.
func (s *Server) Registry() *acl.Registry { return s.registry }

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	log.Success("API server listening on %s", addr)
	// Shutdown makes Start return http.ErrServerClosed; that is a clean stop.
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// mountAdminPanel serves the go-advanced-admin panel to signed in administrators.
func (s *Server) mountAdminPanel() error {
	auth := middleware.NewAuthMiddleware(s.deps.Tokens, s.db)
	gormIntegrator := admingorm.NewIntegrator(s.db)
	echoIntegrator := adminecho.NewIntegrator(s.echo.Group("", auth.Middleware()))

	permissionChecker := func(request admin.PermissionRequest, ctx interface{}) (bool, error) {
		c, ok := ctx.(echo.Context)
		if !ok {
			return false, nil
		}
		user := middleware.GetUser(c)
		return user != nil && user.HasRole(acl.RoleAdmin), nil
	}

	panel, err := admin.NewPanel(gormIntegrator, echoIntegrator, permissionChecker, nil)
	if err != nil {
		return err
	}
	app, err := panel.RegisterApp(s.config.App.Name, s.config.App.Name+" administration", nil)
	if err != nil {
		return err
	}
	for _, model := range []interface{}{&models.User{}, &models.Task{}} {
		if _, err := app.RegisterModel(model, nil); err != nil {
			return err
		}
	}
	log.Success("Admin panel mounted")
	return nil
}

// healthCheck reports liveness and whether the database answers.
func (s *Server) healthCheck(c echo.Context) error {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}
