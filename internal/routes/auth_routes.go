package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/validator"
	"waos/internal/config"
	"waos/internal/handlers"
)

var anyone = []string{acl.RoleGuest, acl.RoleUser, acl.RoleAdmin}

func allow(roles []string, resource string, methods ...string) []acl.Rule {
	rules := make([]acl.Rule, 0, len(roles))
	for _, role := range roles {
		rules = append(rules, acl.Rule{Role: role, Resource: resource, Methods: methods})
	}
	return rules
}

func authRules() []acl.Rule {
	var rules []acl.Rule
	for _, path := range []string{"/api/auth/signup", "/api/auth/signin", "/api/auth/refresh", "/api/auth/forgot", "/api/auth/reset/:code"} {
		rules = append(rules, allow(anyone, path, http.MethodPost)...)
	}
	rules = append(rules, allow(anyone, "/api/auth/google/callback", http.MethodGet)...)
	rules = append(rules, allow(signedIn, "/api/auth/signout", http.MethodPost)...)
	return rules
}

// SetupAuthRoutes mounts /auth on api and registers who may call each endpoint.
func SetupAuthRoutes(api *echo.Group, db *gorm.DB, registry *acl.Registry, cfg *config.Config, deps handlers.AuthDeps) error {
	if err := registry.Allow(authRules()...); err != nil {
		return err
	}

	authHandler := handlers.NewAuthHandler(db, deps)
	body := validator.NewBodyFactory(cfg.Validation)

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.Signup, body(handlers.SignupSchema(), validator.Options{}))
	auth.POST("/signin", authHandler.Signin)
	auth.POST("/signout", authHandler.Signout)
	auth.POST("/refresh", authHandler.RefreshToken)
	auth.POST("/forgot", authHandler.ForgotPassword)
	auth.POST("/reset/:code", authHandler.ResetPassword)
	auth.GET("/google/callback", authHandler.GoogleAuthCallback)

	return nil
}
