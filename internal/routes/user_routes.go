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

var signedIn = []string{acl.RoleUser, acl.RoleAdmin}

func userRules() []acl.Rule {
	var rules []acl.Rule
	rules = append(rules, allow(signedIn, "/api/users/me", http.MethodGet)...)
	rules = append(rules, allow(signedIn, "/api/users", http.MethodPut)...)
	rules = append(rules, allow(signedIn, "/api/users/password", http.MethodPost)...)
	rules = append(rules, allow(signedIn, "/api/users/picture", http.MethodPost)...)
	return rules
}

// SetupUserRoutes mounts the self-service profile endpoints. Admin management of other
// accounts lives with the CRUD resources.
func SetupUserRoutes(api *echo.Group, db *gorm.DB, registry *acl.Registry, cfg *config.Config, avatars handlers.AvatarStore) error {
	if err := registry.Allow(userRules()...); err != nil {
		return err
	}

	userHandler := handlers.NewUserHandler(db, avatars, cfg.Security, cfg.Uploads)
	body := validator.NewBodyFactory(cfg.Validation)

	users := api.Group("/users")
	users.GET("/me", userHandler.GetMe)
	users.PUT("", userHandler.UpdateProfile, body(handlers.ProfileSchema(), validator.Options{NoDefaults: true}))
	users.POST("/password", userHandler.ChangePassword)
	users.POST("/picture", userHandler.UploadPicture)

	return nil
}
