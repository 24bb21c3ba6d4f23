package routes

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/middleware"
	"waos/internal/handlers"
	"waos/internal/models"
	"waos/internal/services"
	"waos/internal/utils/logger"
)

func uploadRules() []acl.Rule {
	var rules []acl.Rule
	rules = append(rules, allow(signedIn, "/api/uploads", http.MethodGet, http.MethodPost)...)
	rules = append(rules, allow(signedIn, "/api/uploads/:fileId", http.MethodDelete)...)
	return rules
}

func fileLoader(db *gorm.DB) middleware.Loader {
	return func(ctx context.Context, id string) (middleware.Owned, error) {
		file, err := models.GetFileByID(id, db.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		return file, nil
	}
}

func SetupUploadRoutes(api *echo.Group, db *gorm.DB, registry *acl.Registry, storage services.Storage) error {
	log := logger.New("upload_routes")

	if err := registry.Allow(uploadRules()...); err != nil {
		return err
	}

	uploadHandler := handlers.NewUploadHandler(db, storage)

	uploads := api.Group("/uploads")
	uploads.POST("", uploadHandler.UploadFile)
	uploads.GET("", uploadHandler.ListFiles)
	uploads.DELETE("/:fileId", uploadHandler.DeleteFile,
		middleware.LoadResource("file", "fileId", fileLoader(db)),
		middleware.RequireOwnerOrRole(acl.RoleAdmin))

	log.Success("Upload routes initialized successfully")
	return nil
}
