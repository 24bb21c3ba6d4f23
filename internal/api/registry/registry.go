package registry

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/controllers"
	"waos/internal/api/middleware"
	"waos/internal/api/validator"
	"waos/internal/config"
	"waos/internal/models"
	"waos/internal/services"
)

// TaskSchema validates task bodies. Updates use TaskSchema().Optional() without defaults.
func TaskSchema() *validator.Schema {
	return validator.NewSchema(
		validator.String("title").Required().Rules("max=200"),
		validator.String("description").AllowEmpty().Default(""),
	)
}

// AdminUserSchema validates the fields an admin may change on another account.
func AdminUserSchema() *validator.Schema {
	return validator.NewSchema(
		validator.String("firstName").Rules("max=100"),
		validator.String("lastName").Rules("max=100"),
		validator.String("displayName").AllowEmpty().Rules("max=100"),
		validator.String("email").Rules("email"),
		validator.Array("roles").Rules("min=1,dive,oneof=guest user admin"),
	)
}

// CRUDRules are the permissions of the generic CRUD resources.
var CRUDRules = []acl.Rule{
	{Role: acl.RoleGuest, Resource: "/api/tasks", Methods: []string{http.MethodGet}},
	{Role: acl.RoleGuest, Resource: "/api/tasks/:taskId", Methods: []string{http.MethodGet}},
	{Role: acl.RoleUser, Resource: "/api/tasks", Methods: []string{http.MethodGet, http.MethodPost}},
	{Role: acl.RoleUser, Resource: "/api/tasks/:taskId", Methods: []string{http.MethodGet, http.MethodPut, http.MethodDelete}},
	{Role: acl.RoleAdmin, Resource: "/api/tasks", Methods: []string{acl.Wildcard}},
	{Role: acl.RoleAdmin, Resource: "/api/tasks/:taskId", Methods: []string{acl.Wildcard}},
	{Role: acl.RoleAdmin, Resource: "/api/users", Methods: []string{http.MethodGet}},
	{Role: acl.RoleAdmin, Resource: "/api/users/:userId", Methods: []string{http.MethodGet, http.MethodPut, http.MethodDelete}},
}

func taskLoader(db *gorm.DB) middleware.Loader {
	return func(ctx context.Context, id string) (middleware.Owned, error) {
		task, err := models.GetTaskByID(id, db.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		return task, nil
	}
}

// 📝 RegisterCRUDRoutes registers the generic CRUD resources and their permissions - godoc
// @Summary Register CRUD routes for tasks and user administration
// @Accept json
// @Produce json
func RegisterCRUDRoutes(g *echo.Group, db *gorm.DB, registry *acl.Registry, cfg *config.Config) error {
	if err := registry.Allow(CRUDRules...); err != nil {
		return err
	}

	body := validator.NewBodyFactory(cfg.Validation)

	// Tasks
	taskController := controllers.NewBaseController(services.NewBaseService(db, models.Task{}), "task", "taskId")
	taskController.OnCreate = func(c echo.Context, task *models.Task) error {
		task.UserID = middleware.GetUserID(c)
		return nil
	}
	loadTask := middleware.LoadResource("task", "taskId", taskLoader(db))

	// @Summary List tasks
	// @Produce json
	// @Success 200 {object} response.Envelope{data=controllers.Page[models.Task]}
	// @Router /api/tasks [get]
	// @Summary Get task
	// @Param taskId path string true "Task ID"
	// @Success 200 {object} response.Envelope{data=models.Task}
	// @Failure 404 {object} response.Envelope
	// @Router /api/tasks/{taskId} [get]
	// @Summary Create task
	// @Accept json
	// @Success 200 {object} response.Envelope{data=models.Task}
	// @Failure 403 {object} response.Envelope
	// @Failure 422 {object} response.Envelope
	// @Router /api/tasks [post]
	// @Summary Update task
	// @Param taskId path string true "Task ID"
	// @Failure 403 {object} response.Envelope "User is not authorized"
	// @Router /api/tasks/{taskId} [put]
	// @Summary Delete task
	// @Param taskId path string true "Task ID"
	// @Router /api/tasks/{taskId} [delete]
	taskController.RegisterRoutes(g, "/tasks", controllers.Middleware{
		Create: []echo.MiddlewareFunc{body(TaskSchema(), validator.Options{})},
		Update: []echo.MiddlewareFunc{loadTask, middleware.RequireOwner(),
			body(TaskSchema().Optional(), validator.Options{NoDefaults: true})},
		Delete: []echo.MiddlewareFunc{loadTask, middleware.RequireOwner()},
	})

	// User administration
	userController := controllers.NewBaseController(services.NewBaseService(db, models.User{}), "user", "userId")

	// @Summary List users (admin)
	// @Router /api/users [get]
	// @Summary Get user (admin)
	// @Param userId path string true "User ID"
	// @Router /api/users/{userId} [get]
	// @Summary Update user (admin)
	// @Router /api/users/{userId} [put]
	// @Summary Delete user (admin)
	// @Router /api/users/{userId} [delete]
	userController.RegisterRoutes(g, "/users", controllers.Middleware{
		Update: []echo.MiddlewareFunc{body(AdminUserSchema(), validator.Options{NoDefaults: true})},
	}, http.MethodGet, http.MethodPut, http.MethodDelete)

	return nil
}
