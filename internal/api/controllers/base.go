package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/api/response"
	"waos/internal/api/validator"
	"waos/internal/services"
)

// reserved query parameters that are never treated as filters
var reserved = map[string]bool{"page": true, "limit": true, "include": true, "sort": true, "order": true}

// Page is the data of a List response.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// BaseController provides generic CRUD handlers for any model
type BaseController[T any] struct {
	service services.BaseService[T]
	name    string
	param   string

	// OnCreate runs after binding and before the entity is stored.
	OnCreate func(ctx echo.Context, entity *T) error
}

// NewBaseController creates a controller for the resource called name (used in messages)
// identified by the :param path parameter.
func NewBaseController[T any](service services.BaseService[T], name, param string) *BaseController[T] {
	return &BaseController[T]{
		service: service,
		name:    name,
		param:   param,
	}
}

// Param is the path parameter holding the resource id.
func (c *BaseController[T]) Param() string { return c.param }

// parseIncludes parses the include query parameter and returns a slice of relationships to preload
func parseIncludes(ctx echo.Context) []string {
	include := ctx.QueryParam("include")
	if include == "" {
		return nil
	}
	return strings.Split(include, ",")
}

func (c *BaseController[T]) title() string {
	if c.name == "" {
		return ""
	}
	return strings.ToUpper(c.name[:1]) + c.name[1:]
}

func (c *BaseController[T]) notFound(ctx echo.Context) error {
	return response.Fail(ctx, http.StatusNotFound, "Not Found",
		fmt.Sprintf("No %s with that identifier has been found", c.name), nil)
}

// id is the path id; ids that are not uuids never reach the database.
func (c *BaseController[T]) id(ctx echo.Context) (string, error) {
	id := ctx.Param(c.param)
	if _, err := uuid.Parse(id); err != nil {
		return "", response.NewHTTPError(http.StatusBadRequest, "Invalid Id", fmt.Sprintf("%s is invalid", c.param))
	}
	return id, nil
}

// payload is the body accepted by the schema middleware. Writes never fall back to binding the
// raw request, so a route mounted without a schema rejects every write.
func payload(ctx echo.Context) (map[string]interface{}, error) {
	changes := validator.Payload(ctx)
	if changes == nil {
		return nil, response.NewHTTPError(http.StatusBadRequest, "Invalid request body", "Request body has not been validated")
	}
	return changes, nil
}

// Create stores a new entity built from the validated body.
func (c *BaseController[T]) Create(ctx echo.Context) error {
	fields, err := payload(ctx)
	if err != nil {
		return err
	}
	var entity T
	raw, err := json.Marshal(fields)
	if err == nil {
		err = json.Unmarshal(raw, &entity)
	}
	if err != nil {
		return response.Fail(ctx, http.StatusBadRequest, "Invalid request body", err.Error(), err)
	}

	if c.OnCreate != nil {
		if err := c.OnCreate(ctx, &entity); err != nil {
			return err
		}
	}

	if err := c.service.Create(ctx.Request().Context(), &entity, parseIncludes(ctx)...); err != nil {
		return response.Fail(ctx, http.StatusInternalServerError, "Server Error",
			fmt.Sprintf("Could not create %s", c.name), err)
	}

	return response.OK(ctx, c.title()+" created", entity)
}

// Get handles retrieval of a single entity
func (c *BaseController[T]) Get(ctx echo.Context) error {
	id, err := c.id(ctx)
	if err != nil {
		return err
	}
	entity, err := c.service.Get(ctx.Request().Context(), id, parseIncludes(ctx)...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.notFound(ctx)
		}
		return err
	}

	return response.OK(ctx, c.title(), entity)
}

// List handles retrieval of multiple entities with pagination and filtering
func (c *BaseController[T]) List(ctx echo.Context) error {
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filters := make(map[string]interface{})
	for key, values := range ctx.QueryParams() {
		if !reserved[key] && len(values) > 0 {
			filters[key] = values[0]
		}
	}

	var sort []string
	if s := ctx.QueryParam("sort"); s != "" {
		sort = strings.Split(s, ",")
	}

	entities, total, err := c.service.List(ctx.Request().Context(), services.ListQuery{
		Page:     page,
		Limit:    limit,
		Filters:  filters,
		Sort:     sort,
		Order:    ctx.QueryParam("order"),
		Includes: parseIncludes(ctx),
	})
	if err != nil {
		return err
	}
	if entities == nil {
		entities = []T{}
	}

	return response.OK(ctx, c.title()+" list", Page[T]{Items: entities, Total: total, Page: page, Limit: limit})
}

// Update applies the validated body to an existing entity
func (c *BaseController[T]) Update(ctx echo.Context) error {
	id, err := c.id(ctx)
	if err != nil {
		return err
	}
	changes, err := payload(ctx)
	if err != nil {
		return err
	}

	entity, err := c.service.Update(ctx.Request().Context(), id, changes, parseIncludes(ctx)...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.notFound(ctx)
		}
		return err
	}

	return response.OK(ctx, c.title()+" updated", entity)
}

// Delete handles deletion of an entity
func (c *BaseController[T]) Delete(ctx echo.Context) error {
	id, err := c.id(ctx)
	if err != nil {
		return err
	}
	if err := c.service.Delete(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.notFound(ctx)
		}
		return err
	}

	return response.OK(ctx, c.title()+" deleted", map[string]string{"id": id})
}

// Middleware per operation, applied by RegisterRoutes.
type Middleware struct {
	Read   []echo.MiddlewareFunc
	Create []echo.MiddlewareFunc
	Update []echo.MiddlewareFunc
	Delete []echo.MiddlewareFunc
}

// RegisterRoutes registers CRUD routes for the controller. Omitted methods are not exposed.
func (c *BaseController[T]) RegisterRoutes(g *echo.Group, path string, mw Middleware, methods ...string) {
	if len(methods) == 0 {
		methods = []string{http.MethodPost, http.MethodGet, http.MethodPut, http.MethodDelete}
	}
	item := fmt.Sprintf("%s/:%s", path, c.param)

	for _, method := range methods {
		switch method {
		case http.MethodPost:
			g.POST(path, c.Create, mw.Create...)
		case http.MethodGet:
			g.GET(path, c.List, mw.Read...)
			g.GET(item, c.Get, mw.Read...)
		case http.MethodPut:
			g.PUT(item, c.Update, mw.Update...)
		case http.MethodDelete:
			g.DELETE(item, c.Delete, mw.Delete...)
		}
	}
}
