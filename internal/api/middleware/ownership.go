package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/api/response"
)

// Owned is a resource with a single owning user.
type Owned interface {
	OwnerID() string
}

// Loader fetches the resource named by a path parameter.
type Loader func(ctx context.Context, id string) (Owned, error)

// LoadResource resolves the :param path parameter with load and stores the resource and its
// owner on the context for RequireOwner and the handler. name is used in error messages.
func LoadResource(name, param string, load Loader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Param(param)
			if _, err := uuid.Parse(id); err != nil {
				return response.Fail(c, http.StatusBadRequest, "Invalid Id", fmt.Sprintf("%s is invalid", param), nil)
			}

			resource, err := load(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.Fail(c, http.StatusNotFound, "Not Found",
						fmt.Sprintf("No %s with that identifier has been found", name), nil)
				}
				return err
			}

			c.Set(ContextResource, resource)
			c.Set(ContextOwnerID, resource.OwnerID())
			return next(c)
		}
	}
}

// Resource returns the resource stored by LoadResource.
func Resource[T any](c echo.Context) (T, bool) {
	r, ok := c.Get(ContextResource).(T)
	return r, ok
}
