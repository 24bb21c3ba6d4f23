package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"waos/internal/acl"
	"waos/internal/api/response"
	"waos/internal/metrics"
)

// ContextOwnerID holds the owner of the resource a loader resolved for this request.
const ContextOwnerID = "ownerID"

// ContextResource holds the resource a loader resolved for this request.
const ContextResource = "resource"

// Authorize checks the caller's roles against registry for the matched route and method.
func Authorize(registry *acl.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles := GetRoles(c)
			if len(roles) == 0 {
				metrics.RecordAuthorization("acl", acl.Denied.String())
				return response.Fail(c, http.StatusForbidden, "Unauthorized", "User is not authorized", nil)
			}
			decision, err := registry.Check(roles, c.Path(), c.Request().Method)

			switch decision {
			case acl.Allowed:
				metrics.RecordAuthorization("acl", decision.String())
				return next(c)
			case acl.Denied:
				metrics.RecordAuthorization("acl", decision.String())
				return response.Fail(c, http.StatusForbidden, "Unauthorized", "User is not authorized", nil)
			}

			metrics.RecordAuthorization("acl", acl.LookupError.String())
			if err == nil {
				err = fmt.Errorf("acl: unexpected decision %d", decision)
			}
			_ = log.Error("Authorization lookup failed for %s %s", err, c.Request().Method, c.Path())
			return response.Fail(c, http.StatusInternalServerError, "Server Error", "Unexpected authorization error", err)
		}
	}
}

// RequireOwner lets the request through only when the caller owns the resource a loader put
// on the context. Ids are compared as strings.
func RequireOwner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			owner := fmt.Sprint(c.Get(ContextOwnerID))
			caller := GetUserID(c)

			if caller == "" || c.Get(ContextOwnerID) == nil || owner != caller {
				metrics.RecordAuthorization("owner", acl.Denied.String())
				return response.Fail(c, http.StatusForbidden, "User is not authorized", "", nil)
			}

			metrics.RecordAuthorization("owner", acl.Allowed.String())
			return next(c)
		}
	}
}

// RequireOwnerOrRole is RequireOwner that also admits callers holding role.
func RequireOwnerOrRole(role string) echo.MiddlewareFunc {
	owner := RequireOwner()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := owner(next)
		return func(c echo.Context) error {
			if user := GetUser(c); user != nil && user.HasRole(role) {
				metrics.RecordAuthorization("owner", acl.Allowed.String())
				return next(c)
			}
			return guarded(c)
		}
	}
}
