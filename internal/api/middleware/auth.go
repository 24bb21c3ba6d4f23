package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/response"
	"waos/internal/models"
	"waos/internal/utils"
	"waos/internal/utils/logger"
)

var log = logger.New("auth_middleware")

// Context keys set by Authenticate.
const (
	ContextUserID = "userID"
	ContextUser   = "user"
	ContextToken  = "token"
)

var (
	errInvalidToken   = response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "Invalid token")
	errSessionRevoked = response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "Session has been revoked")
	errUnknownUser    = response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "User not found")
)

type AuthMiddleware struct {
	tokens *utils.TokenManager
	db     *gorm.DB
}

func NewAuthMiddleware(tokens *utils.TokenManager, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, db: db}
}

// Middleware resolves the caller from a Bearer token. Requests without a token continue as
// guests; a token that is present but invalid, expired or revoked is rejected with 401.
func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return next(c)
			}

			tokenParts := strings.SplitN(authHeader, " ", 2)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") || tokenParts[1] == "" {
				return response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "Invalid authorization header format")
			}

			// The Google callback carries a provider token, not one of ours.
			if strings.HasSuffix(c.Path(), "/auth/google/callback") {
				return next(c)
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims, err := m.tokens.ParseJWT(tokenString)
	if err != nil {
		log.Debug("Rejected token: %v", err)
		return errInvalidToken.Wrap(err)
	}

	ctx := c.Request().Context()

	// Verify auth transaction
	transaction := &models.AuthTransaction{}
	if err := m.db.WithContext(ctx).
		Where("user_id = ? AND token = ? AND is_deleted = ?", claims.UserID, tokenString, false).
		First(transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errSessionRevoked
		}
		return err
	}

	user := &models.User{}
	if err := m.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", claims.UserID, false).First(user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUnknownUser
		}
		return err
	}

	c.Set(ContextUserID, user.ID)
	c.Set(ContextUser, user)
	c.Set(ContextToken, tokenString)

	return next(c)
}

// GetUserID Helper functions to get values from context
func GetUserID(c echo.Context) string {
	if id, ok := c.Get(ContextUserID).(string); ok {
		return id
	}
	return ""
}

func GetUser(c echo.Context) *models.User {
	if user, ok := c.Get(ContextUser).(*models.User); ok {
		return user
	}
	return nil
}

func GetToken(c echo.Context) string {
	if token, ok := c.Get(ContextToken).(string); ok {
		return token
	}
	return ""
}

// GetRoles returns the caller's roles, ["guest"] only when nobody is authenticated. A signed-in
// user without roles gets an empty list, never guest rights.
func GetRoles(c echo.Context) []string {
	if user := GetUser(c); user != nil {
		return append([]string{}, user.Roles...)
	}
	return []string{acl.RoleGuest}
}
