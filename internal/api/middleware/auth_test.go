package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"waos/internal/api/response"
	"waos/internal/config"
	"waos/internal/models"
	"waos/internal/utils"
)

type AuthMiddlewareSuite struct {
	suite.Suite
	mock   sqlmock.Sqlmock
	tokens *utils.TokenManager
	echo   *echo.Echo
	seen   *models.User
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(s.T(), err)
	s.T().Cleanup(func() { sqlDB.Close() })
	s.mock = mock

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(s.T(), err)

	s.tokens = utils.NewTokenManager(config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, nil)

	s.seen = nil
	s.echo = echo.New()
	s.echo.HTTPErrorHandler = response.HTTPErrorHandler
	s.echo.Use(NewAuthMiddleware(s.tokens, db).Middleware())
	s.echo.GET("/api/users/me", func(c echo.Context) error {
		s.seen = GetUser(c)
		return c.JSON(http.StatusOK, GetRoles(c))
	})
}

func (s *AuthMiddlewareSuite) serve(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *AuthMiddlewareSuite) TestNoHeaderContinuesAsGuest() {
	rec := s.serve("")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`["guest"]`, rec.Body.String())
	s.Nil(s.seen)
}

func (s *AuthMiddlewareSuite) TestMalformedHeader() {
	for _, header := range []string{"Token abc", "Bearer", "Bearer "} {
		rec := s.serve(header)

		s.Equal(http.StatusUnauthorized, rec.Code, header)
		s.Contains(rec.Body.String(), "Invalid authorization header format")
	}
}

func (s *AuthMiddlewareSuite) TestInvalidToken() {
	rec := s.serve("Bearer not-a-jwt")

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), `"description":"Invalid token"`)
}

func (s *AuthMiddlewareSuite) TestRefreshTokenIsNotAnAccessToken() {
	user := &models.User{Base: models.Base{ID: "u-1"}}
	refresh, _, err := s.tokens.GenerateRefreshToken(user)
	s.Require().NoError(err)

	rec := s.serve("Bearer " + refresh)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthMiddlewareSuite) TestRevokedSession() {
	// Arrange
	user := &models.User{Base: models.Base{ID: "u-1"}, Roles: []string{"user"}}
	token, _, err := s.tokens.GenerateJWT(user)
	s.Require().NoError(err)
	s.mock.ExpectQuery(`SELECT \* FROM "auth_transactions" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Act
	rec := s.serve("Bearer " + token)

	// Assert
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "Session has been revoked")
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *AuthMiddlewareSuite) TestValidSessionLoadsUser() {
	// Arrange
	user := &models.User{Base: models.Base{ID: "u-1"}, Roles: []string{"user"}}
	token, _, err := s.tokens.GenerateJWT(user)
	s.Require().NoError(err)
	s.mock.ExpectQuery(`SELECT \* FROM "auth_transactions" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token"}).AddRow("t-1", "u-1", token))
	s.mock.ExpectQuery(`SELECT \* FROM "users" WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "roles"}).AddRow("u-1", "a@b.co", `["user","admin"]`))

	// Act
	rec := s.serve("Bearer " + token)

	// Assert
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`["user","admin"]`, rec.Body.String())
	s.Require().NotNil(s.seen)
	s.Equal("a@b.co", s.seen.Email)
	s.NoError(s.mock.ExpectationsWereMet())
}
