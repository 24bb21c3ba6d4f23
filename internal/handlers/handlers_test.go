package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"waos/internal/api/middleware"
	"waos/internal/api/response"
	"waos/internal/api/validator"
	"waos/internal/models"
	"waos/internal/utils"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validator.NewValidator()
	e.HTTPErrorHandler = response.HTTPErrorHandler
	return e
}

// signedIn puts user and token on the context the way the auth middleware does.
func signedIn(user *models.User, token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextUserID, user.ID)
			c.Set(middleware.ContextUser, user)
			c.Set(middleware.ContextToken, token)
			return next(c)
		}
	}
}

func serveJSON(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, response.Envelope) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return serve(e, req)
}

func serve(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, response.Envelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env response.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	args := m.Called(ctx, identifier)
	return args.Bool(0), args.Error(1)
}

type mockAvatars struct{ mock.Mock }

func (m *mockAvatars) Save(ctx context.Context, userID string, data []byte) (string, error) {
	args := m.Called(ctx, userID, data)
	return args.String(0), args.Error(1)
}

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) GetUserDataFromGoogle(ctx context.Context, accessToken string) (*utils.GoogleProfile, []byte, error) {
	args := m.Called(ctx, accessToken)
	profile, _ := args.Get(0).(*utils.GoogleProfile)
	raw, _ := args.Get(1).([]byte)
	return profile, raw, args.Error(2)
}
