package validator

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waos/internal/api/response"
)

type captured struct {
	called  bool
	body    string
	payload map[string]interface{}
}

func newTaskRouter(t *testing.T, mw echo.MiddlewareFunc) (*echo.Echo, *captured) {
	t.Helper()
	e := echo.New()
	got := &captured{}
	handler := func(c echo.Context) error {
		got.called = true
		raw, err := io.ReadAll(c.Request().Body)
		require.NoError(t, err)
		got.body = string(raw)
		got.payload = Payload(c)
		return c.NoContent(http.StatusNoContent)
	}
	e.POST("/api/tasks", handler, mw)
	e.PUT("/api/tasks/:taskId", handler, mw)
	e.DELETE("/api/tasks/:taskId", handler, mw)
	return e, got
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBody_ValidPayloadReplacesRequestBody(t *testing.T) {
	// Arrange
	e, got := newTaskRouter(t, Body(taskSchema(), Options{}))

	// Act
	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":"ship it"}`)

	// Assert
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, got.called)
	assert.JSONEq(t, `{"title":"ship it","description":""}`, got.body)
	assert.Equal(t, map[string]interface{}{"title": "ship it", "description": ""}, got.payload)
}

func TestBody_SchemaValidationError(t *testing.T) {
	// Arrange
	e, got := newTaskRouter(t, Body(taskSchema(), Options{}))

	// Act
	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":2,"description":"x"}`)

	// Assert
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, got.called)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, response.TypeError, env.Type)
	assert.Equal(t, "Schema validation error", env.Message)
	assert.Equal(t, "Title must be a string. ", env.Description)
	assert.Equal(t, http.StatusUnprocessableEntity, env.Code)

	var failure ValidationFailure
	require.NoError(t, json.Unmarshal([]byte(env.Error), &failure))
	require.Len(t, failure.Details, 1)
	assert.Equal(t, "string.base", failure.Details[0].Type)
	assert.Equal(t, "x", failure.Original["description"])
}

func TestBody_UpdateDoesNotInjectDefaults(t *testing.T) {
	e, got := newTaskRouter(t, Body(taskSchema().Optional(), Options{NoDefaults: true}))

	rec := serve(e, http.MethodPut, "/api/tasks/1", `{"title":"renamed"}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.JSONEq(t, `{"title":"renamed"}`, got.body)
}

func TestBody_UngatedMethodPassesThrough(t *testing.T) {
	e, got := newTaskRouter(t, Body(taskSchema(), Options{}))

	rec := serve(e, http.MethodDelete, "/api/tasks/1", `{"title":2}`)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, `{"title":2}`, got.body)
	assert.Nil(t, got.payload)
}

func TestBody_ConfiguredMethods(t *testing.T) {
	e, got := newTaskRouter(t, BodyWithConfig(BodyConfig{
		Schema:  taskSchema(),
		Methods: []string{"put"},
	}))

	post := serve(e, http.MethodPost, "/api/tasks", `{"title":2}`)
	put := serve(e, http.MethodPut, "/api/tasks/1", `{"title":2}`)

	assert.Equal(t, http.StatusNoContent, post.Code)
	assert.True(t, got.called)
	assert.Equal(t, http.StatusUnprocessableEntity, put.Code)
}

func TestBody_EmptyBodyIsEmptyObject(t *testing.T) {
	e, _ := newTaskRouter(t, Body(taskSchema(), Options{}))

	rec := serve(e, http.MethodPost, "/api/tasks", "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Title is required. ", env.Description)
}

func TestBody_RejectsNonObjectBodies(t *testing.T) {
	for _, body := range []string{`[1,2]`, `"title"`, `{broken`} {
		e, got := newTaskRouter(t, Body(taskSchema(), Options{}))

		rec := serve(e, http.MethodPost, "/api/tasks", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.False(t, got.called)
	}
}

func TestBody_RedactsPasswordInErrorResponse(t *testing.T) {
	e := echo.New()
	e.POST("/api/auth/signup", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, Body(userSchema(), Options{SafeFields: safeFields}))

	rec := serve(e, http.MethodPost, "/api/auth/signup",
		`{"firstName":"Ada","lastName":"L","email":"broken","password":"hunter2"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
	assert.NotContains(t, rec.Body.String(), "Ada")
	assert.Contains(t, rec.Body.String(), "Email must be a valid email. ")
}

func multipartTitle(t *testing.T, title string) (*strings.Reader, string) {
	t.Helper()
	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.Close())
	return strings.NewReader(buf.String()), w.FormDataContentType()
}

func TestBody_MultipartIsRejected(t *testing.T) {
	// Arrange
	e, got := newTaskRouter(t, Body(taskSchema(), Options{}))
	body, contentType := multipartTitle(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	// Act
	e.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.False(t, got.called)
}

func TestBody_MultipartAllowedWhenConfigured(t *testing.T) {
	e, got := newTaskRouter(t, BodyWithConfig(BodyConfig{Schema: taskSchema(), AllowMultipart: true}))
	body, contentType := multipartTitle(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, got.payload)
}

func TestBody_FailureCarriesDetailsAndRedactedOriginal(t *testing.T) {
	e, _ := newTaskRouter(t, Body(taskSchema(), Options{SafeFields: []string{"title"}}))

	rec := serve(e, http.MethodPost, "/api/tasks", `{"title":2,"password":"hunter2"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var failure ValidationFailure
	require.NoError(t, json.Unmarshal([]byte(env.Error), &failure))
	assert.NotEmpty(t, failure.Details)
	assert.NotContains(t, env.Error, "hunter2")
}
