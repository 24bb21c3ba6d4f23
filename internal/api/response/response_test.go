package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type coded struct{ code int }

func (c coded) Error() string   { return "coded failure" }
func (c coded) StatusCode() int { return c.code }

func TestSuccess_WritesEnvelope(t *testing.T) {
	c, rec := newContext()

	env, err := Success(c, "Task list")(map[string]int{"count": 2})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, TypeSuccess, env.Type)
	assert.Equal(t, "Task list", env.Message)

	body := decode(t, rec)
	assert.Equal(t, TypeSuccess, body.Type)
	assert.Equal(t, "Task list", body.Message)
	assert.Equal(t, map[string]interface{}{"count": float64(2)}, body.Data)
	assert.Zero(t, body.Code)
}

func TestError_ExplicitValuesWin(t *testing.T) {
	c, rec := newContext()
	cause := NewHTTPError(http.StatusNotFound, "Not Found", "missing")

	env, err := Error(c, http.StatusForbidden, "Unauthorized", "User is not authorized")(cause)

	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, http.StatusForbidden, env.Code)
	assert.Equal(t, "Unauthorized", env.Message)
	assert.Equal(t, "User is not authorized", env.Description)
}

func TestError_FallsBackToErrorValue(t *testing.T) {
	c, rec := newContext()
	cause := NewHTTPError(http.StatusConflict, "Conflict", "Email already exists")

	env, err := Error(c, 0, "", "")(cause)

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Conflict", env.Message)
	assert.Equal(t, "Email already exists", env.Description)
	assert.JSONEq(t, `{"code":409,"message":"Conflict","description":"Email already exists"}`, env.Error)
}

func TestError_FallbackFromEchoError(t *testing.T) {
	c, rec := newContext()

	env, _ := Error(c, 0, "", "")(echo.NewHTTPError(http.StatusBadRequest, "bad payload"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad payload", env.Message)
}

func TestError_FallbackFromStatusCoderThroughWrapping(t *testing.T) {
	c, rec := newContext()

	env, _ := Error(c, 0, "", "")(fmt.Errorf("loading: %w", coded{code: http.StatusTooManyRequests}))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "loading: coded failure", env.Message)
}

func TestError_PlainErrorDefaultsTo500(t *testing.T) {
	c, rec := newContext()

	env, _ := Error(c, 0, "", "")(errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, env.Code)
	assert.Equal(t, "boom", env.Message)
	assert.JSONEq(t, `{"message":"boom"}`, env.Error)
}

func TestError_StatusBelow400IsCoercedTo500(t *testing.T) {
	c, rec := newContext()

	env, _ := Error(c, http.StatusOK, "weird", "")(errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, TypeError, env.Type)
}

func TestError_TypeAndStatusInvariant(t *testing.T) {
	cases := []struct {
		name string
		code int
		err  error
	}{
		{"explicit", http.StatusUnprocessableEntity, errors.New("x")},
		{"http error", 0, NewHTTPError(http.StatusUnauthorized, "Unauthorized", "")},
		{"plain", 0, errors.New("y")},
		{"nil error", 0, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext()

			env, err := Error(c, tc.code, "", "")(tc.err)

			require.NoError(t, err)
			assert.Equal(t, TypeError, env.Type)
			assert.Equal(t, rec.Code, env.Code)
			assert.GreaterOrEqual(t, env.Code, http.StatusBadRequest)
			assert.Equal(t, env.Code, decode(t, rec).Code)
		})
	}
}

func TestFail_WithoutCause(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Fail(c, http.StatusNotFound, "Not Found", "Task not found", nil))

	body := decode(t, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", body.Description)
	assert.NotEmpty(t, body.Error)
}

func TestHTTPError_WrapKeepsCause(t *testing.T) {
	base := NewHTTPError(http.StatusInternalServerError, "Server Error", "")
	cause := errors.New("db down")

	wrapped := base.Wrap(cause)

	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, base.Cause)
	assert.Contains(t, Stringify(wrapped), "db down")
}

func TestHTTPErrorHandler_WritesEnvelope(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.GET("/boom", func(c echo.Context) error {
		return NewHTTPError(http.StatusConflict, "Conflict", "Email already in use")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	missing := httptest.NewRecorder()
	e.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, TypeError, env.Type)
	assert.Equal(t, "Email already in use", env.Description)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, TypeError, decode(t, missing).Type)
}

func TestSuccess_NilDataKeepsDataKey(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, OK(c, "Signed out", nil))

	assert.JSONEq(t, `{"type":"success","message":"Signed out","data":null}`, rec.Body.String())
}

func TestError_OmitsDataKey(t *testing.T) {
	c, rec := newContext()

	require.NoError(t, Fail(c, http.StatusNotFound, "Not Found", "", nil))

	assert.NotContains(t, rec.Body.String(), `"data"`)
}

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f *fieldError) Error() string { return f.Field + " " + f.Reason }

func TestStringify_UsesJSONFormOfError(t *testing.T) {
	assert.JSONEq(t, `{"field":"title","reason":"too long"}`, Stringify(&fieldError{"title", "too long"}))
	assert.JSONEq(t, `{"message":"plain"}`, Stringify(errors.New("plain")))
	assert.JSONEq(t, `{"message":"coded failure"}`, Stringify(coded{code: 418}))
}
