// Package response writes every API reply in the same JSON envelope.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	TypeSuccess = "success"
	TypeError   = "error"
)

// Envelope is the body of every API response. Type is "error" exactly when Code >= 400.
type Envelope struct {
	Type        string      `json:"type"`
	Message     string      `json:"message"`
	Data        interface{} `json:"data,omitempty"`
	Code        int         `json:"code,omitempty"`
	Description string      `json:"description,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// MarshalJSON keeps "data" on success replies even when it is null.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type plain Envelope
	if e.Type != TypeSuccess {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		plain
		Data interface{} `json:"data"`
	}{plain(e), e.Data})
}

// HTTPError is an error value that carries its own envelope fields.
type HTTPError struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Cause       error  `json:"-"`
}

func NewHTTPError(code int, message, description string) *HTTPError {
	return &HTTPError{Code: code, Message: message, Description: description}
}

func (e *HTTPError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Description)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Cause }

func (e *HTTPError) StatusCode() int { return e.Code }

// Wrap attaches cause to the error.
func (e *HTTPError) Wrap(cause error) *HTTPError {
	out := *e
	out.Cause = cause
	return &out
}

func (e *HTTPError) MarshalJSON() ([]byte, error) {
	type alias HTTPError
	payload := struct {
		*alias
		Cause string `json:"cause,omitempty"`
	}{alias: (*alias)(e)}
	if e.Cause != nil {
		payload.Cause = e.Cause.Error()
	}
	return json.Marshal(payload)
}

// statusCoder is implemented by errors that know their HTTP status.
type statusCoder interface {
	StatusCode() int
}

// describer is implemented by errors that carry a human readable description.
type describer interface {
	Description() string
}

// Success returns a writer that replies 200 with {type:"success", message, data}.
func Success(c echo.Context, message string) func(data interface{}) (Envelope, error) {
	return func(data interface{}) (Envelope, error) {
		env := Envelope{
			Type:    TypeSuccess,
			Message: message,
			Data:    data,
		}
		return env, c.JSON(http.StatusOK, env)
	}
}

// Error returns a writer for error replies. Zero-valued arguments fall back to what the error
// value carries; the status is never below 400.
func Error(c echo.Context, code int, message, description string) func(err error) (Envelope, error) {
	return func(err error) (Envelope, error) {
		env := Build(code, message, description, err)
		return env, c.JSON(env.Code, env)
	}
}

// Build constructs the error envelope without writing it.
func Build(code int, message, description string, err error) Envelope {
	fbCode, fbMessage, fbDescription := fallbacks(err)

	if code == 0 {
		code = fbCode
	}
	if code < http.StatusBadRequest {
		code = http.StatusInternalServerError
	}
	if message == "" {
		message = fbMessage
	}
	if message == "" {
		message = http.StatusText(code)
	}
	if description == "" {
		description = fbDescription
	}

	return Envelope{
		Type:        TypeError,
		Message:     message,
		Code:        code,
		Description: description,
		Error:       Stringify(err),
	}
}

func fallbacks(err error) (code int, message, description string) {
	if err == nil {
		return 0, "", ""
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return he.Code, he.Message, he.Description
	}

	var ee *echo.HTTPError
	if errors.As(err, &ee) {
		msg := fmt.Sprint(ee.Message)
		if s, ok := ee.Message.(string); ok {
			msg = s
		}
		return ee.Code, msg, ""
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	var d describer
	if errors.As(err, &d) {
		description = d.Description()
	}
	return code, err.Error(), description
}

// Stringify renders an error value as JSON. Errors that marshal to nothing useful (no exported
// fields, or a marshal failure) are rendered as {"message": err.Error()}.
func Stringify(err error) string {
	if err == nil {
		return ""
	}
	if b, mErr := json.Marshal(err); mErr == nil && !emptyJSON(b) {
		return string(b)
	}
	b, mErr := json.Marshal(map[string]string{"message": err.Error()})
	if mErr != nil {
		return `{}`
	}
	return string(b)
}

func emptyJSON(b []byte) bool {
	switch string(b) {
	case "{}", "null", `""`:
		return true
	}
	return false
}

// OK writes a success envelope.
func OK(c echo.Context, message string, data interface{}) error {
	_, err := Success(c, message)(data)
	return err
}

// Fail writes an error envelope.
func Fail(c echo.Context, code int, message, description string, cause error) error {
	if cause == nil {
		cause = NewHTTPError(code, message, description)
	}
	_, err := Error(c, code, message, description)(cause)
	return err
}

// HTTPErrorHandler is installed as echo's error handler so errors returned from handlers and
// middleware reach the client in the same envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	env := Build(0, "", "", err)
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(env.Code)
	} else {
		err = c.JSON(env.Code, env)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
