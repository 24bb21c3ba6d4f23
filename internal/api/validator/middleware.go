package validator

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"waos/internal/api/response"
	"waos/internal/config"
	"waos/internal/metrics"
)

// PayloadKey is the context key holding the coerced body after a successful validation.
const PayloadKey = "validatedBody"

// DefaultMethods are the methods whose bodies are validated when none are configured.
var DefaultMethods = []string{http.MethodPost, http.MethodPut}

type BodyConfig struct {
	Schema  *Schema
	Options Options
	// Methods subject to validation. Others pass through untouched.
	Methods []string
	// AllowMultipart lets multipart/form-data requests through unvalidated, for routes whose
	// handler reads files itself. Otherwise they are rejected with 415.
	AllowMultipart bool
}

// Body validates JSON request bodies against schema for POST and PUT.
func Body(schema *Schema, opts Options) echo.MiddlewareFunc {
	return BodyWithConfig(BodyConfig{Schema: schema, Options: opts})
}

// BodyFactory builds body middleware that shares the configured methods and redaction
// whitelist. Options passed to the factory keep their own flags.
type BodyFactory func(schema *Schema, opts Options) echo.MiddlewareFunc

func NewBodyFactory(cfg config.ValidationConfig) BodyFactory {
	return func(schema *Schema, opts Options) echo.MiddlewareFunc {
		if opts.SafeFields == nil {
			opts.SafeFields = cfg.SafeUserFields
		}
		return BodyWithConfig(BodyConfig{Schema: schema, Options: opts, Methods: cfg.Methods})
	}
}

func BodyWithConfig(config BodyConfig) echo.MiddlewareFunc {
	if config.Schema == nil {
		panic("validator: body middleware requires a schema")
	}
	methods := config.Methods
	if len(methods) == 0 {
		methods = DefaultMethods
	}
	gated := make(map[string]bool, len(methods))
	for _, m := range methods {
		gated[strings.ToUpper(m)] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !gated[req.Method] {
				return next(c)
			}
			if isMultipart(req) {
				if config.AllowMultipart {
					return next(c)
				}
				return response.Fail(c, http.StatusUnsupportedMediaType, "Unsupported Media Type",
					"Request body must be a JSON object", nil)
			}

			payload, err := readObject(req)
			if err != nil {
				return response.Fail(c, http.StatusBadRequest, "Invalid JSON body", "Request body must be a JSON object", err)
			}

			result := Validate(payload, config.Schema, config.Options)
			if !result.OK() {
				metrics.RecordValidationFailure(c.Path())
				_, err := response.Error(c, http.StatusUnprocessableEntity, "Schema validation error", result.Failure.Description())(result.Failure)
				return err
			}

			body, err := json.Marshal(result.Value)
			if err != nil {
				return err
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
			req.Header.Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
			c.Set(PayloadKey, result.Value)

			return next(c)
		}
	}
}

// Payload returns the coerced body stored by Body, or nil.
func Payload(c echo.Context) map[string]interface{} {
	if p, ok := c.Get(PayloadKey).(map[string]interface{}); ok {
		return p
	}
	return nil
}

func isMultipart(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// readObject decodes the body as a JSON object. An empty body is an empty object.
func readObject(req *http.Request) (map[string]interface{}, error) {
	if req.Body == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]interface{}{}, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		// literal null
		return map[string]interface{}{}, nil
	}
	return payload, nil
}
