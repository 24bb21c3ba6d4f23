package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	playgroundvalidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Roles known to the ACL. Kept here so request structs can validate them.
var knownRoles = map[string]bool{"guest": true, "user": true, "admin": true}

// ValidationErrors wraps the validator's ValidationErrors
type ValidationErrors []playgroundvalidator.FieldError

// CustomValidator wraps go-playground/validator for echo's c.Validate.
type CustomValidator struct {
	validator *playgroundvalidator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() echo.Validator {
	v := playgroundvalidator.New()

	// Report json names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("user_role", validateUserRole); err != nil {
		panic(fmt.Sprintf("register user_role: %v", err))
	}

	return &CustomValidator{validator: v}
}

func validateUserRole(fl playgroundvalidator.FieldLevel) bool {
	return knownRoles[fl.Field().String()]
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		var validationErrors playgroundvalidator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return ValidationErrors(validationErrors)
		}
		return err
	}
	return nil
}

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var fields []string
	for _, err := range ve {
		fields = append(fields, err.Field())
	}
	return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
}

// Failure converts struct validation errors into the same shape the body middleware returns.
func (ve ValidationErrors) Failure() *ValidationFailure {
	details := make([]Detail, 0, len(ve))
	for _, fe := range ve {
		kind := kindOf(fe.Kind())
		msg, typ := ruleMessage(kind, fe.Tag(), fe.Param())
		details = append(details, Detail{Message: quote(fe.Field()) + " " + msg, Type: typ, Path: fe.Field()})
	}
	return &ValidationFailure{Details: details, Original: map[string]interface{}{}}
}

func (ve ValidationErrors) StatusCode() int { return http.StatusUnprocessableEntity }

func (ve ValidationErrors) Description() string { return ve.Failure().Description() }

func (ve ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(ve.Failure())
}

func kindOf(k reflect.Kind) Kind {
	switch k {
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindNumber
	case reflect.Bool:
		return KindBoolean
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Map, reflect.Struct:
		return KindObject
	}
	return KindAny
}

// Request structs for endpoints that bind into Go types instead of going through a schema.

type SigninRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username" validate:"required_without=Email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,nefield=CurrentPassword"`
}

type AdminUserUpdateRequest struct {
	FirstName *string  `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string  `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Roles     []string `json:"roles" validate:"omitempty,min=1,dive,user_role"`
}
