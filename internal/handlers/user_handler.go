package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/api/middleware"
	"waos/internal/api/response"
	"waos/internal/api/validator"
	"waos/internal/config"
	"waos/internal/models"
	"waos/internal/services"
	"waos/internal/utils"
	"waos/internal/utils/logger"
)

// ProfileSchema validates PUT /api/users. Every field is optional and no defaults are applied.
func ProfileSchema() *validator.Schema {
	return validator.NewSchema(
		validator.String("firstName").Rules("max=100"),
		validator.String("lastName").Rules("max=100"),
		validator.String("displayName").AllowEmpty().Rules("max=100"),
		validator.String("username").Rules("min=3,max=32,alphanum"),
		validator.String("bio").AllowEmpty().Rules("max=500"),
		validator.String("position").AllowEmpty().Rules("max=100"),
	)
}

type UserHandler struct {
	db        *gorm.DB
	users     services.BaseService[models.User]
	avatars   AvatarStore
	security  config.SecurityConfig
	maxAvatar int64
	log       *logger.Logger
}

func NewUserHandler(db *gorm.DB, avatars AvatarStore, security config.SecurityConfig, uploads config.UploadsConfig) *UserHandler {
	return &UserHandler{
		db:        db,
		users:     services.NewBaseService(db, models.User{}),
		avatars:   avatars,
		security:  security,
		maxAvatar: uploads.MaxAvatarBytes,
		log:       logger.New("UserHandler"),
	}
}

// GetMe returns the current user
// @Summary Get current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope{data=models.User}
// @Router /api/users/me [get]
func (h *UserHandler) GetMe(c echo.Context) error {
	return response.OK(c, "Current user", middleware.GetUser(c))
}

// UpdateProfile changes the caller's own profile fields.
// @Summary Update profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 409 {object} response.Envelope "Username already in use"
// @Failure 422 {object} response.Envelope "Schema validation error"
// @Router /api/users [put]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	changes := validator.Payload(c)
	userID := middleware.GetUserID(c)
	ctx := c.Request().Context()

	if username, ok := changes["username"].(string); ok {
		var count int64
		if err := h.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ? AND id <> ?", username, userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.Fail(c, http.StatusConflict, "Conflict", "Username already in use", nil)
		}
	}

	user, err := h.users.Update(ctx, userID, changes)
	if err != nil {
		return err
	}
	return response.OK(c, "Profile updated", user)
}

// ChangePassword replaces the caller's password and signs out every other session.
// @Summary Change password
// @Tags users
// @Security BearerAuth
// @Accept json
// @Param request body validator.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope "Current password is incorrect"
// @Router /api/users/password [post]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req validator.ChangePasswordRequest
	if ok, err := bindStruct(c, &req); !ok {
		return err
	}

	user := middleware.GetUser(c)
	if !utils.ComparePassword(user.Password, req.CurrentPassword) {
		return response.Fail(c, http.StatusUnauthorized, "Unauthorized", "Current password is incorrect", nil)
	}

	if err := utils.CheckPasswordStrength(req.NewPassword, h.security.MinPasswordScore,
		user.FirstName, user.LastName, user.Email, user.Username); err != nil {
		return response.Fail(c, http.StatusUnprocessableEntity, "Weak password", "", err)
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	token := middleware.GetToken(c)
	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return err
		}
		return tx.Model(&models.AuthTransaction{}).
			Where("user_id = ? AND token <> ? AND is_deleted = ?", user.ID, token, false).
			Updates(models.Tombstone(time.Now())).Error
	})
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return response.OK(c, "Password changed", nil)
}

// UploadPicture replaces the caller's profile picture.
// @Summary Upload profile picture
// @Tags users
// @Security BearerAuth
// @Accept multipart/form-data
// @Param picture formData file true "Image (jpeg, png or gif)"
// @Success 200 {object} response.Envelope{data=models.User}
// @Failure 413 {object} response.Envelope "Picture too large"
// @Failure 422 {object} response.Envelope "Unsupported image"
// @Router /api/users/picture [post]
func (h *UserHandler) UploadPicture(c echo.Context) error {
	file, err := c.FormFile("picture")
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "Bad Request", "No picture provided", err)
	}
	if h.maxAvatar > 0 && file.Size > h.maxAvatar {
		return response.Fail(c, http.StatusRequestEntityTooLarge, "Picture too large",
			fmt.Sprintf("Pictures are limited to %d bytes", h.maxAvatar), nil)
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}

	user := middleware.GetUser(c)
	ctx := c.Request().Context()
	url, err := h.avatars.Save(ctx, user.ID, data)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedImage) {
			return response.Fail(c, http.StatusUnprocessableEntity, "Unsupported image", "Pictures must be jpeg, png or gif", err)
		}
		if errors.Is(err, services.ErrImageTooLarge) {
			return response.Fail(c, http.StatusRequestEntityTooLarge, "Picture too large", err.Error(), err)
		}
		return err
	}

	updated, err := h.users.Update(ctx, user.ID, map[string]interface{}{"profileImageURL": url})
	if err != nil {
		return err
	}
	h.log.Info("Profile picture of %s updated", user.ID)
	return response.OK(c, "Profile picture updated", updated)
}
