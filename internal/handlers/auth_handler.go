package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"waos/internal/acl"
	"waos/internal/api/middleware"
	"waos/internal/api/response"
	"waos/internal/api/validator"
	"waos/internal/config"
	"waos/internal/events"
	"waos/internal/metrics"
	"waos/internal/models"
	"waos/internal/utils"
	"waos/internal/utils/logger"
)

const resetCodeLength = 10

var (
	errInvalidCredentials = response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
	errInvalidRefresh     = response.NewHTTPError(http.StatusUnauthorized, "Unauthorized", "Invalid refresh token")
	errAccountTaken       = response.NewHTTPError(http.StatusConflict, "Conflict", "Email or username already in use")
	errInvalidResetCode   = response.NewHTTPError(http.StatusBadRequest, "Bad Request", "Invalid or expired reset code")
)

// SignupSchema validates POST /api/auth/signup.
func SignupSchema() *validator.Schema {
	return validator.NewSchema(
		validator.String("firstName").Required().Rules("max=100"),
		validator.String("lastName").Required().Rules("max=100"),
		validator.String("email").Required().Rules("email,max=254"),
		validator.String("username").Rules("min=3,max=32,alphanum"),
		validator.String("password").Required().Rules("max=128"),
	)
}

type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// Session is returned by every endpoint that signs a user in.
type Session struct {
	User         *models.User `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

type AuthHandler struct {
	db         *gorm.DB
	log        *logger.Logger
	tokens     *utils.TokenManager
	security   config.SecurityConfig
	limiter    ResetLimiter
	google     ProfileFetcher
	downloader Downloader
	avatars    AvatarStore
	now        func() time.Time
}

// AuthDeps groups the collaborators of the auth handler.
type AuthDeps struct {
	Tokens     *utils.TokenManager
	Security   config.SecurityConfig
	Limiter    ResetLimiter
	Google     ProfileFetcher
	Downloader Downloader
	Avatars    AvatarStore
}

func NewAuthHandler(db *gorm.DB, deps AuthDeps) *AuthHandler {
	return &AuthHandler{
		db:         db,
		log:        logger.New("AuthHandler"),
		tokens:     deps.Tokens,
		security:   deps.Security,
		limiter:    deps.Limiter,
		google:     deps.Google,
		downloader: deps.Downloader,
		avatars:    deps.Avatars,
		now:        time.Now,
	}
}

// bindStruct binds and validates req with the echo validator, writing the schema error envelope
// on failure. It returns false when the response has been written.
func bindStruct(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, response.Fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error(), err)
	}
	if err := c.Validate(req); err != nil {
		return false, response.Fail(c, http.StatusUnprocessableEntity, "Schema validation error", "", err)
	}
	return true, nil
}

// issueSession creates tokens for user and records them as a new auth transaction.
func (h *AuthHandler) issueSession(c echo.Context, user *models.User) (*Session, error) {
	token, expires, err := h.tokens.GenerateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, refreshExpires, err := h.tokens.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	transaction := &models.AuthTransaction{
		UserID:    user.ID,
		Token:     token,
		Refresh:   refresh,
		IPAddress: utils.GetIPAddress(c.Request()),
		UserAgent: c.Request().UserAgent(),
		ExpiresAt: refreshExpires,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(transaction).Error; err != nil {
		return nil, fmt.Errorf("create auth transaction: %w", err)
	}

	metrics.AuthTokensIssued.WithLabelValues(utils.TokenTypeAccess).Inc()
	metrics.AuthTokensIssued.WithLabelValues(utils.TokenTypeRefresh).Inc()
	return &Session{User: user, Token: token, RefreshToken: refresh, ExpiresAt: expires}, nil
}

// Signup registers a local account and signs it in.
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope{data=Session}
// @Failure 409 {object} response.Envelope "Email or username already in use"
// @Failure 422 {object} response.Envelope "Schema validation error or weak password"
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return response.Fail(c, http.StatusBadRequest, "Invalid JSON body", err.Error(), err)
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" {
		req.Username = strings.SplitN(req.Email, "@", 2)[0]
	}

	if err := utils.CheckPasswordStrength(req.Password, h.security.MinPasswordScore,
		req.FirstName, req.LastName, req.Email, req.Username); err != nil {
		return response.Fail(c, http.StatusUnprocessableEntity, "Weak password", "", err)
	}

	ctx := c.Request().Context()
	var count int64
	if err := h.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR username = ?", req.Email, req.Username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errAccountTaken
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: strings.TrimSpace(req.FirstName + " " + req.LastName),
		Email:       req.Email,
		Username:    req.Username,
		Password:    hashed,
		Roles:       []string{acl.RoleUser},
		Provider:    models.ProviderLocal,
	}
	if err := h.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	metrics.AuthRegistrations.Inc()

	session, err := h.issueSession(c, user)
	if err != nil {
		return err
	}
	return response.OK(c, "User registered", session)
}

// Signin authenticates with e-mail or username and password.
// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.SigninRequest true "Credentials"
// @Success 200 {object} response.Envelope{data=Session}
// @Failure 401 {object} response.Envelope "Invalid credentials"
// @Router /api/auth/signin [post]
func (h *AuthHandler) Signin(c echo.Context) error {
	var req validator.SigninRequest
	if ok, err := bindStruct(c, &req); !ok {
		return err
	}

	login := req.Email
	if login == "" {
		login = req.Username
	}

	user, err := models.GetUserByLogin(login, h.db.WithContext(c.Request().Context()))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthLogins.WithLabelValues("failed").Inc()
			return errInvalidCredentials
		}
		return err
	}
	if !utils.ComparePassword(user.Password, req.Password) {
		metrics.AuthLogins.WithLabelValues("failed").Inc()
		return errInvalidCredentials
	}

	session, err := h.issueSession(c, user)
	if err != nil {
		return err
	}
	metrics.AuthLogins.WithLabelValues("success").Inc()
	return response.OK(c, "Signed in", session)
}

// Signout revokes the session of the presented token.
// @Summary Sign out
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /api/auth/signout [post]
func (h *AuthHandler) Signout(c echo.Context) error {
	res := h.db.WithContext(c.Request().Context()).Model(&models.AuthTransaction{}).
		Where("token = ? AND is_deleted = ?", middleware.GetToken(c), false).
		Updates(models.Tombstone(h.now()))
	if res.Error != nil {
		return res.Error
	}
	return response.OK(c, "Signed out", nil)
}

// RefreshToken issues a new access token for a live session.
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.RefreshRequest true "Refresh token"
// @Success 200 {object} response.Envelope{data=Session}
// @Failure 401 {object} response.Envelope "Invalid refresh token"
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req validator.RefreshRequest
	if ok, err := bindStruct(c, &req); !ok {
		return err
	}

	claims, err := h.tokens.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return errInvalidRefresh.Wrap(err)
	}

	ctx := c.Request().Context()
	var transaction models.AuthTransaction
	if err := h.db.WithContext(ctx).
		Where("user_id = ? AND refresh = ? AND is_deleted = ? AND expires_at > ?", claims.UserID, req.RefreshToken, false, h.now()).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidRefresh
		}
		return err
	}

	user, err := models.GetUserByID(transaction.UserID, h.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidRefresh
		}
		return err
	}

	token, expires, err := h.tokens.GenerateJWT(user)
	if err != nil {
		return err
	}
	if err := h.db.WithContext(ctx).Model(&transaction).Update("token", token).Error; err != nil {
		return fmt.Errorf("rotate access token: %w", err)
	}
	metrics.AuthTokensIssued.WithLabelValues(utils.TokenTypeAccess).Inc()

	return response.OK(c, "Token refreshed", &Session{
		User:         user,
		Token:        token,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    expires,
	})
}

// ForgotPassword stores a reset code and queues the e-mail. The reply never reveals whether the
// address is registered.
// @Summary Request password reset
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.ForgotPasswordRequest true "Email for password reset"
// @Success 200 {object} response.Envelope "Reset code sent if email exists"
// @Router /api/auth/forgot [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req validator.ForgotPasswordRequest
	if ok, err := bindStruct(c, &req); !ok {
		return err
	}

	done := func() error {
		return response.OK(c, "If the email exists, a reset code will be sent", nil)
	}

	ctx := c.Request().Context()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, email)
		if err != nil {
			_ = h.log.Error("Reset limiter unavailable", err)
		} else if !allowed {
			metrics.PasswordResetsRequested.WithLabelValues("throttled").Inc()
			return done()
		}
	}

	var user models.User
	if err := h.db.WithContext(ctx).Where("email = ? AND is_deleted = ?", email, false).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PasswordResetsRequested.WithLabelValues("unknown").Inc()
			return done()
		}
		return err
	}

	code, err := utils.GenerateRandomString(resetCodeLength)
	if err != nil {
		return err
	}

	reset := &models.PasswordReset{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: h.now().Add(h.security.ResetCodeTTL),
	}
	if err := h.db.WithContext(ctx).Create(reset).Error; err != nil {
		return fmt.Errorf("create reset code: %w", err)
	}

	reset.User = &user
	events.Emit(models.EventPasswordReset, reset)
	metrics.PasswordResetsRequested.WithLabelValues("issued").Inc()

	return done()
}

// ResetPassword sets a new password with a reset code and revokes every session of the user.
// @Summary Reset password
// @Tags auth
// @Accept json
// @Produce json
// @Param code path string true "Reset code"
// @Param request body validator.ResetPasswordRequest true "New password"
// @Success 200 {object} response.Envelope "Password reset successfully"
// @Failure 400 {object} response.Envelope "Invalid or expired reset code"
// @Router /api/auth/reset/{code} [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req validator.ResetPasswordRequest
	if ok, err := bindStruct(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	var reset models.PasswordReset
	if err := h.db.WithContext(ctx).
		Where("code = ? AND used = ? AND expires_at > ?", c.Param("code"), false, h.now()).
		First(&reset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidResetCode
		}
		return err
	}

	user, err := models.GetUserByID(reset.UserID, h.db.WithContext(ctx))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidResetCode
		}
		return err
	}

	if err := utils.CheckPasswordStrength(req.NewPassword, h.security.MinPasswordScore,
		user.FirstName, user.LastName, user.Email, user.Username); err != nil {
		return response.Fail(c, http.StatusUnprocessableEntity, "Weak password", "", err)
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hashed).Error; err != nil {
			return err
		}
		if err := tx.Model(&reset).Update("used", true).Error; err != nil {
			return err
		}
		return revokeSessions(tx, user.ID, h.now())
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	return response.OK(c, "Password reset successfully", nil)
}

func revokeSessions(tx *gorm.DB, userID string, now time.Time) error {
	return tx.Model(&models.AuthTransaction{}).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		Updates(models.Tombstone(now)).Error
}

// GoogleAuthCallback signs in with a Google access token, creating or linking the account.
// @Summary Authenticate with Google
// @Tags auth
// @Produce json
// @Param Authorization header string true "Bearer <google access token>"
// @Success 200 {object} response.Envelope{data=Session}
// @Failure 401 {object} response.Envelope "Failed to get user data from Google"
// @Router /api/auth/google/callback [get]
func (h *AuthHandler) GoogleAuthCallback(c echo.Context) error {
	accessToken := strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "))
	if accessToken == "" {
		return response.Fail(c, http.StatusBadRequest, "Bad Request", "No access token provided", nil)
	}

	ctx := c.Request().Context()
	profile, raw, err := h.google.GetUserDataFromGoogle(ctx, accessToken)
	if err != nil {
		return response.Fail(c, http.StatusUnauthorized, "Unauthorized", "Failed to get user data from Google", err)
	}
	email := strings.ToLower(profile.Email)

	var user models.User
	err = h.db.WithContext(ctx).
		Where("is_deleted = ? AND (email = ? OR (provider = ? AND provider_id = ?))", false, email, models.ProviderGoogle, profile.ID).
		First(&user).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Base:         models.Base{ID: uuid.NewString()},
			FirstName:    profile.GivenName,
			LastName:     profile.FamilyName,
			DisplayName:  profile.Name,
			Email:        email,
			Username:     googleUsername(email, profile.ID),
			Roles:        []string{acl.RoleUser},
			Provider:     models.ProviderGoogle,
			ProviderID:   profile.ID,
			ProviderData: datatypes.JSON(raw),
		}
		user.ProfileImageURL = h.importPicture(c, user.ID, profile.Picture)
		if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
			return fmt.Errorf("create google user: %w", err)
		}
		metrics.AuthRegistrations.Inc()
	case err != nil:
		return err
	case user.ProviderID == "":
		// link an existing local account
		updates := map[string]interface{}{
			"provider":      models.ProviderGoogle,
			"provider_id":   profile.ID,
			"provider_data": datatypes.JSON(raw),
		}
		if user.ProfileImageURL == "" {
			if url := h.importPicture(c, user.ID, profile.Picture); url != "" {
				updates["profile_image_url"] = url
			}
		}
		if err := h.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return fmt.Errorf("link google account: %w", err)
		}
	}

	session, err := h.issueSession(c, &user)
	if err != nil {
		return err
	}
	metrics.AuthLogins.WithLabelValues("success").Inc()
	return response.OK(c, "Signed in with Google", session)
}

// importPicture copies a provider picture into storage. Failures are logged and yield "".
func (h *AuthHandler) importPicture(c echo.Context, userID, pictureURL string) string {
	if pictureURL == "" || h.downloader == nil || h.avatars == nil {
		return ""
	}
	ctx := c.Request().Context()

	data, _, err := h.downloader.DownloadFile(ctx, pictureURL)
	if err != nil {
		_ = h.log.Error("Failed to download profile picture", err)
		return ""
	}
	url, err := h.avatars.Save(ctx, userID, data)
	if err != nil {
		_ = h.log.Error("Failed to store profile picture", err)
		return ""
	}
	return url
}

func googleUsername(email, providerID string) string {
	local := strings.SplitN(email, "@", 2)[0]
	suffix := providerID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return local + suffix
}
