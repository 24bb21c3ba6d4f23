package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"waos/internal/api/middleware"
	"waos/internal/api/response"
	"waos/internal/models"
	"waos/internal/services"
	"waos/internal/utils/logger"
)

const signedURLTTL = time.Hour

type UploadHandler struct {
	log     *logger.Logger
	storage services.Storage
	files   services.BaseService[models.File]
}

func NewUploadHandler(db *gorm.DB, storage services.Storage) *UploadHandler {
	return &UploadHandler{
		log:     logger.New("upload_handler"),
		storage: storage,
		files:   services.NewBaseService(db, models.File{}),
	}
}

// UploadFile stores a multipart file for the caller
// @Summary Upload a file
// @Tags uploads
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 200 {object} response.Envelope{data=models.File}
// @Failure 400 {object} response.Envelope "No file provided"
// @Router /api/uploads [post]
func (h *UploadHandler) UploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, "Bad Request", "No file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	userID := middleware.GetUserID(c)
	contentType := file.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	key := fmt.Sprintf("files/%s/%s%s", userID, uuid.NewString(), path.Ext(file.Filename))
	ctx := c.Request().Context()
	if _, err := h.storage.Put(ctx, key, content, contentType); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}

	record := &models.File{
		UserID: userID,
		Path:   key,
		Name:   file.Filename,
		Size:   file.Size,
		Type:   contentType,
	}
	if err := h.files.Create(ctx, record); err != nil {
		if delErr := h.storage.Delete(ctx, key); delErr != nil {
			_ = h.log.Error("Failed to remove orphaned upload %s", delErr, key)
		}
		return fmt.Errorf("record upload: %w", err)
	}

	if record.SignedURL, err = h.storage.GetSignedURL(ctx, key, signedURLTTL); err != nil {
		return err
	}

	h.log.Success("File uploaded successfully: %s", key)
	return response.OK(c, "File uploaded successfully", record)
}

// ListFiles lists the caller's files, newest first, with signed URLs.
// @Summary List my files
// @Tags uploads
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope{data=[]models.File}
// @Router /api/uploads [get]
func (h *UploadHandler) ListFiles(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	files, total, err := h.files.List(c.Request().Context(), services.ListQuery{
		Page:    page,
		Limit:   limit,
		Filters: map[string]interface{}{"userId": middleware.GetUserID(c)},
	})
	if err != nil {
		return err
	}
	if files == nil {
		files = []models.File{}
	}

	return response.OK(c, "Files", map[string]interface{}{
		"items": files,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// DeleteFile removes a file owned by the caller. LoadResource has already resolved it.
// @Summary Delete a file
// @Tags uploads
// @Security BearerAuth
// @Param fileId path string true "File ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope "User is not authorized"
// @Failure 404 {object} response.Envelope "Not Found"
// @Router /api/uploads/{fileId} [delete]
func (h *UploadHandler) DeleteFile(c echo.Context) error {
	file, ok := middleware.Resource[*models.File](c)
	if !ok {
		return response.Fail(c, http.StatusNotFound, "Not Found", "No file with that identifier has been found", nil)
	}

	ctx := c.Request().Context()
	if err := h.files.Delete(ctx, file.ID); err != nil {
		return err
	}
	if err := h.storage.Delete(ctx, file.Path); err != nil {
		_ = h.log.Error("Failed to delete object %s", err, file.Path)
	}

	return response.OK(c, "File deleted", map[string]string{"id": file.ID})
}
