package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"waos/internal/metrics"
	"waos/internal/models"
	"waos/internal/utils/logger"
)

// TaskHandler handles task processing with improved error handling and logging
type TaskHandler struct {
	db      *gorm.DB
	logger  *logger.Logger
	mailer  Mailer
	appName string
	now     func() time.Time
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(db *gorm.DB, mailer Mailer, appName string) *TaskHandler {
	return &TaskHandler{
		db:      db,
		logger:  logger.New("task_handler"),
		mailer:  mailer,
		appName: appName,
		now:     time.Now,
	}
}

// Register mounts every handler on mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEmailPasswordReset, h.track(TypeEmailPasswordReset, h.HandlePasswordReset))
	mux.HandleFunc(TypeEmailWelcome, h.track(TypeEmailWelcome, h.HandleWelcome))
	mux.HandleFunc(TypeCleanupSessions, h.track(TypeCleanupSessions, h.HandleCleanupSessions))
}

func (h *TaskHandler) track(typ string, fn func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		err := fn(ctx, t)
		status := "success"
		if err != nil {
			status = "failed"
			_ = h.logger.Error("Task %s failed", err, typ)
		}
		metrics.JobsProcessed.WithLabelValues(typ, status).Inc()
		return err
	}
}

func (h *TaskHandler) HandlePasswordReset(ctx context.Context, t *asynq.Task) error {
	var p PasswordResetPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	body := fmt.Sprintf("Hi %s,\n\nUse this code to reset your %s password: %s\n\nIt expires at %s.\n",
		p.Name, h.appName, p.Code, p.ExpiresAt.UTC().Format(time.RFC1123))
	return h.mailer.Send(ctx, p.Email, fmt.Sprintf("Reset your %s password", h.appName), body)
}

func (h *TaskHandler) HandleWelcome(ctx context.Context, t *asynq.Task) error {
	var p WelcomePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	body := fmt.Sprintf("Hi %s,\n\nWelcome to %s.\n", p.Name, h.appName)
	return h.mailer.Send(ctx, p.Email, fmt.Sprintf("Welcome to %s", h.appName), body)
}

// HandleCleanupSessions removes expired sessions and spent reset codes.
func (h *TaskHandler) HandleCleanupSessions(ctx context.Context, _ *asynq.Task) error {
	now := h.now()

	sessions := h.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.AuthTransaction{})
	if sessions.Error != nil {
		return fmt.Errorf("delete expired sessions: %w", sessions.Error)
	}

	resets := h.db.WithContext(ctx).Where("expires_at < ? OR used = ?", now, true).Delete(&models.PasswordReset{})
	if resets.Error != nil {
		return fmt.Errorf("delete spent reset codes: %w", resets.Error)
	}

	h.logger.Info("Removed %d expired sessions and %d reset codes", sessions.RowsAffected, resets.RowsAffected)
	return nil
}
