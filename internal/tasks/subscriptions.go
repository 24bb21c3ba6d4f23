package tasks

import (
	"context"
	"strings"

	"waos/internal/events"
	"waos/internal/models"
)

// Subscribe turns domain events into e-mail jobs.
func (c *TaskClient) Subscribe(bus *events.Bus) {
	bus.On(models.EventUserCreated, func(data interface{}) {
		user, ok := data.(*models.User)
		if !ok || user.Email == "" {
			return
		}
		if err := c.EnqueueWelcome(context.Background(), WelcomePayload{Email: user.Email, Name: displayName(user)}); err != nil {
			_ = c.logger.Error("Failed to enqueue welcome mail", err)
		}
	})

	bus.On(models.EventPasswordReset, func(data interface{}) {
		reset, ok := data.(*models.PasswordReset)
		if !ok || reset.User == nil {
			return
		}
		payload := PasswordResetPayload{
			Email:     reset.User.Email,
			Name:      displayName(reset.User),
			Code:      reset.Code,
			ExpiresAt: reset.ExpiresAt,
		}
		if err := c.EnqueuePasswordReset(context.Background(), payload); err != nil {
			_ = c.logger.Error("Failed to enqueue password reset mail", err)
		}
	})
}

func displayName(u *models.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}
