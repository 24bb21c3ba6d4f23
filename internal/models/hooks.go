package models

import (
	"waos/internal/events"

	"gorm.io/gorm"
)

// Event names emitted from model hooks.
const (
	EventUserCreated = "users.created"
	EventTaskCreated = "tasks.created"
	// EventPasswordReset carries a *PasswordReset with User loaded.
	EventPasswordReset = "users.password_reset"
)

func (u *User) AfterCreate(tx *gorm.DB) error {
	log.Debug("User created %s", u.ID)
	events.Emit(EventUserCreated, u)
	return nil
}

