package tasks

import "time"

// Job type names. The prefix groups them in the asynq dashboard.
const (
	TypeEmailPasswordReset = "email:password_reset"
	TypeEmailWelcome       = "email:welcome"
	TypeCleanupSessions    = "maintenance:cleanup_sessions"
)

// Reset codes go to QueueCritical, welcome mail to QueueDefault and maintenance to QueueLow.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues holds the weights used by the workers. With strict priority a lower queue is only
// served while every higher one is empty.
var Queues = map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1}

const (
	TimeoutShort  = time.Minute
	TimeoutMedium = 5 * time.Minute

	RetryMax     = 5
	RetryDefault = 3

	// CleanupSpec is hourly, on the hour.
	CleanupSpec = "0 * * * *"
)

// PasswordResetPayload is everything the reset mail needs; the handler does no lookups.
type PasswordResetPayload struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type WelcomePayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}
