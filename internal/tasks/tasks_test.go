package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"waos/internal/config"
	"waos/internal/events"
	"waos/internal/metrics"
	"waos/internal/models"
	console "waos/internal/utils/logger"
)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(task.Type(), string(task.Payload()))
	if info, ok := args.Get(0).(*asynq.TaskInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEnqueuer) Close() error { return nil }

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

func TestEnqueuePasswordReset(t *testing.T) {
	// Arrange
	enq := new(mockEnqueuer)
	client := NewTaskClientWith(enq, nil)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	enq.On("EnqueueContext", TypeEmailPasswordReset, mock.MatchedBy(func(payload string) bool {
		var p PasswordResetPayload
		return json.Unmarshal([]byte(payload), &p) == nil && p.Code == "abc123" && p.ExpiresAt.Equal(expires)
	})).Return(&asynq.TaskInfo{ID: "1", Queue: QueueCritical}, nil)

	// Act
	err := client.EnqueuePasswordReset(context.Background(), PasswordResetPayload{
		Email: "ada@example.com", Code: "abc123", ExpiresAt: expires,
	})

	// Assert
	require.NoError(t, err)
	enq.AssertExpectations(t)
}

func TestEnqueue_WrapsError(t *testing.T) {
	enq := new(mockEnqueuer)
	client := NewTaskClientWith(enq, nil)
	enq.On("EnqueueContext", TypeEmailWelcome, mock.Anything).Return(nil, errors.New("redis down"))

	err := client.EnqueueWelcome(context.Background(), WelcomePayload{Email: "ada@example.com"})

	assert.ErrorContains(t, err, "enqueue email:welcome")
}

func TestSubscribe_EnqueuesMailForEvents(t *testing.T) {
	// Arrange
	enq := new(mockEnqueuer)
	client := NewTaskClientWith(enq, nil)
	bus := events.NewBus()
	client.Subscribe(bus)
	enq.On("EnqueueContext", TypeEmailWelcome, `{"email":"ada@example.com","name":"Ada Lovelace"}`).
		Return(&asynq.TaskInfo{ID: "1"}, nil)
	enq.On("EnqueueContext", TypeEmailPasswordReset, mock.Anything).
		Return(&asynq.TaskInfo{ID: "2"}, nil)
	user := &models.User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}

	// Act
	bus.Emit(models.EventUserCreated, user)
	bus.Emit(models.EventPasswordReset, &models.PasswordReset{User: user, Code: "c"})
	bus.Emit(models.EventPasswordReset, &models.PasswordReset{Code: "no user"})
	bus.Wait()

	// Assert
	enq.AssertExpectations(t)
	enq.AssertNumberOfCalls(t, "EnqueueContext", 2)
}

func TestHandlePasswordReset_SendsCode(t *testing.T) {
	mailer := new(mockMailer)
	h := NewTaskHandler(nil, mailer, "waos")
	payload, _ := json.Marshal(PasswordResetPayload{Email: "ada@example.com", Name: "Ada", Code: "XyZ123"})
	mailer.On("Send", "ada@example.com", "Reset your waos password", mock.MatchedBy(func(body string) bool {
		return assert.Contains(t, body, "XyZ123")
	})).Return(nil)

	err := h.HandlePasswordReset(context.Background(), asynq.NewTask(TypeEmailPasswordReset, payload))

	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestHandleWelcome_BadPayloadSkipsRetry(t *testing.T) {
	h := NewTaskHandler(nil, new(mockMailer), "waos")

	err := h.HandleWelcome(context.Background(), asynq.NewTask(TypeEmailWelcome, []byte("{")))

	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCleanupSessions(t *testing.T) {
	// Arrange
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewTaskHandler(db, new(mockMailer), "waos")
	h.now = func() time.Time { return now }

	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`DELETE FROM "auth_transactions" WHERE expires_at < \$1`).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 4))
	sqlMock.ExpectCommit()
	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`DELETE FROM "password_resets" WHERE expires_at < \$1 OR used = \$2`).
		WithArgs(now, true).WillReturnResult(sqlmock.NewResult(0, 1))
	sqlMock.ExpectCommit()

	// Act
	err = h.HandleCleanupSessions(context.Background(), asynq.NewTask(TypeCleanupSessions, nil))

	// Assert
	require.NoError(t, err)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestValidateSpec(t *testing.T) {
	assert.NoError(t, ValidateSpec(CleanupSpec))
	assert.NoError(t, ValidateSpec("@every 30m"))
	assert.Error(t, ValidateSpec("every hour"))
	for _, task := range DefaultPeriodicTasks {
		assert.NoError(t, ValidateSpec(task.Spec), task.Type)
	}
}

func TestNewMailer(t *testing.T) {
	_, isLog := NewMailer(config.MailConfig{}).(*LogMailer)
	_, isSMTP := NewMailer(config.MailConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com"}).(*SMTPMailer)

	assert.True(t, isLog)
	assert.True(t, isSMTP)
}

func TestSMTPMailer_Send(t *testing.T) {
	var gotAddr string
	var gotMsg []byte
	m := &SMTPMailer{
		cfg: config.MailConfig{Host: "smtp.example.com", Port: 2525, From: "no-reply@example.com", Username: "u", Password: "p"},
		send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr = addr
			gotMsg = msg
			assert.NotNil(t, a)
			assert.Equal(t, []string{"ada@example.com"}, to)
			return nil
		},
	}

	err := m.Send(context.Background(), "ada@example.com", "Hello", "line one\nline two")

	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Hello\r\n")
	assert.Contains(t, string(gotMsg), "line one\r\nline two")
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{1, 20 * time.Second},
		{5, 320 * time.Second},
		{6, maxRetryBackoff},
		{30, maxRetryBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryBackoff(tt.attempt, nil, nil), "attempt %d", tt.attempt)
	}
}

func TestAfterTickCountsEnqueues(t *testing.T) {
	counter := metrics.JobsEnqueued.WithLabelValues(TypeCleanupSessions)
	before := testutil.ToFloat64(counter)
	hook := afterTick(console.New("scheduler_test"))

	hook(&asynq.TaskInfo{Type: TypeCleanupSessions}, nil)
	hook(nil, errors.New("redis down"))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
