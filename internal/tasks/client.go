package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"waos/internal/config"
	"waos/internal/metrics"
	"waos/internal/utils/logger"
)

// Enqueuer is the part of *asynq.Client the TaskClient uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// TaskClient handles task enqueuing with improved error handling and context support
type TaskClient struct {
	client      Enqueuer
	logger      *logger.Logger
	redisClient *redis.Client
}

// RedisOpt converts the redis config section for asynq.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(cfg config.RedisConfig) *TaskClient {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return NewTaskClientWith(asynq.NewClient(RedisOpt(cfg)), redisClient)
}

// NewTaskClientWith builds a TaskClient around an existing enqueuer and redis client.
func NewTaskClientWith(client Enqueuer, redisClient *redis.Client) *TaskClient {
	return &TaskClient{
		client:      client,
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Redis returns the redis client shared with the rate limiters.
func (c *TaskClient) Redis() *redis.Client {
	return c.redisClient
}

func (c *TaskClient) enqueue(ctx context.Context, typ string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(typ, data), opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}

	metrics.JobsEnqueued.WithLabelValues(typ).Inc()
	c.logger.Debug("Enqueued %s as %s on %s", typ, info.ID, info.Queue)
	return nil
}

// EnqueuePasswordReset queues the reset e-mail on the critical queue.
func (c *TaskClient) EnqueuePasswordReset(ctx context.Context, p PasswordResetPayload) error {
	opts := []asynq.Option{
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryMax),
		asynq.Timeout(TimeoutShort),
	}
	// a code that expired is not worth sending
	if !p.ExpiresAt.IsZero() {
		opts = append(opts, asynq.Deadline(p.ExpiresAt))
	}
	return c.enqueue(ctx, TypeEmailPasswordReset, p, opts...)
}

func (c *TaskClient) EnqueueWelcome(ctx context.Context, p WelcomePayload) error {
	return c.enqueue(ctx, TypeEmailWelcome, p,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutShort),
	)
}

// Close closes the underlying asynq client and the redis client
func (c *TaskClient) Close() error {
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	return c.client.Close()
}
