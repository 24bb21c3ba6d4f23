package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"waos/internal/config"
	"waos/internal/utils/logger"
)

const (
	workerCount     = 10
	drainTimeout    = 15 * time.Second
	maxRetryBackoff = 10 * time.Minute
)

// Server runs the asynq workers that consume every queue in Queues.
type Server struct {
	server  *asynq.Server
	handler *TaskHandler
	logger  *logger.Logger
}

func NewServer(cfg config.RedisConfig, handler *TaskHandler, log *logger.Logger) *Server {
	s := &Server{handler: handler, logger: log}
	s.server = asynq.NewServer(RedisOpt(cfg), asynq.Config{
		Concurrency:     workerCount,
		Queues:          Queues,
		StrictPriority:  true,
		ShutdownTimeout: drainTimeout,
		RetryDelayFunc:  retryBackoff,
		ErrorHandler:    asynq.ErrorHandlerFunc(s.reportFailure),
		Logger:          asynqLogger{log},
	})
	return s
}

// retryBackoff doubles from 10s per attempt up to maxRetryBackoff.
func retryBackoff(attempt int, _ error, _ *asynq.Task) time.Duration {
	if attempt > 6 {
		return maxRetryBackoff
	}
	d := 10 * time.Second << attempt
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}

// reportFailure flags tasks that have used up their retries and will be archived.
func (s *Server) reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried >= maxRetry {
		_ = s.logger.Error("Task %s archived after %d attempts", err, task.Type(), retried+1)
	}
}

func (s *Server) Start() error {
	mux := asynq.NewServeMux()
	s.handler.Register(mux)

	s.logger.Info("Workers: %d, queues: %v", workerCount, Queues)
	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	return nil
}

// Shutdown stops pulling new tasks and waits up to drainTimeout for running ones.
func (s *Server) Shutdown() {
	s.logger.Info("Draining workers")
	s.server.Shutdown()
}

// asynqLogger routes asynq's own log lines through the service logger.
type asynqLogger struct{ log *logger.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.log.Debug("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.log.Info("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.log.Warn("%s", fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) {
	_ = a.log.Error("asynq", errors.New(fmt.Sprint(args...)))
}
func (a asynqLogger) Fatal(args ...interface{}) {
	a.Error(args...)
	os.Exit(1)
}
