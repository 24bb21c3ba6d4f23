package tasks

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"waos/internal/config"
	"waos/internal/metrics"
	"waos/internal/utils/logger"
)

// PeriodicTask enqueues Type with an empty payload on every Spec tick.
type PeriodicTask struct {
	Spec string
	Type string
	Opts []asynq.Option
}

var DefaultPeriodicTasks = []PeriodicTask{
	{Spec: CleanupSpec, Type: TypeCleanupSessions, Opts: []asynq.Option{asynq.Queue(QueueLow), asynq.Timeout(TimeoutMedium)}},
}

// Scheduler is the cron side of the job system. Only one instance should run per deployment.
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
	tasks     []PeriodicTask
}

func NewScheduler(cfg config.RedisConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
			Location:        time.UTC,
			Logger:          asynqLogger{log},
			PostEnqueueFunc: afterTick(log),
		}),
		logger: log,
		tasks:  DefaultPeriodicTasks,
	}
}

func afterTick(log *logger.Logger) func(*asynq.TaskInfo, error) {
	return func(info *asynq.TaskInfo, err error) {
		if err != nil {
			_ = log.Error("Periodic enqueue failed", err)
			return
		}
		metrics.JobsEnqueued.WithLabelValues(info.Type).Inc()
	}
}

// ValidateSpec accepts five field cron expressions and descriptors such as "@every 30m".
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return nil
}

// Start registers every periodic task and starts ticking in the background.
func (s *Scheduler) Start() error {
	for _, t := range s.tasks {
		if err := ValidateSpec(t.Spec); err != nil {
			return err
		}
		id, err := s.scheduler.Register(t.Spec, asynq.NewTask(t.Type, nil), t.Opts...)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", t.Type, err)
		}
		s.logger.Debug("Scheduled %s at %q (%s)", t.Type, t.Spec, id)
	}
	s.logger.Info("Scheduler running %d periodic task(s)", len(s.tasks))
	return s.scheduler.Start()
}

func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("Scheduler stopped")
}
