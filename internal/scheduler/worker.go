package scheduler

import (
	"context"
	"fmt"
	"time"

	"intervention_backend/internal/events"
	"intervention_backend/platform/config"
	"intervention_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const (
	defaultWorkerConcurrency = 10
	workerShutdownTimeout    = 30 * time.Second
)

// Worker consumes dispatch tasks and hands each job to the notification
// module through the event bus.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	if cfg.GetRedisURL() == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultWorkerConcurrency
	}

	w := &Worker{
		mux: asynq.NewServeMux(),
		bus: bus,
		log: log,
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queueName(cfg): 1},
		ShutdownTimeout: workerShutdownTimeout,
		ErrorHandler:    asynq.ErrorHandlerFunc(w.reportFailure),
	})
	w.mux.HandleFunc(TaskNotificationDispatch, w.handleNotificationDispatch)

	return w, nil
}

func (w *Worker) reportFailure(ctx context.Context, task *asynq.Task, err error) {
	taskID, _ := asynq.GetTaskID(ctx)
	retried, _ := asynq.GetRetryCount(ctx)
	w.log.Error("scheduler task failed",
		"task", task.Type(),
		"task_id", taskID,
		"retried", retried,
		"error", err,
	)
}

// handleNotificationDispatch runs the email stage synchronously so that a
// failure to record the job state is retried by asynq. Malformed payloads
// are never retried.
func (w *Worker) handleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	jobID, err := ParseNotificationDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if w.bus == nil {
		return nil
	}
	return w.bus.PublishSync(ctx, events.NewNotificationDispatchDue(jobID))
}

// Run blocks until ctx is cancelled and the server has drained.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
