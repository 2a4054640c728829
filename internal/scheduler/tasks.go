package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskNotificationDispatch delivers the email stage of one outbox job.
const TaskNotificationDispatch = "notification.dispatch"

// NotificationDispatchPayload only carries the job id; everything else is
// re-read from the outbox row when the task runs.
type NotificationDispatchPayload struct {
	JobID string `json:"jobId"`
}

func NewNotificationDispatchTask(payload NotificationDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch payload: %w", err)
	}
	return asynq.NewTask(TaskNotificationDispatch, data), nil
}

// ParseNotificationDispatchPayload decodes the task and validates the job id.
func ParseNotificationDispatchPayload(task *asynq.Task) (uuid.UUID, error) {
	var payload NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, fmt.Errorf("decode dispatch payload: %w", err)
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("dispatch payload job id %q: %w", payload.JobID, err)
	}
	return jobID, nil
}
