// Package scheduler runs the background email pipeline: a dispatcher polls
// the scheduled notification outbox and enqueues due rows on asynq, and a
// worker delivers them through the workflow engine.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNotificationDue = "workflow.notification.due"

type NotificationDuePayload struct {
	NotificationID string `json:"notificationId"`
	LeadID         string `json:"leadId"`
}

func NewNotificationDueTask(payload NotificationDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDue, data), nil
}

func ParseNotificationDuePayload(task *asynq.Task) (NotificationDuePayload, error) {
	var payload NotificationDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationDuePayload{}, err
	}
	return payload, nil
}
