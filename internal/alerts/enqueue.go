package alerts

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

// Notify enqueues a user notification. Best-effort: callers run this
// after their transaction commits and ignore the error beyond logging.
func Notify(recipientUserID, purpose, message, entityID, senderID string) error {
	payload := NotifyPayload{
		RecipientID: recipientUserID,
		Purpose:     purpose,
		Message:     message,
		EntityID:    entityID,
		SenderID:    senderID,
		SentAt:      time.Now(),
	}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskNotify, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("notifications"))
	return err
}

// EnqueueAdminAlert sends an alert to the operations inbox.
func EnqueueAdminAlert(actorID, severity, message string) error {
	payload := AdminAlertPayload{ActorID: actorID, Severity: severity, Message: message, SentAt: time.Now()}
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(TaskAdminAlert, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue("alerts"))
	return err
}
