// internal/models/notification.go
package models

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

// Notification is the outcome of one reminder delivery attempt.
type Notification struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	MachineID string `json:"machineId"`
	Channel   string `json:"channel"` // "email" or "sms"
	Status    string `json:"status"`  // "sent", "failed", "disabled"
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	SentAt    string `json:"sentAt"`
}
