package policies

import "context"

// Notification types emitted by the chat engine.
const (
	NotificationChatStarted      = "chat_started"
	NotificationPickupDetailsSet = "pickup_details_set"
	NotificationPickupConfirmed  = "pickup_confirmed"
	NotificationChatCompleted    = "chat_completed"
	NotificationChatReported     = "chat_reported"
)

// Notification is the semantic payload handed to the notification service.
// Rendering emails is the service's concern.
type Notification struct {
	RecipientID string
	// AdminBroadcast addresses every admin instead of RecipientID.
	AdminBroadcast bool
	Type           string
	Title          string
	Message        string
	Link           string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
