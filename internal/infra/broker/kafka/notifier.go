package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"donateo/internal/app/policies"
)

// NotificationsTopic is consumed by the notification service.
const NotificationsTopic = "notifications.v1"

type notificationMessage struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	AdminBroadcast bool      `json:"admin_broadcast,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Link           string    `json:"link,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Notifier hands notifications to the notification service over Kafka.
type Notifier struct {
	Producer interface {
		Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
	}
	Topic string
}

func (n Notifier) Notify(ctx context.Context, note policies.Notification) error {
	payload, err := json.Marshal(notificationMessage{
		ID:             uuid.NewString(),
		Type:           note.Type,
		RecipientID:    note.RecipientID,
		AdminBroadcast: note.AdminBroadcast,
		Title:          note.Title,
		Message:        note.Message,
		Link:           note.Link,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	key := note.RecipientID
	if note.AdminBroadcast {
		key = "admins"
	}
	topic := n.Topic
	if topic == "" {
		topic = NotificationsTopic
	}
	return n.Producer.Publish(ctx, topic, key, payload, map[string]string{"content-type": "application/json", "type": note.Type})
}

var _ policies.Notifier = Notifier{}
