package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"donateo/internal/app/policies"
)

// NotificationStore writes in-app notifications straight into the shared
// notifications collection. Admin broadcasts fan out to every user with the
// admin role.
type NotificationStore struct {
	notifications *mongo.Collection
	users         *mongo.Collection
	now           func() time.Time
}

func NewNotificationStore(db *mongo.Database) *NotificationStore {
	return &NotificationStore{
		notifications: db.Collection("notifications"),
		users:         db.Collection("users"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationStore) Notify(ctx context.Context, n policies.Notification) error {
	recipients := []any{}
	if n.AdminBroadcast {
		admins, err := s.adminIDs(ctx)
		if err != nil {
			return err
		}
		recipients = admins
	} else if n.RecipientID != "" {
		recipients = append(recipients, recipientID(n.RecipientID))
	}
	if len(recipients) == 0 {
		return nil
	}
	now := s.now()
	docs := make([]any, 0, len(recipients))
	for _, r := range recipients {
		docs = append(docs, notificationDocument{
			Recipient: r,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Link:      n.Link,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if _, err := s.notifications.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo: insert notifications: %w", err)
	}
	return nil
}

func (s *NotificationStore) adminIDs(ctx context.Context) ([]any, error) {
	cur, err := s.users.Find(ctx, bson.M{"role": "admin"}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var ids []any
	for cur.Next(ctx) {
		var doc struct {
			ID any `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

type notificationDocument struct {
	Recipient any       `bson:"recipient"`
	Type      string    `bson:"type"`
	Title     string    `bson:"title"`
	Message   string    `bson:"message"`
	IsRead    bool      `bson:"isRead"`
	Link      string    `bson:"link"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func recipientID(id string) any {
	ids := idCandidates(id)
	return ids[len(ids)-1]
}

var _ policies.Notifier = (*NotificationStore)(nil)
