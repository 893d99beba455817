package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "donateo/internal/domain/chat"
	"donateo/internal/domain/moderation"
)

// ChatRepository stores one document per chat with its messages embedded.
// A unique index on (item_id, donor_id, receiver_id) keeps creation
// idempotent across instances.
type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(ctx context.Context, db *mongo.Database) (*ChatRepository, error) {
	col := db.Collection("chats")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "item_id", Value: 1}, {Key: "donor_id", Value: 1}, {Key: "receiver_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("chat_triple"),
		},
		{Keys: bson.D{{Key: "donor_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: chat indexes: %w", err)
	}
	return &ChatRepository{col: col}, nil
}

func (r *ChatRepository) ByID(ctx context.Context, id domainchat.ID) (*domainchat.Chat, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ChatRepository) ByTriple(ctx context.Context, itemID, donorID, receiverID string) (*domainchat.Chat, error) {
	return r.findOne(ctx, bson.M{"item_id": itemID, "donor_id": donorID, "receiver_id": receiverID})
}

func (r *ChatRepository) findOne(ctx context.Context, filter bson.M) (*domainchat.Chat, error) {
	var doc chatDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ChatRepository) Create(ctx context.Context, c *domainchat.Chat) error {
	if _, err := r.col.InsertOne(ctx, newChatDocument(c)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrChatExists
		}
		return err
	}
	return nil
}

func (r *ChatRepository) Save(ctx context.Context, c *domainchat.Chat) error {
	doc := newChatDocument(c)
	filter := bson.M{"_id": doc.ID, "version": c.Version}
	doc.Version = c.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrConcurrentUpdate
	}
	c.Version = doc.Version
	return nil
}

func (r *ChatRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainchat.Chat, error) {
	filter := bson.M{"$or": bson.A{bson.M{"donor_id": userID}, bson.M{"receiver_id": userID}}}
	return r.list(ctx, filter)
}

func (r *ChatRepository) ListAll(ctx context.Context) ([]*domainchat.Chat, error) {
	return r.list(ctx, bson.M{})
}

func (r *ChatRepository) list(ctx context.Context, filter bson.M) ([]*domainchat.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var docs []chatDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainchat.Chat, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type chatDocument struct {
	ID           string            `bson:"_id"`
	ItemID       string            `bson:"item_id"`
	ItemTitle    string            `bson:"item_title,omitempty"`
	DonorID      string            `bson:"donor_id"`
	ReceiverID   string            `bson:"receiver_id"`
	Status       string            `bson:"status"`
	Messages     []messageDocument `bson:"messages"`
	Pickup       *pickupDocument   `bson:"pickup_details,omitempty"`
	Reported     bool              `bson:"reported"`
	ReportReason string            `bson:"report_reason,omitempty"`
	ReportedBy   string            `bson:"reported_by,omitempty"`
	ReportedAt   time.Time         `bson:"reported_at,omitempty"`
	CreatedAt    time.Time         `bson:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at"`
	Version      int64             `bson:"version"`
}

type messageDocument struct {
	ID           string    `bson:"id"`
	Sender       string    `bson:"sender"`
	Content      string    `bson:"content"`
	IsBot        bool      `bson:"is_bot"`
	IsSystem     bool      `bson:"is_system"`
	IsQuickReply bool      `bson:"is_quick_reply"`
	Category     string    `bson:"warning_category,omitempty"`
	ReadBy       []string  `bson:"read_by"`
	Timestamp    time.Time `bson:"timestamp"`
}

type pickupDocument struct {
	Location            string    `bson:"location"`
	Date                string    `bson:"date"`
	Time                string    `bson:"time"`
	ConfirmedByReceiver bool      `bson:"confirmed_by_receiver"`
	ConfirmedAt         time.Time `bson:"confirmed_at,omitempty"`
}

func newChatDocument(c *domainchat.Chat) chatDocument {
	doc := chatDocument{
		ID:           string(c.ID),
		ItemID:       c.ItemID,
		ItemTitle:    c.ItemTitle,
		DonorID:      c.DonorID,
		ReceiverID:   c.ReceiverID,
		Status:       string(c.Status),
		Messages:     make([]messageDocument, 0, len(c.Messages)),
		Reported:     c.Reported,
		ReportReason: c.ReportReason,
		ReportedBy:   c.ReportedBy,
		ReportedAt:   c.ReportedAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Version:      c.Version,
	}
	for _, m := range c.Messages {
		doc.Messages = append(doc.Messages, messageDocument{
			ID:           m.ID,
			Sender:       m.Sender,
			Content:      m.Content,
			IsBot:        m.IsBot,
			IsSystem:     m.IsSystem,
			IsQuickReply: m.IsQuickReply,
			Category:     string(m.Category),
			ReadBy:       append([]string{}, m.ReadBy...),
			Timestamp:    m.Timestamp,
		})
	}
	if p := c.Pickup; p != nil {
		doc.Pickup = &pickupDocument{
			Location:            p.Location,
			Date:                p.Date.Format(domainchat.DateLayout),
			Time:                p.Time,
			ConfirmedByReceiver: p.ConfirmedByReceiver,
			ConfirmedAt:         p.ConfirmedAt,
		}
	}
	return doc
}

func (d chatDocument) toAggregate() *domainchat.Chat {
	c := &domainchat.Chat{
		ID:           domainchat.ID(d.ID),
		ItemID:       d.ItemID,
		ItemTitle:    d.ItemTitle,
		DonorID:      d.DonorID,
		ReceiverID:   d.ReceiverID,
		Status:       domainchat.Status(d.Status),
		Messages:     make([]domainchat.Message, 0, len(d.Messages)),
		Reported:     d.Reported,
		ReportReason: d.ReportReason,
		ReportedBy:   d.ReportedBy,
		ReportedAt:   utc(d.ReportedAt),
		CreatedAt:    utc(d.CreatedAt),
		UpdatedAt:    utc(d.UpdatedAt),
		Version:      d.Version,
	}
	for _, m := range d.Messages {
		c.Messages = append(c.Messages, domainchat.Message{
			ID:           m.ID,
			Sender:       m.Sender,
			Content:      m.Content,
			IsBot:        m.IsBot,
			IsSystem:     m.IsSystem,
			IsQuickReply: m.IsQuickReply,
			Category:     moderation.Category(m.Category),
			ReadBy:       append([]string{}, m.ReadBy...),
			Timestamp:    utc(m.Timestamp),
		})
	}
	if p := d.Pickup; p != nil {
		// Dates are written by newChatDocument in DateLayout; a malformed one
		// decodes as the zero date.
		date, _ := time.Parse(domainchat.DateLayout, p.Date)
		c.Pickup = &domainchat.PickupDetails{
			Location:            p.Location,
			Date:                date,
			Time:                p.Time,
			ConfirmedByReceiver: p.ConfirmedByReceiver,
			ConfirmedAt:         utc(p.ConfirmedAt),
		}
	}
	return c
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

var _ domainchat.Repository = (*ChatRepository)(nil)
