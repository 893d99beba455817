package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	domainitems "donateo/internal/domain/items"
)

// ItemCatalog reads the item service's collection. Item ids may be stored as
// ObjectIDs or as plain strings.
type ItemCatalog struct {
	col *mongo.Collection
}

func NewItemCatalog(db *mongo.Database) *ItemCatalog {
	return &ItemCatalog{col: db.Collection("items")}
}

func (c *ItemCatalog) Item(ctx context.Context, itemID string) (domainitems.Snapshot, error) {
	var doc itemDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": bson.M{"$in": idCandidates(itemID)}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domainitems.Snapshot{}, domainitems.ErrNotFound
		}
		return domainitems.Snapshot{}, err
	}
	return domainitems.Snapshot{
		ID:         itemID,
		Title:      doc.Name,
		DonorID:    idString(doc.Donor),
		Status:     domainitems.Status(doc.Status),
		Approved:   doc.Approved,
		ReceiverID: idString(doc.Receiver),
	}, nil
}

type itemDocument struct {
	Name     string `bson:"itemName"`
	Donor    any    `bson:"donor"`
	Status   string `bson:"status"`
	Approved bool   `bson:"isApproved"`
	Receiver any    `bson:"receiver,omitempty"`
}

func idCandidates(id string) bson.A {
	ids := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		ids = append(ids, oid)
	}
	return ids
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}
