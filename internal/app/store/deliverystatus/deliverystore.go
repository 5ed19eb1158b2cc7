// internal/app/store/deliverystatus/deliverystore.go
package deliverystore

import (
	"context"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Rows are created lazily by the first acknowledgement. The status field only
// moves delivered → read; a "delivered" ack on a read row changes nothing.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("message_delivery")}
}

// MarkDelivered records delivery of messageID to userID if no row exists yet.
func (s *Store) MarkDelivered(ctx context.Context, messageID, channelID, userID primitive.ObjectID) (models.DeliveryStatus, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"channel_id":   channelID,
		"status":       models.DeliveryDelivered,
		"delivered_at": time.Now().UTC(),
	}}
	return s.upsert(ctx, messageID, userID, update)
}

// MarkRead moves the row to read, creating it if needed. delivered_at is
// filled on insert so a direct read still has a delivery time.
func (s *Store) MarkRead(ctx context.Context, messageID, channelID, userID primitive.ObjectID) (models.DeliveryStatus, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"status":  models.DeliveryRead,
			"read_at": now,
		},
		"$setOnInsert": bson.M{
			"channel_id":   channelID,
			"delivered_at": now,
		},
	}
	// Leave an existing read_at alone.
	return s.upsertWhere(ctx, bson.M{
		"message_id": messageID,
		"user_id":    userID,
		"status":     bson.M{"$ne": models.DeliveryRead},
	}, messageID, userID, update)
}

// Get returns the row for (messageID, userID) or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, messageID, userID primitive.ObjectID) (models.DeliveryStatus, error) {
	var d models.DeliveryStatus
	if err := s.c.FindOne(ctx, bson.M{"message_id": messageID, "user_id": userID}).Decode(&d); err != nil {
		return models.DeliveryStatus{}, err
	}
	return d, nil
}

// ListForMessage returns every acknowledgement of messageID.
func (s *Store) ListForMessage(ctx context.Context, messageID primitive.ObjectID) ([]models.DeliveryStatus, error) {
	cur, err := s.c.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.DeliveryStatus
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) upsert(ctx context.Context, messageID, userID primitive.ObjectID, update bson.M) (models.DeliveryStatus, error) {
	return s.upsertWhere(ctx, bson.M{"message_id": messageID, "user_id": userID}, messageID, userID, update)
}

func (s *Store) upsertWhere(ctx context.Context, filter bson.M, messageID, userID primitive.ObjectID, update bson.M) (models.DeliveryStatus, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d models.DeliveryStatus
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err != nil && wafflemongo.IsDup(err) {
		// Either a concurrent first ack won, or (for MarkRead) the row is
		// already read and the narrowed filter tried to insert a twin.
		return s.Get(ctx, messageID, userID)
	}
	return d, err
}
