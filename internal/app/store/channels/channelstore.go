// internal/app/store/channels/channelstore.go
package channelstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	// ErrDuplicateChannelName is returned when a group channel name is already
	// taken in the agency (uniq_channels_agency_nameci).
	ErrDuplicateChannelName = errors.New("a channel with this name already exists in the agency")

	// ErrDuplicateDirect is returned when a direct channel for the same pair
	// already exists in the agency (uniq_channels_agency_directkey).
	ErrDuplicateDirect = errors.New("a direct conversation for this pair already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("channels")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Channel, error) {
	var ch models.Channel
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ch); err != nil {
		return models.Channel{}, err
	}
	return ch, nil
}

// Create assigns id, name_ci and timestamps, then inserts. New channels are active.
func (s *Store) Create(ctx context.Context, ch models.Channel) (models.Channel, error) {
	now := time.Now().UTC()
	ch.ID = primitive.NewObjectID()
	ch.NameCI = text.Fold(ch.Name)
	ch.Active = true
	ch.CreatedAt = now
	ch.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, ch); err != nil {
		if wafflemongo.IsDup(err) {
			if ch.IsDirect {
				return models.Channel{}, ErrDuplicateDirect
			}
			return models.Channel{}, ErrDuplicateChannelName
		}
		return models.Channel{}, err
	}
	return ch, nil
}

// FindDirectByKey returns the direct channel for key in agencyID.
// Returns mongo.ErrNoDocuments if none exists.
func (s *Store) FindDirectByKey(ctx context.Context, agencyID primitive.ObjectID, key string) (models.Channel, error) {
	var ch models.Channel
	err := s.c.FindOne(ctx, bson.M{
		"agency_id":  agencyID,
		"is_direct":  true,
		"direct_key": key,
	}).Decode(&ch)
	if err != nil {
		return models.Channel{}, err
	}
	return ch, nil
}

// ListDirectByIDs returns the private direct channels in agencyID among ids.
func (s *Store) ListDirectByIDs(ctx context.Context, agencyID primitive.ObjectID, ids []primitive.ObjectID) ([]models.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{
		"_id":        bson.M{"$in": ids},
		"agency_id":  agencyID,
		"is_direct":  true,
		"visibility": models.VisibilityPrivate,
	})
}

// ListVisible returns the active channels of agencyID that are public group
// channels or whose id is in memberOf, ordered by name.
func (s *Store) ListVisible(ctx context.Context, agencyID primitive.ObjectID, memberOf []primitive.ObjectID) ([]models.Channel, error) {
	or := bson.A{
		bson.M{"visibility": models.VisibilityPublic, "is_direct": false},
	}
	if len(memberOf) > 0 {
		or = append(or, bson.M{"_id": bson.M{"$in": memberOf}})
	}
	return s.find(ctx, bson.M{
		"agency_id": agencyID,
		"active":    true,
		"$or":       or,
	})
}

// SetActive toggles the active flag. Inactive channels deny all access.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"active":     active,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Channel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Channel
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
