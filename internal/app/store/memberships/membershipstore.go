// internal/app/store/memberships/membershipstore.go
package membershipstore

// Terminology: Channel roles
//   - owner:  the creator; exactly one per group channel, never removable
//   - admin:  may add and remove non-owner members
//   - member: may read, post and leave
// Direct channels have two "member" rows and no owner.

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("channel_memberships")}
}

var errBadRole = errors.New(`role must be "owner", "admin" or "member"`)

var ErrDuplicateMembership = errors.New("user is already a member of this channel")

func validRole(role string) bool {
	switch role {
	case models.MemberRoleOwner, models.MemberRoleAdmin, models.MemberRoleMember:
		return true
	}
	return false
}

// Add creates a membership in ch for userID. The caller has already checked
// that the user belongs to the channel's agency.
func (s *Store) Add(ctx context.Context, ch models.Channel, userID primitive.ObjectID, role string) (models.Membership, error) {
	if !validRole(role) {
		return models.Membership{}, errBadRole
	}
	m := models.Membership{
		ID:        primitive.NewObjectID(),
		ChannelID: ch.ID,
		UserID:    userID,
		AgencyID:  ch.AgencyID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrDuplicateMembership
		}
		return models.Membership{}, err
	}
	return m, nil
}

// Ensure returns the membership for (ch, userID), creating it with role if it
// does not exist. An existing row is returned untouched.
func (s *Store) Ensure(ctx context.Context, ch models.Channel, userID primitive.ObjectID, role string) (models.Membership, error) {
	if !validRole(role) {
		return models.Membership{}, errBadRole
	}
	filter := bson.M{"channel_id": ch.ID, "user_id": userID}
	update := bson.M{"$setOnInsert": bson.M{
		"agency_id": ch.AgencyID,
		"role":      role,
		"muted":     false,
		"joined_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m models.Membership
	err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil && wafflemongo.IsDup(err) {
		// Lost an upsert race on uniq_cm_channel_user; the winner's row exists now.
		return s.Get(ctx, ch.ID, userID)
	}
	return m, err
}

// Get returns the membership for (channelID, userID) or mongo.ErrNoDocuments.
func (s *Store) Get(ctx context.Context, channelID, userID primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	if err := s.c.FindOne(ctx, bson.M{"channel_id": channelID, "user_id": userID}).Decode(&m); err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// Exists reports whether userID has a membership row in channelID.
func (s *Store) Exists(ctx context.Context, channelID, userID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"channel_id": channelID, "user_id": userID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the membership for (channelID, userID). Returns
// mongo.ErrNoDocuments when there was nothing to delete.
func (s *Store) Remove(ctx context.Context, channelID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"channel_id": channelID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByChannel returns every membership of channelID, owner first.
func (s *Store) ListByChannel(ctx context.Context, channelID primitive.ObjectID) ([]models.Membership, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"channel_id": channelID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByChannels returns the memberships of every channel in channelIDs.
func (s *Store) ListByChannels(ctx context.Context, channelIDs []primitive.ObjectID) ([]models.Membership, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"channel_id": bson.M{"$in": channelIDs}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByChannel returns the number of members of channelID.
func (s *Store) CountByChannel(ctx context.Context, channelID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"channel_id": channelID})
}

// ChannelIDsForUser returns the ids of every channel userID belongs to.
func (s *Store) ChannelIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	vals, err := s.c.Distinct(ctx, "channel_id", bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := make([]primitive.ObjectID, 0, len(vals))
	for _, v := range vals {
		if oid, ok := v.(primitive.ObjectID); ok {
			out = append(out, oid)
		}
	}
	return out, nil
}

// SharedChannelIDs returns the channels where both a and b have a membership.
func (s *Store) SharedChannelIDs(ctx context.Context, a, b primitive.ObjectID) ([]primitive.ObjectID, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": bson.M{"$in": bson.A{a, b}}}}},
		{{Key: "$group", Value: bson.M{"_id": "$channel_id", "n": bson.M{"$sum": 1}}}},
		{{Key: "$match", Value: bson.M{"n": 2}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.ID)
	}
	return out, cur.Err()
}

// SetRole changes the role of an existing membership.
func (s *Store) SetRole(ctx context.Context, channelID, userID primitive.ObjectID, role string) error {
	if !validRole(role) {
		return errBadRole
	}
	return s.update(ctx, channelID, userID, bson.M{"role": role})
}

// SetMuted toggles live notification pushes for the member.
func (s *Store) SetMuted(ctx context.Context, channelID, userID primitive.ObjectID, muted bool) error {
	return s.update(ctx, channelID, userID, bson.M{"muted": muted})
}

// AdvanceReadCursor moves last_read_message_id to messageID only if it is
// newer than the stored cursor. Returns false when the cursor was already at
// or past messageID.
func (s *Store) AdvanceReadCursor(ctx context.Context, channelID, userID, messageID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"channel_id": channelID,
		"user_id":    userID,
		"$or": bson.A{
			bson.M{"last_read_message_id": bson.M{"$exists": false}},
			bson.M{"last_read_message_id": nil},
			bson.M{"last_read_message_id": bson.M{"$lt": messageID}},
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_read_message_id": messageID}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) update(ctx context.Context, channelID, userID primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"channel_id": channelID, "user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
