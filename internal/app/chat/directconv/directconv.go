// Package directconv resolves the one direct channel shared by two users,
// creating it on first use.
//
// Duplicate creation is prevented twice: a per-pair lock serializes
// find-then-create inside this process, and the partial unique index on
// (agency_id, direct_key) rejects a second insert from anywhere else. A
// rejected insert is resolved by reading back the winner.
package directconv

import (
	"context"
	"errors"

	channelstore "github.com/dalemusser/stratachat/internal/app/store/channels"
	membershipstore "github.com/dalemusser/stratachat/internal/app/store/memberships"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/keyedlock"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/stratachat/internal/app/system/txn"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Resolver struct {
	DB          *mongo.Database
	Users       *userstore.Store
	Channels    *channelstore.Store
	Memberships *membershipstore.Store
	Log         *zap.Logger

	locks *keyedlock.Locker
}

func New(db *mongo.Database, logger *zap.Logger) *Resolver {
	return &Resolver{
		DB:          db,
		Users:       userstore.New(db),
		Channels:    channelstore.New(db),
		Memberships: membershipstore.New(db),
		Log:         logger,
		locks:       keyedlock.New(),
	}
}

// Key returns the order-independent key of the pair: "<lowHex>:<highHex>".
func Key(a, b primitive.ObjectID) string {
	ah, bh := a.Hex(), b.Hex()
	if ah > bh {
		ah, bh = bh, ah
	}
	return ah + ":" + bh
}

// ChannelName is the internal name stored on a direct channel.
func ChannelName(key string) string { return "dm:" + key }

// GetOrCreate returns the direct channel of userA and userB. Argument order
// does not matter.
func (r *Resolver) GetOrCreate(ctx context.Context, userA, userB primitive.ObjectID) (models.Channel, error) {
	if userA == userB {
		return models.Channel{}, apperr.E(apperr.BadRequest, "cannot start a conversation with yourself")
	}
	a, err := r.user(ctx, userA)
	if err != nil {
		return models.Channel{}, err
	}
	b, err := r.user(ctx, userB)
	if err != nil {
		return models.Channel{}, err
	}
	if a.AgencyID != b.AgencyID {
		return models.Channel{}, apperr.E(apperr.BadRequest, "users belong to different agencies")
	}

	key := Key(a.ID, b.ID)
	unlock := r.locks.Lock(a.AgencyID.Hex() + "/" + key)
	defer unlock()

	ch, found, err := r.find(ctx, a.AgencyID, a.ID, b.ID, key)
	if err != nil {
		return models.Channel{}, err
	}
	if !found {
		ch, err = r.create(ctx, a, b, key)
		if err != nil {
			return models.Channel{}, err
		}
	}

	// Repairs a channel whose memberships were only partly written.
	for _, uid := range []primitive.ObjectID{a.ID, b.ID} {
		if _, err := r.Memberships.Ensure(ctx, ch, uid, models.MemberRoleMember); err != nil {
			return models.Channel{}, err
		}
	}
	return ch, nil
}

func (r *Resolver) user(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	u, err := r.Users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.E(apperr.NotFound, "user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return *u, nil
}

// find looks the pair up by direct_key first, then falls back to scanning
// the private direct channels both users belong to for one with exactly
// these two members.
func (r *Resolver) find(ctx context.Context, agencyID, a, b primitive.ObjectID, key string) (models.Channel, bool, error) {
	ch, err := r.Channels.FindDirectByKey(ctx, agencyID, key)
	if err == nil {
		return ch, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Channel{}, false, err
	}

	shared, err := r.Memberships.SharedChannelIDs(ctx, a, b)
	if err != nil {
		return models.Channel{}, false, err
	}
	candidates, err := r.Channels.ListDirectByIDs(ctx, agencyID, shared)
	if err != nil {
		return models.Channel{}, false, err
	}
	for _, c := range candidates {
		n, err := r.Memberships.CountByChannel(ctx, c.ID)
		if err != nil {
			return models.Channel{}, false, err
		}
		if n == 2 {
			return c, true, nil
		}
	}
	return models.Channel{}, false, nil
}

func (r *Resolver) create(ctx context.Context, a, b models.User, key string) (models.Channel, error) {
	var ch models.Channel
	err := txn.Run(ctx, r.DB, r.Log, func(ctx context.Context) error {
		var err error
		ch, err = r.Channels.Create(ctx, models.Channel{
			AgencyID:   a.AgencyID,
			Name:       ChannelName(key),
			Visibility: models.VisibilityPrivate,
			IsDirect:   true,
			DirectKey:  key,
			CreatedBy:  a.ID,
		})
		if err != nil {
			return err
		}
		for _, uid := range []primitive.ObjectID{a.ID, b.ID} {
			if _, err := r.Memberships.Ensure(ctx, ch, uid, models.MemberRoleMember); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, channelstore.ErrDuplicateDirect) {
		// Another process created it first.
		r.Log.Info("direct channel created concurrently; using existing",
			zap.String("agency_id", a.AgencyID.Hex()),
			zap.String("direct_key", key))
		return r.Channels.FindDirectByKey(ctx, a.AgencyID, key)
	}
	if err != nil {
		return models.Channel{}, err
	}

	metrics.DirectChannelsCreated.Inc()
	r.Log.Info("direct channel created",
		zap.String("channel_id", ch.ID.Hex()),
		zap.String("agency_id", a.AgencyID.Hex()))
	return ch, nil
}
