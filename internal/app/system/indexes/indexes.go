// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Problems are aggregated so every failing collection is reported at once and
startup can fail fast. The channel uniqueness indexes are load-bearing: the
direct-conversation resolver relies on uniq_channels_agency_directkey to
close cross-process creation races.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"agencies", ensureAgencies},
		{"channels", ensureChannels},
		{"channel_memberships", ensureChannelMemberships},
		{"messages", ensureMessages},
		{"message_delivery", ensureMessageDelivery},
		{"notifications", ensureNotifications},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.D `bson:"partialFilterExpression,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func boolVal(p *bool) bool { return p != nil && *p }

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	existing := listExisting(ctx, coll)

	for _, m := range models {
		var name string
		var unique, partial bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = boolVal(m.Options.Unique)
			partial = m.Options.PartialFilterExpression != nil
		}
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		log := zap.L().With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique))

		if ex, ok := existing[sig]; ok {
			if boolVal(ex.Unique) == unique && (len(ex.Partial) > 0) == partial && (name == "" || ex.Name == name) {
				log.Info("reusing existing index", zap.Duration("took", time.Since(start)))
				continue
			}
			// Options or name drifted: drop and recreate with the desired shape.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				log.Warn("drop existing index failed", zap.String("existing", ex.Name), zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isDuplicateKeyErr(err) && unique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), name))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			}
			log.Warn("index ensure failed", zap.Duration("took", time.Since(start)), zap.Error(err))
			continue
		}
		log.Info("index ensured", zap.String("created_name", created), zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Agency-scoped lookups (notify endpoint, member pickers)
		{
			Keys:    bson.D{{Key: "agency_id", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_agency_fullnameci_id"),
		},
	})
}

func ensureAgencies(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("agencies")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_agencies_nameci"),
		},
	})
}

func ensureChannels(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("channels")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) Group channel names are unique within an agency (case/diacritics folded).
		//    Direct channels are excluded so "dm:<key>" names never collide with user names.
		{
			Keys: bson.D{{Key: "agency_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_direct", Value: false}}).
				SetName("uniq_channels_agency_nameci"),
		},

		// 2) One direct channel per unordered user pair per agency.
		{
			Keys: bson.D{{Key: "agency_id", Value: 1}, {Key: "direct_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_direct", Value: true}}).
				SetName("uniq_channels_agency_directkey"),
		},

		// 3) Channel list: public channels in an agency
		{
			Keys:    bson.D{{Key: "agency_id", Value: 1}, {Key: "visibility", Value: 1}, {Key: "is_direct", Value: 1}},
			Options: options.Index().SetName("idx_channels_agency_visibility_direct"),
		},
	})
}

func ensureChannelMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("channel_memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Exactly one membership per (channel, user); role is scalar.
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_cm_channel_user"),
		},
		// A user's channels
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "channel_id", Value: 1}},
			Options: options.Index().SetName("idx_cm_user_channel"),
		},
		// Members by role (owner lookup, admin checks)
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_cm_channel_role"),
		},
	})
}

func ensureMessages(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("messages")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// History pages: newest-first by _id within a channel
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_messages_channel_id_desc"),
		},
		{
			Keys:    bson.D{{Key: "parent_message_id", Value: 1}},
			Options: options.Index().SetName("idx_messages_parent").SetSparse(true),
		},
	})
}

func ensureMessageDelivery(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("message_delivery")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_md_message_user"),
		},
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_md_channel_user_status"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Inbox: newest first per user
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_notifications_user_id_desc"),
		},
		// Unread badge count
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("idx_notifications_user_isread"),
		},
		// Retention sweep
		{
			Keys:    bson.D{{Key: "is_read", Value: 1}, {Key: "read_at", Value: 1}},
			Options: options.Index().SetName("idx_notifications_isread_readat"),
		},
	})
}
