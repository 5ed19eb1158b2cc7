package indexes_test

import (
	"testing"

	"github.com/dalemusser/stratachat/internal/app/system/indexes"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func indexNames(t *testing.T, db *mongo.Database, coll string) map[string]bool {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cur, err := db.Collection(coll).Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	names := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			names[name] = true
		}
	}
	return names
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesChannelIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	names := indexNames(t, db, "channels")
	for _, want := range []string{"uniq_channels_agency_nameci", "uniq_channels_agency_directkey"} {
		if !names[want] {
			t.Errorf("missing index %q on channels", want)
		}
	}
	if !indexNames(t, db, "channel_memberships")["uniq_cm_channel_user"] {
		t.Error("missing uniq_cm_channel_user")
	}
	if !indexNames(t, db, "message_delivery")["uniq_md_message_user"] {
		t.Error("missing uniq_md_message_user")
	}
}

func TestEnsureAll_DirectKeyUniquenessIsPartial(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	agency := primitive.NewObjectID()
	c := db.Collection("channels")

	// Two group channels without a direct_key must not collide on the direct index.
	for _, name := range []string{"alpha", "beta"} {
		if _, err := c.InsertOne(ctx, bson.M{"agency_id": agency, "name_ci": name, "is_direct": false}); err != nil {
			t.Fatalf("insert group channel %q: %v", name, err)
		}
	}

	dm := bson.M{"agency_id": agency, "name_ci": "dm:a:b", "is_direct": true, "direct_key": "a:b"}
	if _, err := c.InsertOne(ctx, dm); err != nil {
		t.Fatalf("insert direct channel: %v", err)
	}
	delete(dm, "_id")
	if _, err := c.InsertOne(ctx, dm); !mongo.IsDuplicateKeyError(err) {
		t.Errorf("second direct insert err = %v, want duplicate key", err)
	}
}
