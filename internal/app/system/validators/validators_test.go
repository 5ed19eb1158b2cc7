package validators_test

import (
	"testing"
	"time"

	"github.com/dalemusser/stratachat/internal/app/system/validators"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setup(t *testing.T) *mongo.Database {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Second call should also succeed
	if err := validators.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	expectedCollections := []string{
		"agencies",
		"users",
		"channels",
		"channel_memberships",
		"messages",
		"message_delivery",
		"notifications",
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}
	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}
	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestValidators(t *testing.T) {
	db := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	oid := primitive.NewObjectID

	tests := []struct {
		name    string
		coll    string
		doc     bson.M
		wantErr bool
	}{
		{"channel valid", "channels", bson.M{
			"agency_id": oid(), "name": "general", "name_ci": "general", "visibility": "public",
			"is_direct": false, "active": true, "created_at": now,
		}, false},
		{"channel missing name", "channels", bson.M{
			"agency_id": oid(), "visibility": "public", "is_direct": false, "active": true, "created_at": now,
		}, true},
		{"channel blank name", "channels", bson.M{
			"agency_id": oid(), "name": "   ", "name_ci": "x", "visibility": "public",
			"is_direct": false, "active": true, "created_at": now,
		}, true},
		{"channel bad visibility", "channels", bson.M{
			"agency_id": oid(), "name": "general", "name_ci": "general", "visibility": "secret",
			"is_direct": false, "active": true, "created_at": now,
		}, true},
		{"membership valid", "channel_memberships", bson.M{
			"channel_id": oid(), "user_id": oid(), "agency_id": oid(), "role": "owner", "muted": false, "joined_at": now,
		}, false},
		{"membership bad role", "channel_memberships", bson.M{
			"channel_id": oid(), "user_id": oid(), "agency_id": oid(), "role": "leader",
		}, true},
		{"message valid", "messages", bson.M{
			"channel_id": oid(), "sender_id": oid(), "content": "hello", "is_deleted": false, "created_at": now,
		}, false},
		{"message missing sender", "messages", bson.M{
			"channel_id": oid(), "content": "hello", "is_deleted": false, "created_at": now,
		}, true},
		{"delivery valid", "message_delivery", bson.M{
			"message_id": oid(), "user_id": oid(), "status": "read", "delivered_at": now,
		}, false},
		{"delivery bad status", "message_delivery", bson.M{
			"message_id": oid(), "user_id": oid(), "status": "seen",
		}, true},
		{"notification valid", "notifications", bson.M{
			"user_id": oid(), "title": "New message in #general", "is_read": false, "created_at": now,
		}, false},
		{"notification empty title", "notifications", bson.M{
			"user_id": oid(), "title": "", "is_read": false, "created_at": now,
		}, true},
		{"users carry no validator", "users", bson.M{"anything": "goes"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection(tt.coll).InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
