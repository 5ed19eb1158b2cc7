package notificationstore_test

import (
	"errors"
	"testing"
	"time"

	notificationstore "github.com/dalemusser/stratachat/internal/app/store/notifications"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func note(user primitive.ObjectID, title string) models.Notification {
	return models.Notification{UserID: user, AgencyID: primitive.NewObjectID(), Title: title, Message: "m", Link: "/x"}
}

func TestStore_CreateListCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	var last models.Notification
	for _, title := range []string{"one", "two", "three"} {
		n, err := store.Create(ctx, note(user, title))
		if err != nil {
			t.Fatalf("Create %q: %v", title, err)
		}
		last = n
	}
	if _, err := store.Create(ctx, note(primitive.NewObjectID(), "other")); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	list, err := store.ListForUser(ctx, user, false, nil, 10)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 3 || list[0].Title != "three" {
		t.Fatalf("ListForUser = %d items (first %q), want 3 newest-first", len(list), list[0].Title)
	}

	if err := store.MarkRead(ctx, user, last.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	n, err := store.CountUnread(ctx, user)
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if n != 2 {
		t.Errorf("CountUnread = %d, want 2", n)
	}

	unread, _ := store.ListForUser(ctx, user, true, nil, 10)
	if len(unread) != 2 {
		t.Errorf("unread list = %d, want 2", len(unread))
	}

	changed, err := store.MarkAllRead(ctx, user)
	if err != nil || changed != 2 {
		t.Errorf("MarkAllRead = %d, %v; want 2, nil", changed, err)
	}
}

func TestStore_OwnershipEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner, intruder := primitive.NewObjectID(), primitive.NewObjectID()
	n, err := store.Create(ctx, note(owner, "mine"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.MarkRead(ctx, intruder, n.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("MarkRead by intruder err = %v, want ErrNoDocuments", err)
	}
	if err := store.Delete(ctx, intruder, n.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("Delete by intruder err = %v, want ErrNoDocuments", err)
	}
	if err := store.Delete(ctx, owner, n.ID); err != nil {
		t.Errorf("Delete by owner: %v", err)
	}
}

func TestStore_DeleteReadOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	old, _ := store.Create(ctx, note(user, "old-read"))
	fresh, _ := store.Create(ctx, note(user, "fresh-read"))
	_, _ = store.Create(ctx, note(user, "unread"))

	_ = store.MarkRead(ctx, user, old.ID)
	_ = store.MarkRead(ctx, user, fresh.ID)
	// Backdate one read_at.
	_, err := db.Collection("notifications").UpdateByID(ctx, old.ID,
		bson.M{"$set": bson.M{"read_at": time.Now().Add(-48 * time.Hour)}})
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := store.DeleteReadOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteReadOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	left, _ := store.ListForUser(ctx, user, false, nil, 10)
	if len(left) != 2 {
		t.Errorf("remaining = %d, want 2", len(left))
	}
}
