package deliverystore_test

import (
	"context"
	"testing"

	deliverystore "github.com/dalemusser/stratachat/internal/app/store/deliverystatus"
	"github.com/dalemusser/stratachat/internal/app/system/indexes"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func setup(t *testing.T) (*deliverystore.Store, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	return deliverystore.New(db), ctx
}

func TestStore_DeliveredThenRead(t *testing.T) {
	store, ctx := setup(t)
	msg, ch, user := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	d, err := store.MarkDelivered(ctx, msg, ch, user)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if d.Status != models.DeliveryDelivered {
		t.Errorf("status: got %q, want delivered", d.Status)
	}

	r, err := store.MarkRead(ctx, msg, ch, user)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if r.Status != models.DeliveryRead || r.ReadAt == nil {
		t.Errorf("after read: status %q read_at %v", r.Status, r.ReadAt)
	}
	if !r.DeliveredAt.Equal(d.DeliveredAt) {
		t.Errorf("delivered_at changed: %v → %v", d.DeliveredAt, r.DeliveredAt)
	}
}

func TestStore_ReadNeverRegresses(t *testing.T) {
	store, ctx := setup(t)
	msg, ch, user := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	first, err := store.MarkRead(ctx, msg, ch, user)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	d, err := store.MarkDelivered(ctx, msg, ch, user)
	if err != nil {
		t.Fatalf("MarkDelivered after read: %v", err)
	}
	if d.Status != models.DeliveryRead {
		t.Errorf("status regressed to %q", d.Status)
	}

	again, err := store.MarkRead(ctx, msg, ch, user)
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if !again.ReadAt.Equal(*first.ReadAt) {
		t.Errorf("read_at moved: %v → %v", first.ReadAt, again.ReadAt)
	}

	rows, err := store.ListForMessage(ctx, msg)
	if err != nil {
		t.Fatalf("ListForMessage: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}
