package messages_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/stratachat/internal/app/chat/directory"
	"github.com/dalemusser/stratachat/internal/app/chat/fanout"
	"github.com/dalemusser/stratachat/internal/app/chat/messaging"
	"github.com/dalemusser/stratachat/internal/app/features/messages"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/realtime/presence"
	membershipstore "github.com/dalemusser/stratachat/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/stratachat/internal/app/store/notifications"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/indexes"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.uber.org/zap"
)

func TestDeleteAndAck(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	logger := zap.NewNop()
	h := hub.New(logger)
	pres := presence.New()
	dir := directory.New(db, logger)
	fo := fanout.New(membershipstore.New(db), notificationstore.New(db), userstore.New(db), pres, h, logger)
	router := messages.Routes(messages.NewHandler(messaging.New(db, dir, h, fo, 0, logger), logger))

	fx := testutil.NewFixtures(t, db)
	agency := fx.CreateAgency(ctx, "Acme Insurance")
	owner := fx.CreateAgent(ctx, agency.ID, "Olivia Owner")
	agent := fx.CreateAgent(ctx, agency.ID, "Aaron Agent")
	ch := fx.CreateChannel(ctx, owner, "general", models.VisibilityPublic)
	msg := fx.CreateMessage(ctx, ch.ID, owner.ID, "quarterly numbers")

	do := func(u models.User, method, target string, body any) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		router.ServeHTTP(rec, testutil.WithUser(testutil.NewJSONRequest(t, method, target, body), u))
		return rec
	}
	path := "/" + msg.ID.Hex()

	rec := do(agent, http.MethodPost, path+"/ack", map[string]string{"status": "read"})
	rec.AssertStatus(t, http.StatusOK)
	var st models.DeliveryStatus
	rec.DecodeJSON(t, &st)
	if st.Status != models.DeliveryRead {
		t.Errorf("status = %q, want read", st.Status)
	}

	rec = do(agent, http.MethodPost, path+"/ack", map[string]string{"status": "delivered"})
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &st)
	if st.Status != models.DeliveryRead {
		t.Errorf("status regressed to %q", st.Status)
	}

	do(agent, http.MethodPost, path+"/ack", map[string]string{"status": "seen"}).AssertStatus(t, http.StatusBadRequest)

	// Plain members cannot delete someone else's message.
	do(agent, http.MethodDelete, path, nil).AssertStatus(t, http.StatusForbidden)
	do(owner, http.MethodDelete, path, nil).AssertStatus(t, http.StatusNoContent)
	do(owner, http.MethodDelete, "/"+ch.ID.Hex(), nil).AssertStatus(t, http.StatusNotFound)
}
