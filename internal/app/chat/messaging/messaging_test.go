package messaging_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/stratachat/internal/app/chat/directory"
	"github.com/dalemusser/stratachat/internal/app/chat/fanout"
	"github.com/dalemusser/stratachat/internal/app/chat/messaging"
	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/realtime/presence"
	membershipstore "github.com/dalemusser/stratachat/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/stratachat/internal/app/store/notifications"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/indexes"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// sink is a hub subscriber that records every frame.
type sink struct {
	id     string
	mu     sync.Mutex
	frames []events.Frame
}

func (s *sink) ID() string { return s.id }
func (s *sink) Enqueue(f events.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return true
}
func (s *sink) Close() {}

func (s *sink) messages(t *testing.T) []events.MessageData {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.MessageData
	for _, f := range s.frames {
		var env events.Envelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if env.Type != events.TypeMessage {
			continue
		}
		var d events.MessageData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			t.Fatalf("bad message data: %v", err)
		}
		out = append(out, d)
	}
	return out
}

type env struct {
	svc      *messaging.Service
	hub      *hub.Hub
	presence *presence.Registry
	notes    *notificationstore.Store
	fixtures *testutil.Fixtures
	ctx      context.Context
	agency   models.Agency
	owner    models.User
}

func setup(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	logger := zap.NewNop()
	h := hub.New(logger)
	pres := presence.New()
	notes := notificationstore.New(db)
	dir := directory.New(db, logger)
	fo := fanout.New(membershipstore.New(db), notes, userstore.New(db), pres, h, logger)

	fx := testutil.NewFixtures(t, db)
	agency := fx.CreateAgency(ctx, "Acme Insurance")
	return env{
		svc:      messaging.New(db, dir, h, fo, 0, logger),
		hub:      h,
		presence: pres,
		notes:    notes,
		fixtures: fx,
		ctx:      ctx,
		agency:   agency,
		owner:    fx.CreateAgent(ctx, agency.ID, "Olivia Owner"),
	}
}

// connect registers a fake live connection for u and subscribes it to rooms.
func (e env) connect(u models.User, rooms ...string) *sink {
	s := &sink{id: primitive.NewObjectID().Hex()}
	e.hub.Register(s)
	e.presence.Register(s.id, u.ID.Hex())
	e.hub.Subscribe(hub.UserRoom(u.ID.Hex()), s.id)
	for _, r := range rooms {
		e.hub.Subscribe(r, s.id)
	}
	return s
}

func TestSend_CrossAgencyRejected(t *testing.T) {
	e := setup(t)
	general := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	other := e.fixtures.CreateAgency(e.ctx, "Other Agency")
	outsider := e.fixtures.CreateAgent(e.ctx, other.ID, "Outsider")

	_, err := e.svc.Send(e.ctx, outsider.ID, general.ID, "hi", nil)
	if !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("got %v, want Forbidden", err)
	}
	page, err := e.svc.List(e.ctx, e.owner.ID, general.ID, 10, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Messages) != 0 {
		t.Errorf("rejected send must not be stored, got %d messages", len(page.Messages))
	}
}

func TestSend_DeliversOnlyToRoomSubscribers(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	alice := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Alice")
	bob := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Bob")

	joined := e.connect(alice, hub.ChannelRoom(ch.ID.Hex()))
	notJoined := e.connect(bob)

	data, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, "<b>hello</b> team", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if data.Content != "hello team" {
		t.Errorf("content not sanitised: %q", data.Content)
	}
	if data.Sender.FullName != e.owner.FullName {
		t.Errorf("sender summary: got %+v", data.Sender)
	}

	got := joined.messages(t)
	if len(got) != 1 || got[0].ID != data.ID {
		t.Errorf("subscriber messages: got %+v", got)
	}
	if n := len(notJoined.messages(t)); n != 0 {
		t.Errorf("non-subscriber got %d messages", n)
	}
}

func TestSend_Validation(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	otherCh := e.fixtures.CreateChannel(e.ctx, e.owner, "random", models.VisibilityPublic)
	foreign := e.fixtures.CreateMessage(e.ctx, otherCh.ID, e.owner.ID, "elsewhere")
	missing := primitive.NewObjectID()

	tests := []struct {
		name    string
		content string
		parent  *primitive.ObjectID
	}{
		{"empty", "", nil},
		{"only markup", "<b></b>  ", nil},
		{"too long", strings.Repeat("x", messaging.DefaultMaxChars+1), nil},
		{"parent in other channel", "reply", &foreign.ID},
		{"missing parent", "reply", &missing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, tt.content, tt.parent)
			if !apperr.Is(err, apperr.BadRequest) {
				t.Errorf("got %v, want BadRequest", err)
			}
		})
	}

	if _, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, strings.Repeat("é", messaging.DefaultMaxChars), nil); err != nil {
		t.Errorf("content at the limit should pass: %v", err)
	}

	root, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, "root", nil)
	if err != nil {
		t.Fatalf("Send root: %v", err)
	}
	rootID, _ := primitive.ObjectIDFromHex(root.ID)
	reply, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, "reply", &rootID)
	if err != nil {
		t.Fatalf("Send reply: %v", err)
	}
	if reply.ParentMessageID == nil || *reply.ParentMessageID != root.ID {
		t.Errorf("parent id: got %v", reply.ParentMessageID)
	}
}

func TestSend_NotifiesMembersNotViewing(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "deals", models.VisibilityPrivate)
	userC := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Carla")
	userD := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Dmitri")
	e.fixtures.CreateMembership(e.ctx, ch, userC.ID, models.MemberRoleMember)
	e.fixtures.CreateMembership(e.ctx, ch, userD.ID, models.MemberRoleMember)

	e.connect(userC, hub.ChannelRoom(ch.ID.Hex()))
	e.presence.SetActiveChannel(userC.ID.Hex(), ch.ID.Hex())
	dConn := e.connect(userD)

	if _, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, "closing the deal", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	count := func(u models.User) int {
		t.Helper()
		n, err := e.notes.CountUnread(e.ctx, u.ID)
		if err != nil {
			t.Fatalf("CountUnread: %v", err)
		}
		return int(n)
	}
	if got := count(userC); got != 0 {
		t.Errorf("viewer C has %d notifications, want 0", got)
	}
	if got := count(userD); got != 1 {
		t.Errorf("D has %d notifications, want 1", got)
	}
	if got := count(e.owner); got != 0 {
		t.Errorf("sender has %d notifications, want 0", got)
	}

	dConn.mu.Lock()
	frames := len(dConn.frames)
	dConn.mu.Unlock()
	if frames != 2 {
		t.Errorf("D should get notification + unreadIndicator, got %d frames", frames)
	}
}

func TestSend_RoomOrderMatchesInsertOrder(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	watcher := e.connect(e.owner, hub.ChannelRoom(ch.ID.Hex()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := e.svc.Send(e.ctx, e.owner.ID, ch.ID, fmt.Sprintf("m%d", i), nil); err != nil {
				t.Errorf("Send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got := watcher.messages(t)
	if len(got) != 20 {
		t.Fatalf("got %d frames, want 20", len(got))
	}
	page, err := e.svc.List(e.ctx, e.owner.ID, ch.ID, 100, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := range got {
		if got[i].ID != page.Messages[i].ID {
			t.Fatalf("position %d: broadcast %s, stored %s", i, got[i].ID, page.Messages[i].ID)
		}
	}
}

func TestList_Paging(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	var ids []string
	for i := 1; i <= 5; i++ {
		m := e.fixtures.CreateMessage(e.ctx, ch.ID, e.owner.ID, fmt.Sprintf("m%d", i))
		ids = append(ids, m.ID.Hex())
	}

	page, err := e.svc.List(e.ctx, e.owner.ID, ch.ID, 2, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Messages) != 2 || page.Messages[0].ID != ids[3] || page.Messages[1].ID != ids[4] {
		t.Fatalf("limit=2: got %+v, want m4, m5", page.Messages)
	}
	if page.NextBefore != ids[3] {
		t.Errorf("NextBefore: got %q, want %q", page.NextBefore, ids[3])
	}

	before, _ := primitive.ObjectIDFromHex(page.NextBefore)
	older, err := e.svc.List(e.ctx, e.owner.ID, ch.ID, 10, &before)
	if err != nil {
		t.Fatalf("List older: %v", err)
	}
	if len(older.Messages) != 3 || older.Messages[0].ID != ids[0] {
		t.Errorf("older page: got %+v", older.Messages)
	}
	if older.NextBefore != "" {
		t.Errorf("short page should have no cursor, got %q", older.NextBefore)
	}

	clamped, err := e.svc.List(e.ctx, e.owner.ID, ch.ID, 1000, nil)
	if err != nil || len(clamped.Messages) != 5 {
		t.Errorf("clamped list: %d messages, err %v", len(clamped.Messages), err)
	}
}

func TestDelete(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	alice := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Alice")
	bob := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Bob")
	e.fixtures.CreateMembership(e.ctx, ch, alice.ID, models.MemberRoleMember)
	e.fixtures.CreateMembership(e.ctx, ch, bob.ID, models.MemberRoleMember)
	msg := e.fixtures.CreateMessage(e.ctx, ch.ID, alice.ID, "secret plans")
	watcher := e.connect(bob, hub.ChannelRoom(ch.ID.Hex()))

	if err := e.svc.Delete(e.ctx, bob.ID, msg.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("other member: got %v, want Forbidden", err)
	}
	if err := e.svc.Delete(e.ctx, alice.ID, msg.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if err := e.svc.Delete(e.ctx, e.owner.ID, msg.ID); err != nil {
		t.Errorf("repeat delete should succeed: %v", err)
	}
	if err := e.svc.Delete(e.ctx, alice.ID, primitive.NewObjectID()); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("missing message: got %v, want NotFound", err)
	}

	watcher.mu.Lock()
	var types []string
	for _, f := range watcher.frames {
		var env events.Envelope
		_ = json.Unmarshal(f, &env)
		types = append(types, env.Type)
	}
	watcher.mu.Unlock()
	if len(types) != 1 || types[0] != events.TypeMessageDeleted {
		t.Errorf("room frames: got %v", types)
	}

	page, err := e.svc.List(e.ctx, alice.ID, ch.ID, 10, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Messages) != 1 || !page.Messages[0].IsDeleted || page.Messages[0].Content != "" {
		t.Errorf("deleted message should be listed blank, got %+v", page.Messages)
	}
}

func TestAck_NeverRegresses(t *testing.T) {
	e := setup(t)
	ch := e.fixtures.CreateChannel(e.ctx, e.owner, "general", models.VisibilityPublic)
	alice := e.fixtures.CreateAgent(e.ctx, e.agency.ID, "Alice")
	msg := e.fixtures.CreateMessage(e.ctx, ch.ID, e.owner.ID, "hello")

	d, err := e.svc.Ack(e.ctx, alice.ID, msg.ID, models.DeliveryDelivered)
	if err != nil || d.Status != models.DeliveryDelivered {
		t.Fatalf("ack delivered: %+v, %v", d, err)
	}
	d, err = e.svc.Ack(e.ctx, alice.ID, msg.ID, models.DeliveryRead)
	if err != nil || d.Status != models.DeliveryRead {
		t.Fatalf("ack read: %+v, %v", d, err)
	}
	d, err = e.svc.Ack(e.ctx, alice.ID, msg.ID, models.DeliveryDelivered)
	if err != nil || d.Status != models.DeliveryRead {
		t.Errorf("read must not regress: %+v, %v", d, err)
	}

	if _, err := e.svc.Ack(e.ctx, alice.ID, msg.ID, "seen"); !apperr.Is(err, apperr.BadRequest) {
		t.Errorf("bad status: got %v, want BadRequest", err)
	}
	other := e.fixtures.CreateAgency(e.ctx, "Elsewhere")
	outsider := e.fixtures.CreateAgent(e.ctx, other.ID, "Outsider")
	if _, err := e.svc.Ack(e.ctx, outsider.ID, msg.ID, models.DeliveryRead); !apperr.Is(err, apperr.Forbidden) {
		t.Errorf("outsider: got %v, want Forbidden", err)
	}
}
