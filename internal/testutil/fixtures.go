package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that read chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateAgency creates a test agency.
func (f *Fixtures) CreateAgency(ctx context.Context, name string) models.Agency {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Agency{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("agencies").InsertOne(ctx, a); err != nil {
		f.t.Fatalf("failed to create test agency: %v", err)
	}
	return a
}

// CreateUser creates a user with the given name and role in agencyID.
func (f *Fixtures) CreateUser(ctx context.Context, agencyID primitive.ObjectID, fullName, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		AgencyID:   agencyID,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      text.Fold(fullName) + "@example.com",
		Role:       role,
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAgent is CreateUser with the "agent" role.
func (f *Fixtures) CreateAgent(ctx context.Context, agencyID primitive.ObjectID, fullName string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, agencyID, fullName, models.RoleAgent)
}

// CreateChannel inserts a non-direct channel and an owner membership for owner.
func (f *Fixtures) CreateChannel(ctx context.Context, owner models.User, name, visibility string) models.Channel {
	f.t.Helper()

	now := time.Now().UTC()
	ch := models.Channel{
		ID:         primitive.NewObjectID(),
		AgencyID:   owner.AgencyID,
		Name:       name,
		NameCI:     text.Fold(name),
		Visibility: visibility,
		Active:     true,
		CreatedBy:  owner.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("channels").InsertOne(ctx, ch); err != nil {
		f.t.Fatalf("failed to create test channel: %v", err)
	}
	f.CreateMembership(ctx, ch, owner.ID, models.MemberRoleOwner)
	return ch
}

// CreateMembership adds userID to ch with role.
func (f *Fixtures) CreateMembership(ctx context.Context, ch models.Channel, userID primitive.ObjectID, role string) models.Membership {
	f.t.Helper()

	m := models.Membership{
		ID:        primitive.NewObjectID(),
		ChannelID: ch.ID,
		UserID:    userID,
		AgencyID:  ch.AgencyID,
		Role:      role,
		JoinedAt:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("channel_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateMessage inserts a message directly, bypassing access checks.
func (f *Fixtures) CreateMessage(ctx context.Context, channelID, senderID primitive.ObjectID, content string) models.Message {
	f.t.Helper()

	m := models.Message{
		ID:        primitive.NewObjectID(),
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("messages").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test message: %v", err)
	}
	return m
}
