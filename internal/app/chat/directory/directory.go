// Package directory is the membership directory: durable channels, member
// roles and the access rules every send and join goes through.
package directory

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dalemusser/stratachat/internal/app/policy/channelpolicy"
	channelstore "github.com/dalemusser/stratachat/internal/app/store/channels"
	membershipstore "github.com/dalemusser/stratachat/internal/app/store/memberships"
	messagestore "github.com/dalemusser/stratachat/internal/app/store/messages"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/txn"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxChannelNameLen is the longest accepted channel name, in runes.
const MaxChannelNameLen = 80

// Service implements the membership directory over the Mongo stores.
type Service struct {
	DB          *mongo.Database
	Users       *userstore.Store
	Channels    *channelstore.Store
	Memberships *membershipstore.Store
	Messages    *messagestore.Store
	Log         *zap.Logger

	// OnMemberRemoved, when set, is called after a membership is deleted so
	// live connections of that user can be dropped from the channel room.
	OnMemberRemoved func(channelID, userID primitive.ObjectID)
}

// New constructs a Service over db.
func New(db *mongo.Database, logger *zap.Logger) *Service {
	return &Service{
		DB:          db,
		Users:       userstore.New(db),
		Channels:    channelstore.New(db),
		Memberships: membershipstore.New(db),
		Messages:    messagestore.New(db),
		Log:         logger,
	}
}

// Access is the resolved state behind an access decision.
type Access struct {
	User       models.User
	Channel    models.Channel
	Membership *models.Membership // nil when the user has no row
}

func (s *Service) user(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, apperr.E(apperr.NotFound, "user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	return *u, nil
}

func (s *Service) channel(ctx context.Context, id primitive.ObjectID) (models.Channel, error) {
	ch, err := s.Channels.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Channel{}, apperr.E(apperr.NotFound, "channel not found")
	}
	return ch, err
}

// membership returns nil, nil when there is no row.
func (s *Service) membership(ctx context.Context, channelID, userID primitive.ObjectID) (*models.Membership, error) {
	m, err := s.Memberships.Get(ctx, channelID, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateChannel creates a group channel in agencyID owned by ownerID and
// returns it. The owner membership is written alongside the channel.
func (s *Service) CreateChannel(ctx context.Context, ownerID primitive.ObjectID, name, visibility string, agencyID primitive.ObjectID) (models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, apperr.E(apperr.BadRequest, "channel name is required")
	}
	if utf8.RuneCountInString(name) > MaxChannelNameLen {
		return models.Channel{}, apperr.Ef(apperr.BadRequest, "channel name must be at most %d characters", MaxChannelNameLen)
	}
	if !models.IsValidVisibility(visibility) {
		return models.Channel{}, apperr.E(apperr.BadRequest, `visibility must be "public" or "private"`)
	}

	owner, err := s.user(ctx, ownerID)
	if err != nil {
		return models.Channel{}, err
	}
	if owner.AgencyID != agencyID {
		return models.Channel{}, apperr.E(apperr.CrossTenant, "owner does not belong to this agency")
	}

	var created models.Channel
	err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		ch, err := s.Channels.Create(ctx, models.Channel{
			AgencyID:   agencyID,
			Name:       name,
			Visibility: visibility,
			CreatedBy:  ownerID,
		})
		if err != nil {
			return err
		}
		if _, err := s.Memberships.Add(ctx, ch, ownerID, models.MemberRoleOwner); err != nil {
			return err
		}
		created = ch
		return nil
	})
	if errors.Is(err, channelstore.ErrDuplicateChannelName) {
		return models.Channel{}, apperr.Wrap(apperr.Conflict, err, err.Error())
	}
	if err != nil {
		return models.Channel{}, err
	}

	s.Log.Info("channel created",
		zap.String("channel_id", created.ID.Hex()),
		zap.String("agency_id", agencyID.Hex()),
		zap.String("owner_id", ownerID.Hex()),
		zap.String("visibility", visibility))
	return created, nil
}

// AddMember adds targetID to the channel as a plain member. Adding an
// existing member returns the existing row.
func (s *Service) AddMember(ctx context.Context, channelID, actorID, targetID primitive.ObjectID) (models.Membership, error) {
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return models.Membership{}, err
	}
	if !ch.Active {
		return models.Membership{}, apperr.E(apperr.Forbidden, "channel is inactive")
	}
	actor, err := s.user(ctx, actorID)
	if err != nil {
		return models.Membership{}, err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return models.Membership{}, err
	}
	if !channelpolicy.SameAgency(actor, ch) || !channelpolicy.SameAgency(target, ch) {
		return models.Membership{}, apperr.E(apperr.CrossTenant, "user and channel belong to different agencies")
	}

	actorMem, err := s.membership(ctx, ch.ID, actorID)
	if err != nil {
		return models.Membership{}, err
	}
	if !channelpolicy.CanAddMember(ch, actorID, actorMem, targetID) {
		return models.Membership{}, apperr.E(apperr.Forbidden, "not allowed to add members to this channel")
	}

	return s.Memberships.Ensure(ctx, ch, targetID, models.MemberRoleMember)
}

// RemoveMember deletes the target's membership. The owner is never removable.
func (s *Service) RemoveMember(ctx context.Context, channelID, actorID, targetID primitive.ObjectID) error {
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return err
	}
	target, err := s.membership(ctx, ch.ID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperr.E(apperr.NotFound, "membership not found")
	}
	if ch.IsDirect {
		return apperr.E(apperr.Forbidden, "direct conversation members cannot be removed")
	}
	if target.Role == models.MemberRoleOwner {
		return apperr.E(apperr.Forbidden, "the channel owner cannot be removed")
	}
	actorMem, err := s.membership(ctx, ch.ID, actorID)
	if err != nil {
		return err
	}
	if !channelpolicy.CanRemoveMember(ch, actorID, actorMem, *target) {
		return apperr.E(apperr.Forbidden, "not allowed to remove this member")
	}

	if err := s.Memberships.Remove(ctx, ch.ID, targetID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.E(apperr.NotFound, "membership not found")
		}
		return err
	}
	if s.OnMemberRemoved != nil {
		s.OnMemberRemoved(ch.ID, targetID)
	}
	return nil
}

// Authorize resolves the user, channel and membership and checks access.
// A missing channel is NotFound; anything else that fails the rule is Forbidden.
func (s *Service) Authorize(ctx context.Context, userID, channelID primitive.ObjectID) (Access, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return Access{}, err
	}
	m, err := s.membership(ctx, ch.ID, u.ID)
	if err != nil {
		return Access{}, err
	}
	if !channelpolicy.CanAccess(u, ch, m) {
		return Access{}, apperr.E(apperr.Forbidden, "no access to this channel")
	}
	return Access{User: u, Channel: ch, Membership: m}, nil
}

// CanAccessChannel reports whether userID may read and post in channelID.
// Unknown users or channels yield false without error.
func (s *Service) CanAccessChannel(ctx context.Context, userID, channelID primitive.ObjectID) (bool, error) {
	_, err := s.Authorize(ctx, userID, channelID)
	switch {
	case err == nil:
		return true, nil
	case apperr.Is(err, apperr.NotFound), apperr.Is(err, apperr.Forbidden):
		return false, nil
	default:
		return false, err
	}
}

// SetMemberRole changes a member's role. Only the owner may do this, and the
// owner's own role is fixed.
func (s *Service) SetMemberRole(ctx context.Context, channelID, actorID, targetID primitive.ObjectID, role string) (models.Membership, error) {
	if role != models.MemberRoleAdmin && role != models.MemberRoleMember {
		return models.Membership{}, apperr.E(apperr.BadRequest, `role must be "admin" or "member"`)
	}
	ch, err := s.channel(ctx, channelID)
	if err != nil {
		return models.Membership{}, err
	}
	target, err := s.membership(ctx, ch.ID, targetID)
	if err != nil {
		return models.Membership{}, err
	}
	if target == nil {
		return models.Membership{}, apperr.E(apperr.NotFound, "membership not found")
	}
	actorMem, err := s.membership(ctx, ch.ID, actorID)
	if err != nil {
		return models.Membership{}, err
	}
	if !channelpolicy.CanSetRole(actorMem, *target, role) {
		return models.Membership{}, apperr.E(apperr.Forbidden, "only the owner can change member roles")
	}
	if err := s.Memberships.SetRole(ctx, ch.ID, targetID, role); err != nil {
		return models.Membership{}, err
	}
	target.Role = role
	return *target, nil
}

// SetMuted sets the mute flag on the caller's own membership.
func (s *Service) SetMuted(ctx context.Context, channelID, userID primitive.ObjectID, muted bool) error {
	err := s.Memberships.SetMuted(ctx, channelID, userID, muted)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.E(apperr.NotFound, "not a member of this channel")
	}
	return err
}

// MarkRead moves the caller's read cursor forward to messageID. It returns
// false when the cursor was already at or past it, or when the caller reads a
// public channel without holding a membership.
func (s *Service) MarkRead(ctx context.Context, channelID, userID, messageID primitive.ObjectID) (bool, error) {
	acc, err := s.Authorize(ctx, userID, channelID)
	if err != nil {
		return false, err
	}
	msg, err := s.Messages.GetByID(ctx, messageID)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && msg.ChannelID != channelID) {
		return false, apperr.E(apperr.BadRequest, "message is not in this channel")
	}
	if err != nil {
		return false, err
	}
	if acc.Membership == nil {
		return false, nil
	}
	return s.Memberships.AdvanceReadCursor(ctx, channelID, userID, messageID)
}
