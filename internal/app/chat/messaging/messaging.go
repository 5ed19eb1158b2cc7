// Package messaging stores channel messages, broadcasts them to the channel
// room and hands them to notification fanout.
package messaging

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/dalemusser/stratachat/internal/app/chat/directory"
	"github.com/dalemusser/stratachat/internal/app/chat/fanout"
	"github.com/dalemusser/stratachat/internal/app/policy/channelpolicy"
	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	deliverystore "github.com/dalemusser/stratachat/internal/app/store/deliverystatus"
	messagestore "github.com/dalemusser/stratachat/internal/app/store/messages"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratachat/internal/app/system/keyedlock"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/stratachat/internal/app/system/paging"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultMaxChars is the default content limit, in characters.
const DefaultMaxChars = 4000

// Service is the message store front end.
type Service struct {
	Dir      *directory.Service
	Messages *messagestore.Store
	Delivery *deliverystore.Store
	Users    *userstore.Store
	Hub      *hub.Hub
	Fanout   *fanout.Fanout
	Log      *zap.Logger

	// MaxChars bounds message content after sanitising.
	MaxChars int

	locks *keyedlock.Locker
}

// New wires a Service. db must be the same database dir was built over.
func New(db *mongo.Database, dir *directory.Service, h *hub.Hub, fo *fanout.Fanout, maxChars int, logger *zap.Logger) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{
		Dir:      dir,
		Messages: messagestore.New(db),
		Delivery: deliverystore.New(db),
		Users:    userstore.New(db),
		Hub:      h,
		Fanout:   fo,
		Log:      logger,
		MaxChars: maxChars,
		locks:    keyedlock.New(),
	}
}

func lockKey(channelID primitive.ObjectID) string { return "channel:" + channelID.Hex() }

// Send stores a message from senderID in channelID and delivers it to the
// channel room, then runs notification fanout. The per-channel lock is held
// across insert and broadcast so room delivery order is insertion order.
func (s *Service) Send(ctx context.Context, senderID, channelID primitive.ObjectID, content string, parentID *primitive.ObjectID) (events.MessageData, error) {
	acc, err := s.Dir.Authorize(ctx, senderID, channelID)
	if err != nil {
		return events.MessageData{}, err
	}

	content = htmlsanitize.PlainText(content)
	if content == "" {
		return events.MessageData{}, apperr.E(apperr.BadRequest, "message content is required")
	}
	if utf8.RuneCountInString(content) > s.MaxChars {
		return events.MessageData{}, apperr.Ef(apperr.BadRequest, "message must be at most %d characters", s.MaxChars)
	}

	if parentID != nil {
		parent, err := s.Messages.GetByID(ctx, *parentID)
		if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && parent.ChannelID != channelID) {
			return events.MessageData{}, apperr.E(apperr.BadRequest, "parent message is not in this channel")
		}
		if err != nil {
			return events.MessageData{}, err
		}
	}

	sender := acc.User.Summary()
	unlock := s.locks.Lock(lockKey(channelID))
	msg, err := s.Messages.Insert(ctx, models.Message{
		ChannelID:       channelID,
		SenderID:        senderID,
		Content:         content,
		ParentMessageID: parentID,
	})
	if err != nil {
		unlock()
		return events.MessageData{}, err
	}
	data := events.NewMessageData(msg, sender)
	delivered := s.Hub.Publish(hub.ChannelRoom(channelID.Hex()), events.MessageFrame(data), "")
	unlock()

	metrics.MessagesSent.WithLabelValues(metrics.ChannelKind(acc.Channel.IsDirect, acc.Channel.Visibility)).Inc()
	s.Log.Debug("message sent",
		zap.String("channel_id", channelID.Hex()),
		zap.String("message_id", msg.ID.Hex()),
		zap.String("sender_id", senderID.Hex()),
		zap.Int("live_recipients", delivered))

	// Fanout outlives the caller's context.
	fctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Long(), s.Log, "notification fanout")
	defer cancel()
	if _, err := s.Fanout.MessageSent(fctx, acc.Channel, msg, sender); err != nil {
		metrics.FanoutFailures.Inc()
		s.Log.Error("notification fanout failed",
			zap.String("channel_id", channelID.Hex()),
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err))
	}
	return data, nil
}

// Page is one page of channel history in chronological order. NextBefore is
// the cursor for the next older page, empty when there is none.
type Page struct {
	Messages   []events.MessageData `json:"messages"`
	NextBefore string               `json:"nextBefore,omitempty"`
}

// List returns up to limit messages older than before, oldest first.
// limit is clamped to [1, 100]; zero selects 50.
func (s *Service) List(ctx context.Context, userID, channelID primitive.ObjectID, limit int, before *primitive.ObjectID) (Page, error) {
	if _, err := s.Dir.Authorize(ctx, userID, channelID); err != nil {
		return Page{}, err
	}
	limit = paging.ClampLimit(limit)

	rows, err := s.Messages.ListBefore(ctx, channelID, before, limit)
	if err != nil {
		return Page{}, err
	}
	mutable.Reverse(rows)

	senders, err := s.Users.GetSummaries(ctx, lo.Uniq(lo.Map(rows, func(m models.Message, _ int) primitive.ObjectID { return m.SenderID })))
	if err != nil {
		return Page{}, err
	}

	out := lo.Map(rows, func(m models.Message, _ int) events.MessageData {
		sum, ok := senders[m.SenderID]
		if !ok {
			sum = models.UserSummary{ID: m.SenderID}
		}
		return events.NewMessageData(m, sum)
	})
	return Page{
		Messages:   out,
		NextBefore: paging.NextBefore(rows, limit, func(m models.Message) primitive.ObjectID { return m.ID }),
	}, nil
}

// Delete soft deletes a message. The sender and channel owners/admins may
// delete; the channel room is told with a messageDeleted frame. Deleting an
// already deleted message succeeds.
func (s *Service) Delete(ctx context.Context, actorID, messageID primitive.ObjectID) error {
	msg, err := s.Messages.GetByID(ctx, messageID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.E(apperr.NotFound, "message not found")
	}
	if err != nil {
		return err
	}
	acc, err := s.Dir.Authorize(ctx, actorID, msg.ChannelID)
	if err != nil {
		return err
	}
	if !channelpolicy.CanDeleteMessage(actorID, acc.Membership, msg) {
		return apperr.E(apperr.Forbidden, "not allowed to delete this message")
	}
	if msg.IsDeleted {
		return nil
	}

	unlock := s.locks.Lock(lockKey(msg.ChannelID))
	defer unlock()
	if err := s.Messages.SoftDelete(ctx, msg.ID); err != nil {
		return err
	}
	s.Hub.Publish(hub.ChannelRoom(msg.ChannelID.Hex()), events.MessageDeleted(msg.ChannelID.Hex(), msg.ID.Hex()), "")
	s.Log.Info("message deleted",
		zap.String("channel_id", msg.ChannelID.Hex()),
		zap.String("message_id", msg.ID.Hex()),
		zap.String("actor_id", actorID.Hex()))
	return nil
}

// Ack records that userID received or read messageID. The first ack creates
// the delivery row; status never moves from read back to delivered.
func (s *Service) Ack(ctx context.Context, userID, messageID primitive.ObjectID, status string) (models.DeliveryStatus, error) {
	if !models.IsValidDeliveryStatus(status) {
		return models.DeliveryStatus{}, apperr.E(apperr.BadRequest, `status must be "delivered" or "read"`)
	}
	msg, err := s.Messages.GetByID(ctx, messageID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DeliveryStatus{}, apperr.E(apperr.NotFound, "message not found")
	}
	if err != nil {
		return models.DeliveryStatus{}, err
	}
	if _, err := s.Dir.Authorize(ctx, userID, msg.ChannelID); err != nil {
		return models.DeliveryStatus{}, err
	}

	if status == models.DeliveryRead {
		return s.Delivery.MarkRead(ctx, msg.ID, msg.ChannelID, userID)
	}
	return s.Delivery.MarkDelivered(ctx, msg.ID, msg.ChannelID, userID)
}
