// Package fanout turns a stored message into per-member notifications for
// everyone who is not looking at the channel right now.
package fanout

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// PreviewLen is the number of runes of message content copied into a notification.
const PreviewLen = 200

// MaxTitleLen bounds titles supplied through NotifyUser.
const MaxTitleLen = 200

type MemberLister interface {
	ListByChannel(ctx context.Context, channelID primitive.ObjectID) ([]models.Membership, error)
}

type NotificationCreator interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Presence is the slice of the presence registry fanout reads.
type Presence interface {
	IsOnline(userID string) bool
	IsViewing(userID, channelID string) bool
}

// Publisher delivers frames to a room.
type Publisher interface {
	Publish(room string, frame events.Frame, exceptID string) int
}

// Fanout persists and pushes notifications.
type Fanout struct {
	Members       MemberLister
	Notifications NotificationCreator
	Users         UserGetter
	Presence      Presence
	Hub           Publisher
	Log           *zap.Logger
}

// New wires a Fanout.
func New(members MemberLister, notifications NotificationCreator, users UserGetter, presence Presence, h Publisher, logger *zap.Logger) *Fanout {
	return &Fanout{
		Members:       members,
		Notifications: notifications,
		Users:         users,
		Presence:      presence,
		Hub:           h,
		Log:           logger,
	}
}

// Result counts what MessageSent did.
type Result struct {
	Viewing  int // skipped because they were looking at the channel
	Created  int
	Muted    int // stored but not pushed live
	Pushed   int
	Failures int
}

// MessageSent stores a notification for every member of ch except the
// sender who is not online and viewing ch. Online recipients get the
// notification pushed plus an unread indicator; muted members get only the
// indicator. Per-member failures are logged and skipped.
func (f *Fanout) MessageSent(ctx context.Context, ch models.Channel, msg models.Message, sender models.UserSummary) (Result, error) {
	var res Result
	members, err := f.Members.ListByChannel(ctx, ch.ID)
	if err != nil {
		return res, err
	}

	chHex := ch.ID.Hex()
	recipients := lo.Filter(members, func(m models.Membership, _ int) bool { return m.UserID != msg.SenderID })
	title := titleFor(ch, sender)
	preview := lo.Substring(msg.Content, 0, PreviewLen)
	link := "/messages/" + chHex

	for _, m := range recipients {
		uid := m.UserID.Hex()
		online := f.Presence.IsOnline(uid)
		if online && f.Presence.IsViewing(uid, chHex) {
			res.Viewing++
			continue
		}

		n, err := f.Notifications.Create(ctx, models.Notification{
			UserID:    m.UserID,
			AgencyID:  ch.AgencyID,
			Title:     title,
			Message:   preview,
			Link:      link,
			ChannelID: &ch.ID,
		})
		if err != nil {
			res.Failures++
			metrics.FanoutFailures.Inc()
			f.Log.Warn("fanout: notification not stored",
				zap.String("channel_id", chHex),
				zap.String("message_id", msg.ID.Hex()),
				zap.String("user_id", uid),
				zap.Error(err))
			continue
		}
		res.Created++
		metrics.NotificationsCreated.WithLabelValues("fanout").Inc()

		if !online {
			continue
		}
		room := hub.UserRoom(uid)
		if m.Muted {
			res.Muted++
		} else if f.Hub.Publish(room, events.NotificationFrame(n), "") > 0 {
			res.Pushed++
			metrics.NotificationsPushed.Inc()
		}
		f.Hub.Publish(room, events.UnreadIndicator(chHex), "")
	}

	f.Log.Debug("fanout done",
		zap.String("channel_id", chHex),
		zap.String("message_id", msg.ID.Hex()),
		zap.Int("recipients", len(recipients)),
		zap.Int("viewing", res.Viewing),
		zap.Int("created", res.Created),
		zap.Int("muted", res.Muted),
		zap.Int("pushed", res.Pushed),
		zap.Int("failures", res.Failures))
	return res, nil
}

// NotifyUser stores a notification for one user and pushes it when the user
// is online. It is the entry point for collaborators outside chat.
func (f *Fanout) NotifyUser(ctx context.Context, userID primitive.ObjectID, title, message, link string) (models.Notification, error) {
	title = htmlsanitize.PlainText(title)
	if title == "" {
		return models.Notification{}, apperr.E(apperr.BadRequest, "title is required")
	}
	title = lo.Substring(title, 0, MaxTitleLen)
	link = strings.TrimSpace(link)
	if link != "" && !strings.HasPrefix(link, "/") {
		return models.Notification{}, apperr.E(apperr.BadRequest, "link must be a relative path")
	}

	u, err := f.Users.GetByID(ctx, userID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Notification{}, apperr.E(apperr.NotFound, "user not found")
	}
	if err != nil {
		return models.Notification{}, err
	}

	n, err := f.Notifications.Create(ctx, models.Notification{
		UserID:   u.ID,
		AgencyID: u.AgencyID,
		Title:    title,
		Message:  htmlsanitize.Sanitize(message),
		Link:     link,
	})
	if err != nil {
		return models.Notification{}, err
	}
	metrics.NotificationsCreated.WithLabelValues("notify").Inc()

	uid := u.ID.Hex()
	if f.Presence.IsOnline(uid) && f.Hub.Publish(hub.UserRoom(uid), events.NotificationFrame(n), "") > 0 {
		metrics.NotificationsPushed.Inc()
	}
	return n, nil
}

func titleFor(ch models.Channel, sender models.UserSummary) string {
	if ch.IsDirect {
		return "New message from " + sender.FullName
	}
	return "New message in #" + ch.Name
}
