package gateway

import (
	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// dispatch runs one decoded inbound event. Failures are reported to this
// connection only.
func (g *Gateway) dispatch(c *client, ev events.Inbound) {
	switch e := ev.(type) {
	case events.Join:
		g.join(c, e)
	case events.Leave:
		g.hub.Unsubscribe(hub.ChannelRoom(e.ChannelID), c.id)
		c.Enqueue(events.Left(e.ChannelID))
	case events.SetActiveChannel:
		active := ""
		if e.ChannelID != nil {
			active = *e.ChannelID
		}
		g.presence.SetActiveChannel(c.userHex(), active)
	case events.Typing:
		g.typing(c, e)
	case events.SendMessage:
		g.sendMessage(c, e)
	case events.Ack:
		g.ack(c, e)
	}
}

func (g *Gateway) join(c *client, e events.Join) {
	chID, err := primitive.ObjectIDFromHex(e.ChannelID)
	if err != nil {
		g.reject(c, apperr.E(apperr.BadRequest, "invalid channelId"))
		return
	}
	ctx, cancel := g.commandContext()
	defer cancel()

	ok, err := g.dir.CanAccessChannel(ctx, c.identity.UserID, chID)
	if err != nil {
		g.reject(c, err)
		return
	}
	if !ok {
		g.reject(c, apperr.E(apperr.Forbidden, "no access to this channel"))
		return
	}
	g.hub.Subscribe(hub.ChannelRoom(e.ChannelID), c.id)
	c.Enqueue(events.Joined(e.ChannelID))
}

func (g *Gateway) typing(c *client, e events.Typing) {
	uid := c.userHex()
	if !g.presence.IsOnline(uid) {
		return
	}
	room := hub.ChannelRoom(e.ChannelID)
	if !g.hub.IsSubscribed(room, c.id) {
		g.reject(c, apperr.E(apperr.Forbidden, "join the channel first"))
		return
	}
	g.hub.Publish(room, events.TypingFrame(e.ChannelID, uid, e.IsTyping), c.id)
}

func (g *Gateway) sendMessage(c *client, e events.SendMessage) {
	chID, err := primitive.ObjectIDFromHex(e.ChannelID)
	if err != nil {
		g.reject(c, apperr.E(apperr.BadRequest, "invalid channelId"))
		return
	}
	var parent *primitive.ObjectID
	if e.ParentMessageID != nil && *e.ParentMessageID != "" {
		p, err := primitive.ObjectIDFromHex(*e.ParentMessageID)
		if err != nil {
			g.reject(c, apperr.E(apperr.BadRequest, "invalid parentMessageId"))
			return
		}
		parent = &p
	}

	ctx, cancel := g.commandContext()
	defer cancel()
	if _, err := g.msgs.Send(ctx, c.identity.UserID, chID, e.Content, parent); err != nil {
		g.reject(c, err)
	}
}

func (g *Gateway) ack(c *client, e events.Ack) {
	msgID, err := primitive.ObjectIDFromHex(e.MessageID)
	if err != nil {
		g.reject(c, apperr.E(apperr.BadRequest, "invalid messageId"))
		return
	}
	ctx, cancel := g.commandContext()
	defer cancel()
	if _, err := g.msgs.Ack(ctx, c.identity.UserID, msgID, e.Status); err != nil {
		g.reject(c, err)
	}
}

// reject sends an error frame to c. Unclassified errors are logged and
// reported generically.
func (g *Gateway) reject(c *client, err error) {
	metrics.InboundEventsRejected.WithLabelValues("command").Inc()
	if apperr.KindOf(err) == nil {
		g.log.Error("live command failed",
			zap.String("conn_id", c.id),
			zap.String("user_id", c.userHex()),
			zap.Error(err))
	}
	c.Enqueue(events.Error(apperr.PublicMessage(err)))
}
