package gateway

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/stratachat/internal/app/system/ratelimit"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client is one live connection: a reader goroutine, a writer goroutine and
// a bounded outbound queue between the hub and the writer.
type client struct {
	id       string
	identity *auth.Identity
	conn     *websocket.Conn
	send     chan events.Frame
	bucket   *ratelimit.Bucket
	gw       *Gateway

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(g *Gateway, conn *websocket.Conn, id string, identity *auth.Identity) *client {
	return &client{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan events.Frame, g.cfg.SendBuffer),
		bucket:   ratelimit.NewBucket(g.cfg.RateBurst, g.cfg.RateInterval),
		gw:       g,
		done:     make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Enqueue never blocks. A full queue reports false and the hub drops us.
func (c *client) Enqueue(f events.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// Close asks the writer to send a close frame and stop.
func (c *client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) userHex() string { return c.identity.UserID.Hex() }

func (c *client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.gw.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.bucket.Allow() {
			metrics.InboundEventsRejected.WithLabelValues("rate").Inc()
			c.Enqueue(events.Error("rate limited"))
			continue
		}
		ev, err := events.Decode(raw)
		if err != nil {
			metrics.InboundEventsRejected.WithLabelValues("decode").Inc()
			c.Enqueue(events.Error(err.Error()))
			continue
		}
		c.gw.dispatch(c, ev)
	}
}

func (c *client) logReadError(err error) {
	log := c.gw.log.With(zap.String("conn_id", c.id), zap.String("user_id", c.userHex()))
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Info("inbound frame exceeded size limit", zap.Int64("limit", c.gw.cfg.MaxMessageBytes))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		log.Debug("client closed connection", zap.Error(err))
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		log.Debug("connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure):
		log.Warn("unexpected websocket close", zap.Error(err))
	default:
		log.Debug("websocket read ended", zap.Error(err))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.gw.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if !c.write(websocket.TextMessage, f) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(c.gw.cfg.WriteWait))
			return
		}
	}
}

func (c *client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.gw.log.Debug("websocket write failed", zap.String("conn_id", c.id), zap.Error(err))
		return false
	}
	return true
}
