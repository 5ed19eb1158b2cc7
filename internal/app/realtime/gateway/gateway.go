// Package gateway is the connection gatekeeper: it upgrades GET /ws,
// authenticates the bearer credential, wires each connection into presence
// and its personal room, and dispatches inbound live events.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/realtime/presence"
	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/stratachat/internal/app/system/ratelimit"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Directory answers access questions for join.
type Directory interface {
	CanAccessChannel(ctx context.Context, userID, channelID primitive.ObjectID) (bool, error)
}

// Messenger executes the message commands that arrive over the live connection.
type Messenger interface {
	Send(ctx context.Context, senderID, channelID primitive.ObjectID, content string, parentID *primitive.ObjectID) (events.MessageData, error)
	Ack(ctx context.Context, userID, messageID primitive.ObjectID, status string) (models.DeliveryStatus, error)
}

// Config tunes the gateway. Zero values select the defaults below.
type Config struct {
	AllowedOrigins  []string
	MaxMessageBytes int64         // inbound frame limit; default 16 KiB
	SendBuffer      int           // per-connection outbound queue; default 256
	RateBurst       int           // inbound events allowed at once; default 10
	RateInterval    time.Duration // refill period for RateBurst; default 1s
	HandshakesPerIP int           // upgrades per minute per client IP; default 30
	PongWait        time.Duration // idle limit between pongs; default 60s
	WriteWait       time.Duration // per-write deadline; default 10s
}

func (c Config) withDefaults() Config {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 16 << 10
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
	if c.RateInterval <= 0 {
		c.RateInterval = time.Second
	}
	if c.HandshakesPerIP <= 0 {
		c.HandshakesPerIP = 30
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	return c
}

// pingPeriod must be shorter than PongWait.
func (c Config) pingPeriod() time.Duration { return c.PongWait * 9 / 10 }

// Gateway owns the live connections of this process.
type Gateway struct {
	cfg       Config
	validator auth.Validator
	presence  *presence.Registry
	hub       *hub.Hub
	dir       Directory
	msgs      Messenger
	log       *zap.Logger

	upgrader websocket.Upgrader
	origins  originPolicy
	limiter  *ratelimit.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Gateway. Call Shutdown to release it.
func New(cfg Config, v auth.Validator, pres *presence.Registry, h *hub.Hub, dir Directory, msgs Messenger, logger *zap.Logger) *Gateway {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gateway{
		cfg:       cfg,
		validator: v,
		presence:  pres,
		hub:       h,
		dir:       dir,
		msgs:      msgs,
		log:       logger,
		origins:   newOriginPolicy(cfg.AllowedOrigins, logger),
		limiter:   ratelimit.New(cfg.HandshakesPerIP, time.Minute),
		ctx:       ctx,
		cancel:    cancel,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		Subprotocols:    []string{auth.SubprotocolBearer},
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if g.origins.allows(r) {
		return true
	}
	metrics.HandshakesRejected.WithLabelValues("origin").Inc()
	g.log.Warn("blocked websocket upgrade from disallowed origin", zap.String("origin", r.Header.Get("Origin")))
	return false
}

// ServeWS handles GET /ws. The credential is checked after the upgrade so a
// rejected client receives a policy-violation close frame.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if !g.limiter.Allow(ip) {
		metrics.HandshakesRejected.WithLabelValues("rate").Inc()
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	token := auth.BearerToken(r)
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		g.log.Debug("websocket upgrade failed", zap.String("ip", ip), zap.Error(err))
		return
	}

	id, err := g.validator.Validate(token)
	if err != nil {
		metrics.HandshakesRejected.WithLabelValues("credential").Inc()
		g.log.Info("websocket credential rejected", zap.String("ip", ip), zap.Error(err))
		deadline := time.Now().Add(g.cfg.WriteWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), deadline)
		_ = conn.Close()
		return
	}

	c := newClient(g, conn, uuid.NewString(), id)
	if !g.hub.Register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(g.cfg.WriteWait))
		_ = conn.Close()
		return
	}
	uid := id.UserID.Hex()
	g.presence.Register(c.id, uid)
	g.hub.Subscribe(hub.UserRoom(uid), c.id)

	g.log.Info("live connection opened",
		zap.String("conn_id", c.id),
		zap.String("user_id", uid),
		zap.String("ip", ip))

	g.wg.Add(2)
	go func() { defer g.wg.Done(); c.writePump() }()
	go func() { defer g.wg.Done(); c.readPump() }()
}

// disconnect removes c from the hub and presence. Runs once per connection.
func (g *Gateway) disconnect(c *client) {
	g.hub.Unregister(c.id)
	uid, offline := g.presence.Unregister(c.id)
	c.Close()
	g.log.Info("live connection closed",
		zap.String("conn_id", c.id),
		zap.String("user_id", uid),
		zap.Bool("user_offline", offline))
}

// Evict drops every live connection of userID from the channel room, as
// after the user's membership was removed.
func (g *Gateway) Evict(channelID, userID primitive.ObjectID) {
	chHex, uid := channelID.Hex(), userID.Hex()
	room := hub.ChannelRoom(chHex)
	for _, connID := range g.presence.ConnectionsFor(uid) {
		if g.hub.IsSubscribed(room, connID) {
			g.hub.Unsubscribe(room, connID)
			g.hub.Send(connID, events.Left(chHex))
		}
	}
	if g.presence.IsViewing(uid, chHex) {
		g.presence.SetActiveChannel(uid, "")
	}
}

// Shutdown closes every live connection and waits for their goroutines,
// bounded by ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.cancel()
	g.limiter.Stop()
	g.hub.Shutdown()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commandContext bounds one inbound command. It ends early on Shutdown.
func (g *Gateway) commandContext() (context.Context, context.CancelFunc) {
	return timeouts.WithTimeout(g.ctx, timeouts.Medium(), g.log, "live command")
}
