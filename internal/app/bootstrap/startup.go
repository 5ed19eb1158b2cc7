// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/stratachat/internal/app/chat/directconv"
	"github.com/dalemusser/stratachat/internal/app/chat/directory"
	"github.com/dalemusser/stratachat/internal/app/chat/fanout"
	"github.com/dalemusser/stratachat/internal/app/chat/messaging"
	"github.com/dalemusser/stratachat/internal/app/realtime/gateway"
	"github.com/dalemusser/stratachat/internal/app/realtime/hub"
	"github.com/dalemusser/stratachat/internal/app/realtime/presence"
	membershipstore "github.com/dalemusser/stratachat/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/stratachat/internal/app/store/notifications"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/dalemusser/stratachat/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Runtime is the set of process singletons: the in-memory live state, the
// chat services over Mongo and the background workers.
type Runtime struct {
	Validator auth.Validator
	Presence  *presence.Registry
	Hub       *hub.Hub
	Gateway   *gateway.Gateway

	Directory     *directory.Service
	Messaging     *messaging.Service
	Fanout        *fanout.Fanout
	Direct        *directconv.Resolver
	Notifications *notificationstore.Store
	Users         *userstore.Store

	Retention *workers.NotificationRetention
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the presence registry, the hub, the chat services and the gateway, and
// starts the notification retention worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return errors.New("startup: DBDeps.Runtime is nil")
	}
	buildRuntime(deps.Runtime, appCfg, deps, logger)
	deps.Runtime.Retention.Start()
	logger.Info("chat runtime started",
		zap.Int("message_max_chars", deps.Runtime.Messaging.MaxChars),
		zap.Strings("allowed_origins", appCfg.AllowedOrigins))
	return nil
}

// buildRuntime wires rt without starting any goroutines owned by workers.
func buildRuntime(rt *Runtime, appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.StrataChatMongoDatabase

	rt.Validator = auth.NewJWTValidator(appCfg.JWTSecret, appCfg.JWTIssuer)
	rt.Presence = presence.New()
	rt.Hub = hub.New(logger.Named("hub"))

	rt.Users = userstore.New(db)
	rt.Notifications = notificationstore.New(db)
	rt.Directory = directory.New(db, logger.Named("directory"))
	rt.Fanout = fanout.New(membershipstore.New(db), rt.Notifications, rt.Users, rt.Presence, rt.Hub, logger.Named("fanout"))
	rt.Messaging = messaging.New(db, rt.Directory, rt.Hub, rt.Fanout, appCfg.MessageMaxChars, logger.Named("messaging"))
	rt.Direct = directconv.New(db, logger.Named("directconv"))

	rt.Gateway = gateway.New(gatewayConfig(appCfg), rt.Validator, rt.Presence, rt.Hub, rt.Directory, rt.Messaging, logger.Named("gateway"))

	// A removed member stops receiving the channel's live events at once.
	rt.Directory.OnMemberRemoved = rt.Gateway.Evict

	rt.Retention = workers.NewNotificationRetention(rt.Notifications, logger.Named("retention"),
		appCfg.NotificationSweepInterval, appCfg.NotificationRetention)
}

// gatewayConfig maps the live connection settings. Zero values fall back to
// the gateway defaults.
func gatewayConfig(appCfg AppConfig) gateway.Config {
	return gateway.Config{
		AllowedOrigins:  appCfg.AllowedOrigins,
		MaxMessageBytes: appCfg.WSMaxMessageBytes,
		SendBuffer:      appCfg.WSSendBuffer,
		RateBurst:       appCfg.WSRateBurst,
		RateInterval:    appCfg.WSRateInterval,
		HandshakesPerIP: appCfg.WSHandshakesPerIP,
		PongWait:        appCfg.WSPongWait,
		WriteWait:       appCfg.WSWriteWait,
	}
}
