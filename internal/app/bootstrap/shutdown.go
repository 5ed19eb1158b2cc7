// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the workers and live connections, then disconnects Mongo.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if rt := deps.Runtime; rt != nil {
		if rt.Retention != nil {
			rt.Retention.Stop()
		}
		if rt.Gateway != nil {
			logger.Info("closing live connections")
			if err := rt.Gateway.Shutdown(ctx); err != nil {
				logger.Warn("live connections did not drain before deadline", zap.Error(err))
			}
		}
		if rt.Presence != nil {
			rt.Presence.Close()
		}
	}

	if deps.StrataChatMongoClient != nil {
		logger.Info("disconnecting StrataChat MongoDB client")
		if err := deps.StrataChatMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
