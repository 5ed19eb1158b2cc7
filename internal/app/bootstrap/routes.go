// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	channelsfeature "github.com/dalemusser/stratachat/internal/app/features/channels"
	directfeature "github.com/dalemusser/stratachat/internal/app/features/direct"
	healthfeature "github.com/dalemusser/stratachat/internal/app/features/health"
	messagesfeature "github.com/dalemusser/stratachat/internal/app/features/messages"
	notificationsfeature "github.com/dalemusser/stratachat/internal/app/features/notifications"
	"github.com/dalemusser/stratachat/internal/app/system/auth"
	"github.com/dalemusser/stratachat/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so the chat runtime in deps is ready.
//
// Layout:
//   - /health   Mongo ping and online user count
//   - /metrics  Prometheus scrape endpoint
//   - /ws       live connection upgrade (credential checked after upgrade)
//   - /api/...  bearer-authenticated JSON API
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Gateway == nil {
		return nil, errors.New("build handler: chat runtime not started")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.StrataChatMongoClient, rt.Presence, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.Handler())

	// Live connections
	r.Get("/ws", rt.Gateway.ServeWS)

	// JSON API
	r.Route("/api", func(api chi.Router) {
		api.Use(corsHandler(appCfg.AllowedOrigins))
		api.Use(auth.RequireBearer(rt.Validator, logger))

		channelsHandler := channelsfeature.NewHandler(rt.Directory, rt.Messaging, logger)
		api.Mount("/channels", channelsfeature.Routes(channelsHandler))

		messagesHandler := messagesfeature.NewHandler(rt.Messaging, logger)
		api.Mount("/messages", messagesfeature.Routes(messagesHandler))

		directHandler := directfeature.NewHandler(rt.Direct, logger)
		api.Mount("/direct", directfeature.Routes(directHandler))

		notificationsHandler := notificationsfeature.NewHandler(rt.Notifications, rt.Users, rt.Fanout, logger)
		api.Mount("/notifications", notificationsfeature.Routes(notificationsHandler))
	})

	return r, nil
}

// corsHandler allows browser clients on the configured origins to call the
// API with a bearer header. No cookies are involved. With no origins
// configured no CORS headers are sent, so browsers on other origins are
// refused, matching the live endpoint.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}
