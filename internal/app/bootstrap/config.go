// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devJWTSecret is the default signing secret. It is refused in prod.
const devJWTSecret = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for StrataChat.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: STRATACHAT_MONGO_URI, STRATACHAT_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "strata_chat", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Bearer credentials
	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC secret for bearer tokens (must be strong in production)"},
	{Name: "jwt_issuer", Default: "", Desc: "Required token issuer (blank accepts any)"},

	// Origins
	{Name: "allowed_origins", Default: "", Desc: "Comma-separated origins allowed for /ws and /api ('*' for any)"},

	// Live connections
	{Name: "ws_max_message_bytes", Default: 16384, Desc: "Largest inbound live frame in bytes"},
	{Name: "ws_rate_burst", Default: 10, Desc: "Inbound live events allowed at once per connection"},
	{Name: "ws_rate_interval", Default: "1s", Desc: "Refill period for ws_rate_burst"},
	{Name: "ws_send_buffer", Default: 256, Desc: "Outbound frames queued per connection before it is dropped"},
	{Name: "ws_handshakes_per_ip", Default: 30, Desc: "Live connection upgrades allowed per minute per client IP"},
	{Name: "ws_pong_wait", Default: "60s", Desc: "Idle time allowed between pongs before a live connection is closed"},
	{Name: "ws_write_wait", Default: "10s", Desc: "Deadline for a single outbound live frame"},

	// Messages
	{Name: "message_max_chars", Default: 4000, Desc: "Longest message content in characters"},

	// Notifications
	{Name: "notification_retention", Default: "720h", Desc: "Age after which read notifications are deleted"},
	{Name: "notification_sweep_interval", Default: "1h", Desc: "How often read notifications are swept"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of the service"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATACHAT_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
//
// Timeout overrides (STRATACHAT_TIMEOUT_*) are applied here as well.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STRATACHAT", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTIssuer: appValues.String("jwt_issuer"),

		AllowedOrigins: splitList(appValues.String("allowed_origins")),

		WSMaxMessageBytes: int64(appValues.Int("ws_max_message_bytes")),
		WSRateBurst:       appValues.Int("ws_rate_burst"),
		WSRateInterval:    appValues.Duration("ws_rate_interval", time.Second),
		WSSendBuffer:      appValues.Int("ws_send_buffer"),
		WSHandshakesPerIP: appValues.Int("ws_handshakes_per_ip"),
		WSPongWait:        appValues.Duration("ws_pong_wait", 60*time.Second),
		WSWriteWait:       appValues.Duration("ws_write_wait", 10*time.Second),

		MessageMaxChars: appValues.Int("message_max_chars"),

		NotificationRetention:     appValues.Duration("notification_retention", 30*24*time.Hour),
		NotificationSweepInterval: appValues.Duration("notification_sweep_interval", time.Hour),

		BaseURL: appValues.String("base_url"),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied", zap.Int("count", n))
	}

	return coreCfg, appCfg, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// StrataChat validates the MongoDB URI format to catch configuration errors
// before attempting to connect, and refuses the development JWT secret in
// production.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	if coreCfg.Env == "prod" && appCfg.JWTSecret == devJWTSecret {
		return fmt.Errorf("jwt_secret must be changed from the development default in prod")
	}
	if appCfg.NotificationRetention <= 0 || appCfg.NotificationSweepInterval <= 0 {
		return fmt.Errorf("notification_retention and notification_sweep_interval must be positive")
	}
	if appCfg.WSPongWait > 0 && appCfg.WSWriteWait >= appCfg.WSPongWait {
		return fmt.Errorf("ws_write_wait must be shorter than ws_pong_wait")
	}
	if appCfg.MessageMaxChars <= 0 {
		return fmt.Errorf("message_max_chars must be positive")
	}
	return nil
}
