// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - Request body size limits
//
// AppConfig is where everything specific to the chat service lives. The
// struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown should live here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Bearer credential validation. Tokens are issued elsewhere.
	JWTSecret string
	JWTIssuer string // empty accepts any issuer

	// Origins allowed to open live connections and call the REST API.
	// "*" allows any origin.
	AllowedOrigins []string

	// Live connection limits
	WSMaxMessageBytes int64
	WSRateBurst       int
	WSRateInterval    time.Duration
	WSSendBuffer      int
	WSHandshakesPerIP int           // upgrades per minute per client IP
	WSPongWait        time.Duration // idle limit between pongs
	WSWriteWait       time.Duration // per-write deadline

	// Message content limit, in characters.
	MessageMaxChars int

	// Read notifications older than NotificationRetention are swept every
	// NotificationSweepInterval.
	NotificationRetention     time.Duration
	NotificationSweepInterval time.Duration

	// Public base URL of the service.
	BaseURL string
}
