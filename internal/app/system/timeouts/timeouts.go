// Package timeouts provides centralized timeout values for store calls and
// live-connection handshakes.
//
// Every Mongo call made on behalf of a request or a live event runs under one
// of these budgets. Values can be overridden at startup with Configure or
// ConfigureFromEnv; otherwise the defaults apply.
//
// Choosing a timeout:
//   - Ping: health checks
//   - Short: single-document reads and writes (membership lookup, ack)
//   - Medium: list queries and message sends
//   - Long: multi-collection work (notification fanout, direct-channel creation)
//   - Handshake: credential validation and websocket upgrade
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing      = 2 * time.Second
	DefaultShort     = 5 * time.Second
	DefaultMedium    = 10 * time.Second
	DefaultLong      = 30 * time.Second
	DefaultHandshake = 10 * time.Second
)

var (
	mu        sync.RWMutex
	ping      = DefaultPing
	short     = DefaultShort
	medium    = DefaultMedium
	long      = DefaultLong
	handshake = DefaultHandshake
)

func get(p *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *p
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return get(&ping) }

// Short returns the timeout for single-document operations.
func Short() time.Duration { return get(&short) }

// Medium returns the timeout for list queries and sends.
func Medium() time.Duration { return get(&medium) }

// Long returns the timeout for operations touching several collections.
func Long() time.Duration { return get(&long) }

// Handshake returns the budget for upgrading and authenticating a live connection.
func Handshake() time.Duration { return get(&handshake) }

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping      time.Duration
	Short     time.Duration
	Medium    time.Duration
	Long      time.Duration
	Handshake time.Duration
}

// Configure sets custom timeout values. Call during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, s := range slots(cfg) {
		if s.v > 0 {
			*s.dst = s.v
		}
	}
}

// Reset restores all timeouts to their defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping, short, medium, long, handshake = DefaultPing, DefaultShort, DefaultMedium, DefaultLong, DefaultHandshake
}

// ConfigureFromEnv reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM,
// TIMEOUT_LONG and TIMEOUT_HANDSHAKE (Go duration strings). Invalid or
// non-positive values are ignored. Returns how many were applied.
func ConfigureFromEnv() int {
	envs := map[string]*time.Duration{
		"TIMEOUT_PING":      &ping,
		"TIMEOUT_SHORT":     &short,
		"TIMEOUT_MEDIUM":    &medium,
		"TIMEOUT_LONG":      &long,
		"TIMEOUT_HANDSHAKE": &handshake,
	}

	mu.Lock()
	defer mu.Unlock()
	configured := 0
	for key, dst := range envs {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			configured++
		}
	}
	return configured
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Medium: medium, Long: long, Handshake: handshake}
}

type slot struct {
	dst *time.Duration
	v   time.Duration
}

func slots(cfg Config) []slot {
	return []slot{
		{&ping, cfg.Ping},
		{&short, cfg.Short},
		{&medium, cfg.Medium},
		{&long, cfg.Long},
		{&handshake, cfg.Handshake},
	}
}

// WithTimeout creates a context with timeout whose cancel func logs a warning
// when the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), s.log, "notification fanout")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
