package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Pairing TTL bounds accepted from configuration
const (
	MinPairingTTLSeconds = 60
	MaxPairingTTLSeconds = 1800
)

// Expired pending records linger this long before the reaper deletes
// them, so a slow poller still observes the terminal state. Cancelled
// records go on the next reaper run; confirmed ones are kept.
const PairingRetention = 30 * time.Minute

// Unauthenticated confirm attempts allowed per IP per minute
const ConfirmRateLimitPerMin = 10

// Default per-tenant rate limit when the tenant row has none
const DefaultRateLimitPerMin = 60

// deviceInfo fields are opaque display metadata; they are capped, never parsed
const MaxDeviceInfoLen = 200

// Initiator polling interval used by the poller package default
const DefaultPollInterval = 3 * time.Second
