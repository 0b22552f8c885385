package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	PairBaseURL         string `env:"PAIR_BASE_URL" envDefault:"http://localhost:8080"`
	PairingTTLSeconds   int    `env:"PAIRING_TTL_SECONDS" envDefault:"300"`
	MaxPendingPerTenant int    `env:"MAX_PENDING_PER_TENANT" envDefault:"5"`
	SMSGatewayURL       string `env:"SMS_GATEWAY_URL"`
	SMSGatewayToken     string `env:"SMS_GATEWAY_TOKEN"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingTTLSeconds < MinPairingTTLSeconds || c.PairingTTLSeconds > MaxPairingTTLSeconds {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be between %d and %d",
			MinPairingTTLSeconds, MaxPairingTTLSeconds)
	}
	if c.MaxPendingPerTenant <= 0 {
		return fmt.Errorf("MAX_PENDING_PER_TENANT must be positive")
	}

	if isProduction {
		if !strings.HasPrefix(c.PairBaseURL, "https://") {
			return fmt.Errorf("PAIR_BASE_URL must be https in production: pair links transit SMS and QR scans")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.SMSGatewayURL == "" {
			log.Warn().Msg("SMS_GATEWAY_URL is empty in production: pairing links can only be delivered by QR")
		} else if !strings.HasPrefix(c.SMSGatewayURL, "https://") {
			log.Warn().Msg("SMS_GATEWAY_URL is not https in production")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
