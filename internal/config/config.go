package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken string `env:"BOT_TOKEN,required"`

	// Key-value store
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	KeyPrefix     string `env:"KEY_PREFIX" envDefault:"second_hand"`

	// Roster
	SuperAdminIDs    []int64 `env:"SUPER_ADMIN_IDS" envSeparator:","`
	ModeratorChatIDs []int64 `env:"MODERATOR_CHAT_IDS" envSeparator:","`

	// Media storage: "local" or "s3"
	MediaBackend  string `env:"MEDIA_BACKEND" envDefault:"local"`
	MediaRoot     string `env:"MEDIA_ROOT" envDefault:"media"`
	MediaCacheDir string `env:"MEDIA_CACHE_DIR" envDefault:"media_cache"`

	// S3-compatible object storage
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Prefix    string `env:"S3_PREFIX"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MediaBackend != "local" && cfg.MediaBackend != "s3" {
		return nil, fmt.Errorf("unsupported media backend %q", cfg.MediaBackend)
	}
	if cfg.MediaBackend == "s3" {
		if cfg.S3Endpoint == "" {
			return nil, fmt.Errorf("S3_ENDPOINT must be configured for the s3 backend")
		}
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET must be configured for the s3 backend")
		}
	}
	return cfg, nil
}

// RedisAddr returns the host:port address of the key-value store.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func (c *Config) IsSuperAdmin(telegramID int64) bool {
	for _, id := range c.SuperAdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
