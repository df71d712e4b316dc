package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	// Database
	DBDriver   string `envconfig:"DB_DRIVER" default:"sqlite"` // postgres, sqlite
	DBURL      string `envconfig:"DATABASE_URL"`
	DBPath     string `envconfig:"DB_PATH" default:"./whatsapp.db"`
	DBLogLevel string `envconfig:"DB_LOG_LEVEL" default:"warn"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// External auth provider (HS256 access tokens, sub = profile id)
	AuthJWTSecret string `envconfig:"AUTH_JWT_SECRET"`
	SiteURL       string `envconfig:"SITE_URL" default:"http://localhost:3000"`

	// Z-API gateway
	ZAPIBaseURL         string        `envconfig:"ZAPI_BASE_URL" default:"https://api.z-api.io"`
	ZAPIClientToken     string        `envconfig:"ZAPI_CLIENT_TOKEN"`
	ZAPITimeout         time.Duration `envconfig:"ZAPI_TIMEOUT" default:"15s"`
	ZAPIRatePerSec      float64       `envconfig:"ZAPI_RATE_PER_SEC" default:"5"`
	ZAPIBurst           int           `envconfig:"ZAPI_BURST" default:"10"`
	ZAPIBreakerFailures uint32        `envconfig:"ZAPI_BREAKER_FAILURES" default:"5"`
	ZAPIBreakerTimeout  time.Duration `envconfig:"ZAPI_BREAKER_TIMEOUT" default:"30s"`

	WebhookConcurrency int           `envconfig:"WEBHOOK_CONCURRENCY" default:"16"`
	WebhookTimeout     time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"2m"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.WebhookConcurrency <= 0 {
		return fmt.Errorf("config: WEBHOOK_CONCURRENCY must be positive")
	}
	return nil
}
