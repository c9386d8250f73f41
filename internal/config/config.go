package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"ZONEGATE_HTTP_ADDR" envDefault:":8080"`

	// Env selects dev conveniences like seeding.  "dev" | "prod".
	Env    string `env:"ZONEGATE_ENV" envDefault:"dev"`
	DBPath string `env:"ZONEGATE_DB_PATH" envDefault:"./data/zonegate.db"`

	// RedisAddr switches the occupancy tracker to redis when set, so
	// several instances share one counter per zone.  Empty = in-process.
	RedisAddr     string `env:"ZONEGATE_REDIS_ADDR"`
	RedisPassword string `env:"ZONEGATE_REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"ZONEGATE_REDIS_DB" envDefault:"0"`

	// Decision pipeline posture.
	StepTimeout       time.Duration `env:"ZONEGATE_STEP_TIMEOUT" envDefault:"2s"`
	FailOpen          bool          `env:"ZONEGATE_FAIL_OPEN" envDefault:"false"`
	IdempotencyWindow time.Duration `env:"ZONEGATE_IDEMPOTENCY_WINDOW" envDefault:"5s"`

	// Heartbeat retention.  0 days = keep forever.
	HeartbeatRetentionDays int `env:"ZONEGATE_HEARTBEAT_RETENTION_DAYS" envDefault:"30"`
	PruneIntervalHours     int `env:"ZONEGATE_PRUNE_INTERVAL_HOURS" envDefault:"6"`

	LogLevel  string `env:"ZONEGATE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ZONEGATE_LOG_FORMAT" envDefault:"json"`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Fail-soft: unknown environments behave like dev.
	if cfg.Env != "dev" && cfg.Env != "prod" {
		cfg.Env = "dev"
	}
	if cfg.StepTimeout < 0 {
		cfg.StepTimeout = 0
	}
	return cfg, nil
}
