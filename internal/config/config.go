package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"festhub"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"festhub"`

	NSQDHost string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	// Mode flags. A request-serving process runs with ENABLE_WORKER=false and
	// only ever inserts/cancels job rows; a worker process additionally runs
	// the poll loop and the cleanup sweep.
	EnableAPI    bool `envconfig:"ENABLE_API" default:"true"`
	EnableWorker bool `envconfig:"ENABLE_WORKER" default:"false"`

	// Scheduler worker tuning.
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	LockLifetime      time.Duration `envconfig:"LOCK_LIFETIME" default:"10m"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"5m"`

	// Push gateway.
	PushGatewayTimeout time.Duration `envconfig:"PUSH_GATEWAY_TIMEOUT" default:"10s"`
	PushRatePerSec     int           `envconfig:"PUSH_RATE_PER_SEC" default:"20"`
	PushTTLSeconds     int           `envconfig:"PUSH_TTL_SECONDS" default:"3600"`

	// How far ahead of an activity's start time its reminder fires.
	ReminderLead time.Duration `envconfig:"REMINDER_LEAD" default:"30m"`

	// Server
	ServerPort    int    `envconfig:"SERVER_PORT" default:"8081"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: POLL_INTERVAL must be positive", ErrMissingRequired)
	}
	if c.LockLifetime <= 0 {
		return fmt.Errorf("%w: LOCK_LIFETIME must be positive", ErrMissingRequired)
	}
	return nil
}
