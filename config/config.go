package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"parking-scheduler-backend/internal/logging"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Tiers      []TierConfig     `yaml:"tiers"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Feed       FeedConfig       `yaml:"feed"`
	Decision   DecisionConfig   `yaml:"decision"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateBurst       int     `yaml:"rate_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// SchedulerConfig tunes the resolver loop.
type SchedulerConfig struct {
	BatchWindowMs    int           `yaml:"batch_window_ms"`
	BatchWindow      time.Duration `yaml:"-"`
	DurationUnit     string        `yaml:"duration_unit"`
	Unit             time.Duration `yaml:"-"` // length of one requested "minute"
	ResetWhenIdle    bool          `yaml:"reset_when_idle"`
	DecisionAttempts int           `yaml:"decision_attempts"`
}

// TierConfig describes one floor of the garage.
type TierConfig struct {
	Name       string   `yaml:"name"`
	Floor      int      `yaml:"floor"`
	Slots      int      `yaml:"slots"`
	SlotIDs    []string `yaml:"slot_ids"`
	MaxMinutes float64  `yaml:"max_minutes"`
	Queueing   bool     `yaml:"queueing"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the movement worker pool.
type WorkerPoolConfig struct {
	Size   int `yaml:"size"`
	Buffer int `yaml:"buffer"`
}

// FeedConfig points at an upstream source of parking requests.
type FeedConfig struct {
	Enabled         bool              `yaml:"enabled"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"`
	URL             string            `yaml:"url"`
	Headers         map[string]string `yaml:"headers"`
	PageSize        int               `yaml:"page_size"`
	HTTPProxy       string            `yaml:"http_proxy"`
}

// DecisionConfig selects who answers "stay longer?" prompts.
type DecisionConfig struct {
	Mode                 string        `yaml:"mode"` // policy, console or api
	ExtendMinutes        float64       `yaml:"extend_minutes"`
	ExtendTiers          []int         `yaml:"extend_tiers"`
	MaxExtensions        int           `yaml:"max_extensions"`
	AnswerTimeoutSeconds int           `yaml:"answer_timeout_seconds"`
	AnswerTimeout        time.Duration `yaml:"-"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// DefaultTiers is the reference garage: two ten-bay floors and a three-bay top floor with a waiting queue.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "ground", Floor: 0, Slots: 10, MaxMinutes: 30},
		{Name: "first", Floor: 1, Slots: 10},
		{Name: "second", Floor: 2, Slots: 3, Queueing: true},
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs without a file.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	log := logging.Component("config")

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Scheduler.BatchWindowMs <= 0 {
		cfg.Scheduler.BatchWindowMs = 1000
	}
	cfg.Scheduler.BatchWindow = time.Duration(cfg.Scheduler.BatchWindowMs) * time.Millisecond

	switch cfg.Scheduler.DurationUnit {
	case "", "minute":
		cfg.Scheduler.DurationUnit = "minute"
		cfg.Scheduler.Unit = time.Minute
	case "second":
		cfg.Scheduler.Unit = time.Second
	case "millisecond":
		cfg.Scheduler.Unit = time.Millisecond
	default:
		return fmt.Errorf("scheduler.duration_unit %q is not one of minute, second, millisecond", cfg.Scheduler.DurationUnit)
	}
	if cfg.Scheduler.DecisionAttempts <= 0 {
		cfg.Scheduler.DecisionAttempts = 3
	}

	if len(cfg.Tiers) == 0 {
		log.Info().Msg("no tiers configured; using the reference garage layout")
		cfg.Tiers = DefaultTiers()
	}
	for i, t := range cfg.Tiers {
		if t.Slots <= 0 && len(t.SlotIDs) == 0 {
			return fmt.Errorf("tiers[%d] (%s) has no slots", i, t.Name)
		}
		if t.MaxMinutes < 0 {
			return fmt.Errorf("tiers[%d] (%s) has a negative max_minutes", i, t.Name)
		}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Warn().Msg("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.Buffer <= 0 {
		cfg.WorkerPool.Buffer = 256
	}

	if cfg.Feed.IntervalSeconds <= 0 {
		cfg.Feed.IntervalSeconds = 60
	}
	cfg.Feed.Interval = time.Duration(cfg.Feed.IntervalSeconds) * time.Second
	if cfg.Feed.PageSize <= 0 {
		cfg.Feed.PageSize = 100
	}

	switch cfg.Decision.Mode {
	case "":
		cfg.Decision.Mode = "policy"
	case "policy", "console", "api":
	default:
		return fmt.Errorf("decision.mode %q is not one of policy, console, api", cfg.Decision.Mode)
	}
	if cfg.Decision.MaxExtensions <= 0 {
		cfg.Decision.MaxExtensions = 1
	}
	if cfg.Decision.AnswerTimeoutSeconds <= 0 {
		cfg.Decision.AnswerTimeoutSeconds = 120
	}
	cfg.Decision.AnswerTimeout = time.Duration(cfg.Decision.AnswerTimeoutSeconds) * time.Second

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return nil
}

// Minutes converts a requested number of minutes into a duration using the configured unit.
func (s SchedulerConfig) Minutes(m float64) time.Duration {
	return time.Duration(m * float64(s.Unit))
}
