// Package config assembles the service configuration from defaults, an
// optional config file, and RECONCILER_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"invoice-reconciliation-service/internal/api"
	"invoice-reconciliation-service/internal/narrative"
	"invoice-reconciliation-service/internal/parsers"
	"invoice-reconciliation-service/internal/reconciler"
	"invoice-reconciliation-service/internal/store"
	"invoice-reconciliation-service/internal/validation"
	"invoice-reconciliation-service/pkg/errors"
	"invoice-reconciliation-service/pkg/logger"
)

// EnvPrefix is prepended to every environment variable override
const EnvPrefix = "RECONCILER"

// AppConfig is the complete service configuration
type AppConfig struct {
	Server     api.Config            `mapstructure:"server"`
	Database   store.Config          `mapstructure:"database"`
	Redis      narrative.RedisConfig `mapstructure:"redis"`
	Narrative  narrative.Config      `mapstructure:"narrative"`
	Reconciler reconciler.Config     `mapstructure:"reconciler"`
	Input      parsers.InputConfig   `mapstructure:"input"`
	Logging    logger.Config         `mapstructure:"logging"`
}

// NewViper returns a viper instance that reads RECONCILER_* variables, with
// nested keys separated by underscores (server.port -> RECONCILER_SERVER_PORT).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers a default for every key. Keys without a default are
// invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	server := api.DefaultConfig()
	v.SetDefault("server.host", server.Host)
	v.SetDefault("server.port", server.Port)
	v.SetDefault("server.read_timeout", server.ReadTimeout)
	v.SetDefault("server.write_timeout", server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", server.MaxBodyBytes)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_second", server.RateLimit.RequestsPerSecond)
	v.SetDefault("server.rate_limit.burst_size", server.RateLimit.BurstSize)
	v.SetDefault("server.rate_limit.cleanup_interval", server.RateLimit.CleanupInterval)
	v.SetDefault("server.rate_limit.entry_ttl", server.RateLimit.EntryTTL)

	db := store.DefaultConfig()
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.log_sql", db.LogSQL)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	nar := narrative.DefaultConfig()
	v.SetDefault("narrative.url", "")
	v.SetDefault("narrative.api_key", "")
	v.SetDefault("narrative.timeout", nar.Timeout)
	v.SetDefault("narrative.cache_ttl", nar.CacheTTL)

	rec := reconciler.DefaultConfig()
	v.SetDefault("reconciler.narrative_timeout", rec.NarrativeTimeout)
	v.SetDefault("reconciler.workers", rec.Workers)
	v.SetDefault("reconciler.progress_reporting", rec.ProgressReporting)

	thresholds := validation.DefaultConfig()
	v.SetDefault("reconciler.validation.line_tolerance", thresholds.LineTolerance)
	v.SetDefault("reconciler.validation.rounding_floor", thresholds.RoundingFloor)
	v.SetDefault("reconciler.validation.variance_percent", thresholds.VariancePercent)
	v.SetDefault("reconciler.validation.variance_absolute", thresholds.VarianceAbsolute)

	input := parsers.DefaultInputConfig()
	v.SetDefault("input.batch_size", input.BatchSize)
	v.SetDefault("input.max_errors", input.MaxErrors)
	v.SetDefault("input.max_line_bytes", input.MaxLineBytes)

	logCfg := logger.DefaultConfig()
	v.SetDefault("logging.level", string(logCfg.Level))
	v.SetDefault("logging.format", string(logCfg.Format))
	v.SetDefault("logging.output", string(logCfg.Output))
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.disable_timestamp", false)
	v.SetDefault("logging.caller_info", false)
}

// Load decodes v into an AppConfig and validates everything except the
// database DSN, which only the commands that touch the store require.
func Load(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", v.ConfigFileUsed(), err).
			WithSuggestion("Check the config file syntax and value types")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section of the configuration
func (c *AppConfig) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"server", c.Server.Validate},
		{"narrative", c.Narrative.Validate},
		{"reconciler", c.Reconciler.Validate},
		{"input", c.Input.Validate},
		{"logging", c.Logging.Validate},
		{"database", c.validatePool},
	}

	for _, sc := range checks {
		if err := sc.check(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, sc.section, nil, err)
		}
	}
	return nil
}

// RequireDatabase reports a configuration error when no DSN is set
func (c *AppConfig) RequireDatabase() error {
	if err := c.Database.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "database.dsn", nil, err).
			WithSuggestion(fmt.Sprintf("Pass --db-dsn or set %s_DATABASE_DSN", EnvPrefix))
	}
	return nil
}

// CacheEnabled reports whether narrative results should be cached in Redis
func (c *AppConfig) CacheEnabled() bool {
	return c.Narrative.Enabled() && strings.TrimSpace(c.Redis.Addr) != "" && c.Narrative.CacheTTL > 0
}

func (c *AppConfig) validatePool() error {
	db := c.Database
	if db.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be positive, got %d", db.MaxOpenConns)
	}
	if db.MaxIdleConns < 0 || db.MaxIdleConns > db.MaxOpenConns {
		return fmt.Errorf("max idle connections must be between 0 and %d, got %d", db.MaxOpenConns, db.MaxIdleConns)
	}
	return nil
}
