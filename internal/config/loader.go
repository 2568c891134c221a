package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CollectionDefaults carry the per-collection fallback query parts.
type CollectionDefaults struct {
	Sort   string `mapstructure:"sort"`
	Expand string `mapstructure:"expand"`
}

// Config holds the data-access layer configuration.
type Config struct {
	Retry struct {
		MaxRetries int
		BaseDelay  time.Duration
	}
	List struct {
		PerPage int
	}
	Collections map[string]CollectionDefaults
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	cfg := Config{Collections: map[string]CollectionDefaults{}}
	cfg.Retry.MaxRetries = 3
	cfg.Retry.BaseDelay = time.Second
	cfg.List.PerPage = 30
	return cfg
}

// Load reads config.yaml from configPath, layered with environment overrides.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()        // allow environment overrides
	v.SetEnvPrefix("STORE") // map env vars like STORE_RETRY_MAX_RETRIES
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("retry.max_retries")
	v.BindEnv("retry.base_delay_ms")
	v.BindEnv("list.per_page")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("retry.max_retries") {
		cfg.Retry.MaxRetries = v.GetInt("retry.max_retries")
	}
	if v.IsSet("retry.base_delay_ms") {
		cfg.Retry.BaseDelay = time.Duration(v.GetInt("retry.base_delay_ms")) * time.Millisecond
	}
	if v.IsSet("list.per_page") {
		cfg.List.PerPage = v.GetInt("list.per_page")
	}
	if v.IsSet("collections") {
		collections := map[string]CollectionDefaults{}
		if err := v.UnmarshalKey("collections", &collections); err != nil {
			return cfg, fmt.Errorf("failed to parse collection defaults: %w", err)
		}
		cfg.Collections = collections
	}

	return cfg, nil
}

// DefaultsFor returns the configured defaults for a collection, or zero
// defaults when none are set.
func (c Config) DefaultsFor(collection string) CollectionDefaults {
	return c.Collections[collection]
}
