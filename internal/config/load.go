package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MemoryDatabaseURL selects the in-process stores instead of PostgreSQL.
const MemoryDatabaseURL = "memory"

// envPrefix is prepended to every environment variable, e.g. CARDS_SERVER_PORT.
const envPrefix = "CARDS"

// defaults lists every known key with its default value. Keys without a
// sensible default are registered with an empty value so that viper binds
// the matching environment variable during Unmarshal.
var defaults = map[string]any{
	"server.port":                         8080,
	"server.log_level":                    "info",
	"server.cors_allowed_origins":         []string{},
	"server.request_timeout_seconds":      30,
	"database.url":                        "",
	"database.max_open_conns":             10,
	"database.max_idle_conns":             5,
	"auth.jwt_secret":                     "",
	"auth.token_lifetime_minutes":         60,
	"auth.refresh_token_lifetime_minutes": 10080,
	"auth.bcrypt_cost":                    10,
	"llm.gemini_api_key":                  "",
	"llm.model_name":                      "gemini-2.0-flash",
	"llm.max_retries":                     3,
	"llm.retry_delay_seconds":             2,
	"task.worker_count":                   2,
	"task.queue_size":                     100,
}

// Load configuration from environment variables and optionally config files.
// A .env file in the working directory is read first (if present) so local
// development does not need exported variables. Environment variables take
// precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
