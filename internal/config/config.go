package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// CORSAllowedOrigins lists the browser origins allowed to call the API.
	// An empty list disables the CORS middleware.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// RequestTimeoutSeconds bounds handler execution time.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. The special value "memory"
	// runs the API on in-process stores, which is only meant for local use.
	URL          string `mapstructure:"url"            validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret"                     validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes"         validate:"required,gt=0,lt=44640"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0,lt=44640,gtfield=TokenLifetimeMinutes"`
	BCryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=4,lte=31"`
}

// LLMConfig contains all LLM integration related settings.
// Generation sessions are disabled when GeminiAPIKey is empty.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// TaskConfig contains settings for the background task runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize   int `mapstructure:"queue_size"   validate:"gte=1"`
}

// UsesMemoryStore reports whether the database URL selects the in-process stores.
func (c DatabaseConfig) UsesMemoryStore() bool {
	return c.URL == MemoryDatabaseURL
}

// GenerationEnabled reports whether an LLM backend is configured.
func (c LLMConfig) GenerationEnabled() bool {
	return c.GeminiAPIKey != ""
}
