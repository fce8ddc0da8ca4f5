package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Receipts ReceiptsConfig `mapstructure:"receipts"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// ExchangeConfig holds the currency rates provider configuration
type ExchangeConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// OpenAIConfig holds the receipt scanning model configuration
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	Enabled     bool    `mapstructure:"enabled"`
}

// ReceiptsConfig holds receipt upload and scan worker configuration
type ReceiptsConfig struct {
	StorageDir      string        `mapstructure:"storage_dir"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ScanQueueSize   int           `mapstructure:"scan_queue_size"`
	ScanConcurrency int           `mapstructure:"scan_concurrency"`
	ScanTimeout     time.Duration `mapstructure:"scan_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/expenseflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("auth.token_ttl", 12*time.Hour)
	viper.SetDefault("auth.issuer", "expenseflow")

	viper.SetDefault("exchange.base_url", "https://api.exchangerate.host")
	viper.SetDefault("exchange.timeout", 10*time.Second)
	viper.SetDefault("exchange.cache_ttl", 15*time.Minute)

	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.enabled", false)

	viper.SetDefault("receipts.storage_dir", "data/receipts")
	viper.SetDefault("receipts.max_upload_bytes", 10*1024*1024)
	viper.SetDefault("receipts.scan_queue_size", 128)
	viper.SetDefault("receipts.scan_concurrency", 2)
	viper.SetDefault("receipts.scan_timeout", 60*time.Second)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("exchange.base_url", "EXCHANGE_BASE_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when receipt scanning is enabled")
	}
	if c.Receipts.StorageDir == "" {
		return fmt.Errorf("receipts.storage_dir is required")
	}
	return nil
}
