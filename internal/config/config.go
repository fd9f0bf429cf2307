package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Provider     ProviderConfig     `mapstructure:"provider"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	I18n         I18nConfig         `mapstructure:"i18n"`
}

type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	DefaultModel   string        `mapstructure:"default_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type CatalogConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ConversationConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig controls the per-caller limiter on the tool endpoints.
// The provider-side quota is header-driven and not configurable.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Enable environment variable substitution
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set environment variable overrides
	viper.SetEnvPrefix("") // No prefix
	viper.BindEnv("provider.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("provider.base_url", "OPENROUTER_BASE_URL")
	viper.BindEnv("conversation.redis.addr", "REDIS_HOST", "REDIS_PORT")
	viper.BindEnv("conversation.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("conversation.redis.db", "REDIS_DB")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := viper.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := viper.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Conversation.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	applyDefaults(&config)

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Provider.RequestTimeout <= 0 {
		cfg.Provider.RequestTimeout = 120 * time.Second
	}
	if cfg.Catalog.TTL <= 0 {
		cfg.Catalog.TTL = time.Hour
	}
	if cfg.Conversation.Backend == "" {
		cfg.Conversation.Backend = "memory"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.I18n.DefaultLanguage == "" {
		cfg.I18n.DefaultLanguage = "en"
	}
	if cfg.I18n.Directory == "" {
		cfg.I18n.Directory = "configs/i18n"
	}
	if len(cfg.I18n.Languages) == 0 {
		cfg.I18n.Languages = []string{"en"}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("provider api key is required")
	}
	switch cfg.Conversation.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported conversation backend: %s", cfg.Conversation.Backend)
	}
	return nil
}
