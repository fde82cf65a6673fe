package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	SerpAPI    SerpAPIConfig    `mapstructure:"serpapi"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SerpAPIConfig holds search provider configuration
type SerpAPIConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Engine            string        `mapstructure:"engine"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// OpenAIConfig holds reconciliation model configuration. An empty API key
// leaves reconciliation disabled.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int64         `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory" or "none"
	TTL  time.Duration `mapstructure:"ttl"`
}

// FilterConfig holds the offer exclusion vocabulary
type FilterConfig struct {
	ExclusionKeywords []string `mapstructure:"exclusion_keywords"`
}

// ExtractionConfig holds price extraction settings
type ExtractionConfig struct {
	EnableEntityRecognizer bool `mapstructure:"enable_entity_recognizer"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/offerlens/")

	// Environment variable settings: serpapi.api_key -> OFFERLENS_SERPAPI_API_KEY
	v.SetEnvPrefix("OFFERLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are also read from their conventional names
	if err := v.BindEnv("serpapi.api_key", "OFFERLENS_SERPAPI_API_KEY", "SERPAPI_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("openai.api_key", "OFFERLENS_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default so
// that AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// SerpAPI defaults
	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.engine", "google")
	v.SetDefault("serpapi.timeout", "30s")
	v.SetDefault("serpapi.requests_per_second", 1.0)
	v.SetDefault("serpapi.burst", 5)
	v.SetDefault("serpapi.max_retries", 3)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.max_tokens", 1500)
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.timeout", "60s")
	v.SetDefault("openai.max_retries", 2)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "15m")

	// Pipeline defaults
	v.SetDefault("filter.exclusion_keywords", []string{})
	v.SetDefault("extraction.enable_entity_recognizer", true)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.SerpAPI.APIKey == "" {
		return fmt.Errorf("SerpAPI key is required (set OFFERLENS_SERPAPI_API_KEY or SERPAPI_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "none" {
		return fmt.Errorf("cache type must be 'memory' or 'none', got: %s", config.Cache.Type)
	}

	if config.SerpAPI.RequestsPerSecond <= 0 {
		return fmt.Errorf("serpapi requests_per_second must be positive, got: %v", config.SerpAPI.RequestsPerSecond)
	}

	if config.OpenAI.Temperature < 0 || config.OpenAI.Temperature > 2 {
		return fmt.Errorf("openai temperature must be between 0 and 2, got: %v", config.OpenAI.Temperature)
	}

	return nil
}

// ReconciliationEnabled reports whether an OpenAI key is configured
func (c *Config) ReconciliationEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// loadEnvFile loads .env from the working directory without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}
