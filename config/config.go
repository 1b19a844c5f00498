package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server ServerConfig
	Proxy  ProxyConfig
	Oracle OracleConfig
	Fetch  FetchConfig
	Batch  BatchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProxyConfig holds the outbound scraping proxy configuration.
// An empty Host disables proxying.
type ProxyConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	PasswordSecret string `mapstructure:"password_secret"`
}

// OracleConfig holds the product matching LLM configuration
type OracleConfig struct {
	APIKeySecret string        `mapstructure:"api_key_secret"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// FetchConfig holds page fetch retry configuration
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// BatchConfig holds batch verification fan-out configuration
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/linkverify/")

	// Environment variable settings
	v.SetEnvPrefix("LINKVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Proxy defaults (host empty: direct requests)
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.port", "1010")
	v.SetDefault("proxy.password_secret", "PROXY_PASSWORD")

	// Oracle defaults
	v.SetDefault("oracle.api_key_secret", "OPENROUTER_API_KEY")
	v.SetDefault("oracle.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("oracle.model", "openai/gpt-4o")
	v.SetDefault("oracle.timeout", "60s")

	// Fetch defaults
	v.SetDefault("fetch.timeout", "15s")
	v.SetDefault("fetch.max_retries", 3)

	// Batch defaults
	v.SetDefault("batch.concurrency", 10)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Oracle.APIKeySecret == "" {
		return fmt.Errorf("oracle API key secret name is required (set LINKVERIFY_ORACLE_API_KEY_SECRET)")
	}

	if config.Proxy.Host != "" && config.Proxy.Username == "" {
		return fmt.Errorf("proxy username is required when proxy host is configured")
	}

	if config.Fetch.MaxRetries < 1 {
		return fmt.Errorf("fetch max_retries must be at least 1, got: %d", config.Fetch.MaxRetries)
	}

	if config.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got: %d", config.Batch.Concurrency)
	}

	return nil
}
