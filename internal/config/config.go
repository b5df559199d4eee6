package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       App       `mapstructure:"app"`
	Input     Input     `mapstructure:"input"`
	Cache     Cache     `mapstructure:"cache"`
	AI        AI        `mapstructure:"ai"`
	Search    Search    `mapstructure:"search"`
	Summarize Summarize `mapstructure:"summarize"`
	Messaging Messaging `mapstructure:"messaging"`
	Logging   Logging   `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug   bool   `mapstructure:"debug"`
	DataDir string `mapstructure:"data_dir"`
}

// Input holds bookmark export file configuration
type Input struct {
	BookmarksFile string `mapstructure:"bookmarks_file"`
	MaxItems      int    `mapstructure:"max_items"`
}

// Cache holds dedup cache and digest archive configuration
type Cache struct {
	ProcessedIDsFile string `mapstructure:"processed_ids_file"`
	MaxIDs           int    `mapstructure:"max_ids"`
	MaxFailures      int    `mapstructure:"max_failures"`
}

// AI holds LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	LightModel    string  `mapstructure:"light_model"`
	Timeout       string  `mapstructure:"timeout"`
	MaxTokens     int32   `mapstructure:"max_tokens"`
	Temperature   float32 `mapstructure:"temperature"`
	LikeThreshold int     `mapstructure:"like_threshold"`
}

// Search holds search enrichment configuration
type Search struct {
	Provider   string `mapstructure:"provider"`
	MaxResults int    `mapstructure:"max_results"`
	Timeout    string `mapstructure:"timeout"`
	RateLimit  string `mapstructure:"rate_limit"`
	Enabled    bool   `mapstructure:"enabled"`
}

// Summarize holds batching and retry configuration for the summarizer
type Summarize struct {
	BatchTokenBudget int    `mapstructure:"batch_token_budget"`
	Concurrency      int    `mapstructure:"concurrency"`
	MaxAttempts      int    `mapstructure:"max_attempts"`
	BackoffBase      string `mapstructure:"backoff_base"`
	BackoffMax       string `mapstructure:"backoff_max"`
}

// Messaging holds Slack webhook configuration
type Messaging struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	Timeout         string `mapstructure:"timeout"`
	Username        string `mapstructure:"username"`
	IconEmoji       string `mapstructure:"icon_emoji"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from config file, .env and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".bookdigest")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".bookdigest")

	// Input defaults
	viper.SetDefault("input.bookmarks_file", "bookmarks.json")
	viper.SetDefault("input.max_items", 30)

	// Cache defaults
	viper.SetDefault("cache.processed_ids_file", "processed_ids.json")
	viper.SetDefault("cache.max_ids", 100000)
	viper.SetDefault("cache.max_failures", 3)

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	viper.SetDefault("ai.gemini.light_model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.max_tokens", 4096)
	viper.SetDefault("ai.gemini.temperature", 0.3)
	viper.SetDefault("ai.gemini.like_threshold", 500)

	// Search defaults
	viper.SetDefault("search.provider", "duckduckgo")
	viper.SetDefault("search.max_results", 3)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.rate_limit", "1500ms")
	viper.SetDefault("search.enabled", true)

	// Summarize defaults
	viper.SetDefault("summarize.batch_token_budget", 3000)
	viper.SetDefault("summarize.concurrency", 3)
	viper.SetDefault("summarize.max_attempts", 3)
	viper.SetDefault("summarize.backoff_base", "2s")
	viper.SetDefault("summarize.backoff_max", "30s")

	// Messaging defaults
	viper.SetDefault("messaging.timeout", "10s")
	viper.SetDefault("messaging.username", "Bookmark Digest")
	viper.SetDefault("messaging.icon_emoji", ":books:")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	// Slack webhook
	bindEnvKeys("messaging.slack_webhook_url", []string{
		"SLACK_WEBHOOK_URL",
		"SLACK_WEBHOOK",
	})

	// Bookmark export location
	bindEnvKeys("input.bookmarks_file", []string{
		"BOOKMARKS_FILE",
	})

	bindEnvKeys("cache.processed_ids_file", []string{
		"PROCESSED_IDS_FILE",
	})

	// General settings
	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"BOOKDIGEST_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig validates durations and expands paths
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Cache.ProcessedIDsFile != "" {
		config.Cache.ProcessedIDsFile = expandPath(config.Cache.ProcessedIDsFile)
	}

	durations := map[string]string{
		"ai.gemini.timeout":      config.AI.Gemini.Timeout,
		"search.timeout":         config.Search.Timeout,
		"search.rate_limit":      config.Search.RateLimit,
		"summarize.backoff_base": config.Summarize.BackoffBase,
		"summarize.backoff_max":  config.Summarize.BackoffMax,
		"messaging.timeout":      config.Messaging.Timeout,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// Duration parses a configured duration string, falling back to def when the
// value is empty or malformed.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
