// Package config handles application configuration: YAML file plus
// FORGE_-prefixed environment variables, with hot reload of the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dataforge-ai/forge/internal/providers"
	"github.com/dataforge-ai/forge/internal/store"
)

// Config is the application configuration.
type Config struct {
	// DataDir is the root for scraped pages and exported datasets.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// DatabasePath is the SQLite file path.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Scraper ScraperConfig `mapstructure:"scraper" yaml:"scraper"`

	// JobDefaults seeds per-job config fields left unset by the caller.
	JobDefaults store.JobConfig `mapstructure:"job_defaults" yaml:"job_defaults"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// LLMConfig configures the LLM provider client.
type LLMConfig struct {
	// APIKey may use ${ENV_VAR} syntax.
	APIKey         string                            `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string                            `mapstructure:"base_url" yaml:"base_url"`
	Model          string                            `mapstructure:"model" yaml:"model"`
	RateLimit      float64                           `mapstructure:"rate_limit" yaml:"rate_limit"`
	MaxConcurrency int64                             `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	MaxRetries     int                               `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int                               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Pricing        map[string]providers.ModelPricing `mapstructure:"pricing" yaml:"pricing,omitempty"`
}

// ScraperConfig configures the HTTP fetcher.
type ScraperConfig struct {
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	jobDefaults := store.JobConfig{}
	jobDefaults.Normalize()

	return &Config{
		DataDir:      "data",
		DatabasePath: "forge.db",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		LLM: LLMConfig{
			APIKey:         "${OPENROUTER_API_KEY}",
			BaseURL:        providers.OpenRouterBaseURL,
			Model:          "gpt-4o-mini",
			RateLimit:      5.0,
			MaxConcurrency: 5,
			MaxRetries:     3,
			TimeoutSeconds: 120,
		},
		Scraper: ScraperConfig{
			UserAgent:      "forge/1.0 (+https://github.com/dataforge-ai/forge)",
			TimeoutSeconds: 30,
		},
		JobDefaults: jobDefaults,
	}
}

// ToProviderConfig converts the LLM section into a provider client
// config, resolving ${ENV_VAR} references in the API key.
func (c *Config) ToProviderConfig() providers.OpenRouterConfig {
	return providers.OpenRouterConfig{
		APIKey:        ResolveEnvVars(c.LLM.APIKey),
		BaseURL:       c.LLM.BaseURL,
		DefaultModel:  c.LLM.Model,
		Timeout:       time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		RPS:           c.LLM.RateLimit,
		MaxConcurrent: c.LLM.MaxConcurrency,
		MaxRetries:    c.LLM.MaxRetries,
		Pricing:       c.LLM.Pricing,
	}
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// cfgFile may be empty, in which case config.yaml is looked up in the
// working directory and $HOME/.forge.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	cm.v.SetDefault("data_dir", defaults.DataDir)
	cm.v.SetDefault("database_path", defaults.DatabasePath)
	cm.v.SetDefault("server", defaults.Server)
	cm.v.SetDefault("llm", defaults.LLM)
	cm.v.SetDefault("scraper", defaults.Scraper)
	cm.v.SetDefault("job_defaults", defaults.JobDefaults)

	// Environment variables with FORGE_ prefix
	cm.v.SetEnvPrefix("FORGE")
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.forge")
	}

	// Config file is optional; defaults plus env cover the rest.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.JobDefaults.Normalize()
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}
