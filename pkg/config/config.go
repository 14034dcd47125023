package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Moltbook scraper
type Config struct {
	// API settings for moltbook.com
	API APIConfig `yaml:"api" json:"api"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Retry behaviour for transient failures
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Scrape behaviour
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig holds Moltbook API settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"-" json:"-"` // never serialized
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds sliding-window throttle settings
type RateLimitConfig struct {
	Window                 time.Duration `yaml:"window" json:"window"`
	MaxRequests            int           `yaml:"max_requests" json:"max_requests"`
	Threshold              int           `yaml:"threshold" json:"threshold"`
	CooldownBase           time.Duration `yaml:"cooldown_base" json:"cooldown_base"`
	CooldownCap            time.Duration `yaml:"cooldown_cap" json:"cooldown_cap"`
	MaxConsecutiveThrottle int           `yaml:"max_consecutive_throttle" json:"max_consecutive_throttle"`
}

// RetryConfig holds backoff settings for transient errors
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ScrapeConfig holds pagination and validation settings
type ScrapeConfig struct {
	PageSize            int     `yaml:"page_size" json:"page_size"`
	ValidationTolerance float64 `yaml:"validation_tolerance" json:"validation_tolerance"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
// Rate limit numbers mirror the platform's documented quota of 100
// requests per rolling minute, throttled proactively at 90.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://www.moltbook.com/api/v1",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window:                 time.Minute,
			MaxRequests:            100,
			Threshold:              90,
			CooldownBase:           30 * time.Second,
			CooldownCap:            5 * time.Minute,
			MaxConsecutiveThrottle: 10,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			BaseDelay:    2 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Database: DatabaseConfig{
			Path: "moltbook.db",
		},
		Scrape: ScrapeConfig{
			PageSize:            100,
			ValidationTolerance: 0.2,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if apiKey := os.Getenv("MOLTBOOK_API_KEY"); apiKey != "" {
		c.API.APIKey = apiKey
	}
	if baseURL := os.Getenv("MOLTBOOK_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}
	if dbPath := os.Getenv("MOLTBOOK_DB"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if rpm := os.Getenv("MOLTBOOK_MAX_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.MaxRequests = val
		}
	}
	if pageSize := os.Getenv("MOLTBOOK_PAGE_SIZE"); pageSize != "" {
		if val, err := strconv.Atoi(pageSize); err == nil && val > 0 {
			c.Scrape.PageSize = val
		}
	}
	if logLevel := os.Getenv("MOLTBOOK_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("MOLTBOOK_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".moltscraper.yaml",
		".moltscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "moltscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "moltscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".moltscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}

	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("max requests per window must be positive"))
	}
	if c.RateLimit.Threshold <= 0 || c.RateLimit.Threshold > c.RateLimit.MaxRequests {
		errs = append(errs, errors.New("rate limit threshold must be between 1 and max requests"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.MaxConsecutiveThrottle <= 0 {
		errs = append(errs, errors.New("max consecutive throttle count must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.BaseDelay <= 0 {
		errs = append(errs, errors.New("retry base delay must be positive"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Scrape.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Scrape.ValidationTolerance < 0 || c.Scrape.ValidationTolerance > 1 {
		errs = append(errs, errors.New("validation tolerance must be between 0 and 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if dbPath, ok := flags["db"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Scrape.PageSize = pageSize
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".moltscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
