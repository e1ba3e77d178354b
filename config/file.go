package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "propfinder.yaml"

// HistoryConfig selects the history backend.
type HistoryConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
	Key  string `yaml:"key"`
}

// CrawlConfig controls pagination and pacing.
type CrawlConfig struct {
	MinDelay   time.Duration `yaml:"min_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxPages   int           `yaml:"max_pages"`
}

// FetcherConfig selects how pages are downloaded.
type FetcherConfig struct {
	Type      string        `yaml:"type"` // "http" or "headless"
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// NotifierConfig selects where notifications go.
type NotifierConfig struct {
	Type   string `yaml:"type"` // "telegram" or "log"
	APIURL string `yaml:"api_url"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// FileConfig represents the structure of propfinder.yaml.
type FileConfig struct {
	SitesFile       string         `yaml:"sites_file"`
	CredentialsFile string         `yaml:"credentials_file"`
	Queries         []string       `yaml:"queries"`
	History         HistoryConfig  `yaml:"history"`
	Crawl           CrawlConfig    `yaml:"crawl"`
	Fetcher         FetcherConfig  `yaml:"fetcher"`
	Notifier        NotifierConfig `yaml:"notifier"`
	Metrics         MetricsConfig  `yaml:"metrics"`
	Log             LogConfig      `yaml:"log"`
}

// Default returns the configuration used for any field the file leaves out.
func Default() *FileConfig {
	return &FileConfig{
		SitesFile:       "sites.json",
		CredentialsFile: "telegram_bot_keys.json",
		History: HistoryConfig{
			Type: "file",
			DSN:  "seen.txt",
		},
		Crawl: CrawlConfig{
			MinDelay:   1 * time.Second,
			MaxDelay:   5 * time.Second,
			RetryDelay: 10 * time.Second,
			MaxPages:   20,
		},
		Fetcher: FetcherConfig{
			Type:    "http",
			Timeout: 30 * time.Second,
		},
		Notifier: NotifierConfig{
			Type:   "telegram",
			APIURL: "https://api.telegram.org",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path on top of Default and validates it.
// A missing or unparseable file is a *ConfigLoadError.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}

	return cfg, nil
}

// Validate checks the values that cannot be defaulted. Queries may be
// empty; `run` can take them from the command line instead.
func (c *FileConfig) Validate() error {
	var errs []error

	if c.Crawl.MinDelay < 0 || c.Crawl.MaxDelay < c.Crawl.MinDelay {
		errs = append(errs, fmt.Errorf("crawl delays must satisfy 0 <= min_delay (%v) <= max_delay (%v)",
			c.Crawl.MinDelay, c.Crawl.MaxDelay))
	}
	if c.Crawl.RetryDelay < 0 {
		errs = append(errs, errors.New("crawl.retry_delay must not be negative"))
	}
	if c.Crawl.MaxPages < 1 {
		errs = append(errs, errors.New("crawl.max_pages must be at least 1"))
	}

	switch c.History.Type {
	case "file", "sqlite", "bolt", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown history.type: %q", c.History.Type))
	}
	if c.History.DSN == "" {
		errs = append(errs, errors.New("history.dsn is required"))
	}

	switch c.Fetcher.Type {
	case "http", "headless":
	default:
		errs = append(errs, fmt.Errorf("unknown fetcher.type: %q", c.Fetcher.Type))
	}

	switch c.Notifier.Type {
	case "telegram", "log":
	default:
		errs = append(errs, fmt.Errorf("unknown notifier.type: %q", c.Notifier.Type))
	}

	return errors.Join(errs...)
}
