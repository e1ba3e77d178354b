package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pevans/propfinder/config"
	"github.com/sirupsen/logrus"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig loads the config file with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file
// 3. Default values (lowest priority)
func loadConfig(path string) (*config.FileConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &config.ConfigLoadError{Path: path, Err: err}
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *config.FileConfig) {
	if val := os.Getenv("PROPFINDER_HISTORY_TYPE"); val != "" {
		cfg.History.Type = val
	}
	if val := os.Getenv("PROPFINDER_HISTORY_DSN"); val != "" {
		cfg.History.DSN = val
	}
	if val := os.Getenv("PROPFINDER_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
}

// mustLoadConfig is loadConfig for commands that cannot continue without
// one.
func mustLoadConfig(path string) *config.FileConfig {
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the process logger from the log section of the config.
func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(parsed)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q (must be text or json)", cfg.Format)
	}

	return log, nil
}

// truncate shortens s to n characters for table output
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
