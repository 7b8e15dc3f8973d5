package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Relay
	DBFile         string
	APIAddr        string
	AdminAddr      string
	SearchCacheTTL time.Duration
	HistorySize    int

	// Client
	Origin        string
	ReconnectStep time.Duration
	MaxReconnects int
	TypingIdle    time.Duration
}

func Load() (*Config, error) {
	var err error
	cfg := &Config{
		DBFile:    getEnv("WEBCHAT_DB", "webchat.db"),
		APIAddr:   getEnv("WEBCHAT_ADDR", ":8080"),
		AdminAddr: getEnv("WEBCHAT_ADMIN_ADDR", "localhost:8081"),
		Origin:    getEnv("WEBCHAT_ORIGIN", "http://localhost:8080"),
	}

	if cfg.SearchCacheTTL, err = time.ParseDuration(getEnv("WEBCHAT_SEARCH_CACHE_TTL", "30s")); err != nil {
		return nil, fmt.Errorf("WEBCHAT_SEARCH_CACHE_TTL: %w", err)
	}
	if cfg.ReconnectStep, err = time.ParseDuration(getEnv("WEBCHAT_RECONNECT_STEP", "3s")); err != nil {
		return nil, fmt.Errorf("WEBCHAT_RECONNECT_STEP: %w", err)
	}
	if cfg.TypingIdle, err = time.ParseDuration(getEnv("WEBCHAT_TYPING_IDLE", "1s")); err != nil {
		return nil, fmt.Errorf("WEBCHAT_TYPING_IDLE: %w", err)
	}
	if cfg.MaxReconnects, err = strconv.Atoi(getEnv("WEBCHAT_MAX_RECONNECTS", "5")); err != nil {
		return nil, fmt.Errorf("WEBCHAT_MAX_RECONNECTS: %w", err)
	}
	if cfg.HistorySize, err = strconv.Atoi(getEnv("WEBCHAT_HISTORY_SIZE", "200")); err != nil {
		return nil, fmt.Errorf("WEBCHAT_HISTORY_SIZE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBFile == "" {
		return fmt.Errorf("WEBCHAT_DB is required")
	}

	u, err := url.Parse(c.Origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("WEBCHAT_ORIGIN must be an http(s) URL, got %q", c.Origin)
	}

	if c.ReconnectStep <= 0 {
		return fmt.Errorf("WEBCHAT_RECONNECT_STEP must be greater than 0")
	}

	if c.MaxReconnects < 0 {
		return fmt.Errorf("WEBCHAT_MAX_RECONNECTS must not be negative")
	}

	if c.TypingIdle <= 0 {
		return fmt.Errorf("WEBCHAT_TYPING_IDLE must be greater than 0")
	}

	if c.SearchCacheTTL <= 0 {
		return fmt.Errorf("WEBCHAT_SEARCH_CACHE_TTL must be greater than 0")
	}

	if c.HistorySize <= 0 {
		return fmt.Errorf("WEBCHAT_HISTORY_SIZE must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
