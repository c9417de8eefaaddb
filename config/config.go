package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Match data providers
	OddsAPIURL      string // primary authenticated odds provider
	OddsAPIKey      string
	ScoreFeedURL    string // secondary scraped score feed
	ProviderTimeout time.Duration
	MatchMaxAge     time.Duration // staleness window for cached matches

	// Wagering
	StartingBalance int64         // points granted to a new account
	SettlePoll      time.Duration // how often active bets are checked for settlement

	// Observability
	MetricsAddr string

	// Environment: "development", "production" or "test"
	Environment string
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		OddsAPIURL:      os.Getenv("ODDS_API_URL"),
		OddsAPIKey:      os.Getenv("ODDS_API_KEY"),
		ScoreFeedURL:    os.Getenv("SCORE_FEED_URL"),
		ProviderTimeout: 10 * time.Second,
		MatchMaxAge:     5 * time.Minute,

		StartingBalance: 1000,
		SettlePoll:      time.Minute,

		MetricsAddr: os.Getenv("METRICS_ADDR"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsed, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsed
		}
	}
	if secs := os.Getenv("PROVIDER_TIMEOUT_SECONDS"); secs != "" {
		if parsed, err := strconv.Atoi(secs); err == nil && parsed > 0 {
			config.ProviderTimeout = time.Duration(parsed) * time.Second
		}
	}
	if secs := os.Getenv("MATCH_MAX_AGE_SECONDS"); secs != "" {
		if parsed, err := strconv.Atoi(secs); err == nil && parsed > 0 {
			config.MatchMaxAge = time.Duration(parsed) * time.Second
		}
	}
	if secs := os.Getenv("SETTLE_POLL_SECONDS"); secs != "" {
		if parsed, err := strconv.Atoi(secs); err == nil && parsed > 0 {
			config.SettlePoll = time.Duration(parsed) * time.Second
		}
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
