package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP/websocket listen address
	ListenAddr string

	// Account configuration
	StartingBalance decimal.Decimal // balance granted on first login
	BalanceCap      decimal.Decimal // upper bound any balance may reach

	// NATS configuration; empty URL disables external publishing
	NatsURL string

	// Environment
	Environment string // "development", "production", or "test"
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
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		NatsURL:     os.Getenv("NATS_URL"),
		Environment: os.Getenv("ENVIRONMENT"),

		// Account defaults
		StartingBalance: decimal.RequireFromString("1000.00"),
		BalanceCap:      decimal.RequireFromString("1000000.00"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE %q: %w", balance, err)
		}
		config.StartingBalance = parsed
	}
	if cap := os.Getenv("BALANCE_CAP"); cap != "" {
		parsed, err := decimal.NewFromString(cap)
		if err != nil {
			return nil, fmt.Errorf("invalid BALANCE_CAP %q: %w", cap, err)
		}
		config.BalanceCap = parsed
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.StartingBalance.IsNegative() {
		return nil, fmt.Errorf("STARTING_BALANCE must not be negative")
	}
	if config.BalanceCap.LessThan(config.StartingBalance) {
		return nil, fmt.Errorf("BALANCE_CAP must be at least STARTING_BALANCE")
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
