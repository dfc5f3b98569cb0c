package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Ledger    LedgerConfig
	Retention RetentionConfig
	Watch     WatchConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path               string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	PingTimeout        time.Duration
	CreateDemoAccounts bool
}

// LedgerConfig selects and configures the token ledger backend.
type LedgerConfig struct {
	Backend    string // "sqlite" or "formance"
	TokensFile string
	Formance   FormanceConfig
}

// FormanceConfig holds Formance Stack connection settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// RetentionConfig holds the two-tier bid pruning thresholds.
type RetentionConfig struct {
	MinAge      time.Duration // settled auctions younger than this reject pruning
	PruneAllAge time.Duration // age at which all bids go, claimed or not
}

// WatchConfig holds event stream tailing settings
type WatchConfig struct {
	PollingInterval time.Duration
}
