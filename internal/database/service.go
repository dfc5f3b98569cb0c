/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.AuctionStore.
var _ store.AuctionStore = (*Service)(nil)

// dbtx is the statement surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Service is the SQLite-backed auction store. A Service is either pool-backed
// (the normal case) or a transaction-bound view created by InTransaction, in
// which case every statement runs on that one transaction.
type Service struct {
	db   dbtx
	pool *sql.DB // nil when transaction-bound
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, pool: db}
	if err := service.initSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Auction store initialized successfully")
	return service, nil
}

// NewServiceWithDB wraps an already-open database handle. Used by setup and
// tests so the auction store, token ledger, and event log share one file.
func NewServiceWithDB(db *sql.DB) (*Service, error) {
	service := &Service{db: db, pool: db}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return service, nil
}

// DB exposes the underlying handle for collaborators sharing the same file.
func (s *Service) DB() *sql.DB {
	return s.pool
}

func (s *Service) Close() {
	if s.pool == nil {
		return
	}
	if err := s.pool.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// InTransaction runs fn against a transaction-bound view of the store. On a
// view that is already bound, fn simply joins the open transaction; commit
// and rollback then belong to the outermost caller.
func (s *Service) InTransaction(ctx context.Context, fn func(tx *sql.Tx, txStore store.AuctionStore) error) error {
	if tx, ok := s.db.(*sql.Tx); ok {
		return fn(tx, s)
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx, &Service{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// runTx executes fn inside a transaction, reusing the bound one when the
// service is already transaction-scoped.
func (s *Service) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if tx, ok := s.db.(*sql.Tx); ok {
		return fn(tx)
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema() error {
	schema := `
	-- Auctions: immutable params + mutable derived state. Never deleted.
	CREATE TABLE IF NOT EXISTS auctions (
		id INTEGER PRIMARY KEY,
		item_name TEXT NOT NULL,
		image TEXT NOT NULL,
		max_bid_amount TEXT NOT NULL,
		total_supply TEXT NOT NULL,
		start_price TEXT NOT NULL,
		floor_price TEXT NOT NULL,
		decay_interval_micros INTEGER NOT NULL,
		decay_amount TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL,
		creator TEXT NOT NULL,
		payment_symbol TEXT NOT NULL,
		payment_app_id TEXT NOT NULL,
		payout_symbol TEXT NOT NULL,
		payout_app_id TEXT NOT NULL,
		current_price TEXT NOT NULL,
		last_price_update INTEGER NOT NULL,
		sold TEXT NOT NULL,
		clearing_price TEXT,
		status TEXT NOT NULL,
		settled_at INTEGER,
		bids_pruned INTEGER NOT NULL DEFAULT 0,
		total_bids INTEGER NOT NULL DEFAULT 0,
		total_bidders INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_auctions_status ON auctions(status);
	CREATE INDEX IF NOT EXISTS idx_auctions_creator ON auctions(creator);

	-- Bid records, append-only until pruning. Composite (bidder, auction_id)
	-- is the lookup key for claims.
	CREATE TABLE IF NOT EXISTS bids (
		bid_id INTEGER PRIMARY KEY,
		auction_id INTEGER NOT NULL REFERENCES auctions(id),
		bidder TEXT NOT NULL,
		quantity TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		bid_time INTEGER NOT NULL,
		claimed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_bids_bidder_auction ON bids(bidder, auction_id);
	CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);
	CREATE INDEX IF NOT EXISTS idx_bids_auction_claimed ON bids(auction_id, claimed);

	-- Cumulative accepted quantity per (auction, bidder). Never decremented.
	CREATE TABLE IF NOT EXISTS user_totals (
		auction_id INTEGER NOT NULL,
		bidder TEXT NOT NULL,
		quantity TEXT NOT NULL,
		PRIMARY KEY (auction_id, bidder)
	);

	-- Monotonic id registers, read-then-incremented once per creation event.
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}
