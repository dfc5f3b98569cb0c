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

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fairdrop-auction-go/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy TokenLedger.
var _ TokenLedger = (*Service)(nil)

// Service is the SQLite-backed token ledger: per-(token, owner) balance rows
// with optimistic version locking plus an immutable transfers audit trail.
type Service struct {
	db *sql.DB
}

// NewService wraps an open database handle and initializes the ledger schema.
// The handle is shared with the auction store; the wrapper never closes it.
func NewService(db *sql.DB) (*Service, error) {
	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize ledger schema: %w", err)
	}
	return service, nil
}

func (s *Service) initSchema() error {
	schema := `
	-- Token balances (hot data)
	CREATE TABLE IF NOT EXISTS token_accounts (
		id TEXT PRIMARY KEY,
		token_app_id TEXT NOT NULL,
		owner TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(token_app_id, owner)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_token_accounts_token_owner ON token_accounts(token_app_id, owner);

	-- Transfer audit trail (cold data)
	CREATE TABLE IF NOT EXISTS token_transfers (
		id TEXT PRIMARY KEY,
		token_app_id TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_token_transfers_source ON token_transfers(token_app_id, source);
	CREATE INDEX IF NOT EXISTS idx_token_transfers_destination ON token_transfers(token_app_id, destination);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close is a no-op: the database handle is owned by the auction store.
func (s *Service) Close() {}

const (
	queryGetTokenAccount = `
		SELECT id, balance, version
		FROM token_accounts
		WHERE token_app_id = ? AND owner = ?`

	queryInsertTokenAccount = `
		INSERT INTO token_accounts (id, token_app_id, owner, balance, version)
		VALUES (?, ?, ?, ?, 1)`

	queryUpdateTokenAccount = `
		UPDATE token_accounts
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE token_app_id = ? AND owner = ? AND version = ?`

	queryInsertTokenTransfer = `
		INSERT INTO token_transfers (id, token_app_id, source, destination, amount)
		VALUES (?, ?, ?, ?, ?)`
)

// mintSource is the synthetic source account recorded for minted funds.
const mintSource = "world"

// Transfer atomically debits owner and credits destination. The debit fails
// fast on insufficient balance, before any row is written.
func (s *Service) Transfer(ctx context.Context, token models.AssetHandle, owner string, amount decimal.Decimal, destination string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.debit(ctx, tx, token, owner, amount); err != nil {
		return err
	}
	if err := s.credit(ctx, tx, token, destination, amount); err != nil {
		return err
	}

	transferId := uuid.New().String()
	if _, err := tx.ExecContext(ctx, queryInsertTokenTransfer,
		transferId, token.AppId, owner, destination, amount.String()); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	zap.L().Info("Token transfer completed",
		zap.String("transfer_id", transferId),
		zap.String("token", token.Symbol),
		zap.String("source", owner),
		zap.String("destination", destination),
		zap.String("amount", amount.String()))
	return nil
}

// Mint credits owner from the synthetic world account.
func (s *Service) Mint(ctx context.Context, token models.AssetHandle, owner string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.credit(ctx, tx, token, owner, amount); err != nil {
		return err
	}

	transferId := uuid.New().String()
	if _, err := tx.ExecContext(ctx, queryInsertTokenTransfer,
		transferId, token.AppId, mintSource, owner, amount.String()); err != nil {
		return fmt.Errorf("failed to record mint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mint: %w", err)
	}

	zap.L().Info("Tokens minted",
		zap.String("token", token.Symbol),
		zap.String("owner", owner),
		zap.String("amount", amount.String()))
	return nil
}

func (s *Service) BalanceOf(ctx context.Context, token models.AssetHandle, owner string) (decimal.Decimal, error) {
	var (
		accountId  string
		balanceStr string
		version    int64
	)
	err := s.db.QueryRowContext(ctx, queryGetTokenAccount, token.AppId, owner).
		Scan(&accountId, &balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	return balance, nil
}

func (s *Service) debit(ctx context.Context, tx *sql.Tx, token models.AssetHandle, owner string, amount decimal.Decimal) error {
	var (
		accountId  string
		balanceStr string
		version    int64
	)
	err := tx.QueryRowContext(ctx, queryGetTokenAccount, token.AppId, owner).
		Scan(&accountId, &balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s has no %s account", ErrInsufficientBalance, owner, token.Symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to get account for debit: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	if balance.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientBalance,
			owner, balance.String(), token.Symbol, amount.String())
	}

	newBalance := balance.Sub(amount)
	result, err := tx.ExecContext(ctx, queryUpdateTokenAccount,
		newBalance.String(), token.AppId, owner, version)
	if err != nil {
		return fmt.Errorf("failed to debit account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("debit of %s from %s lost a version race", amount.String(), owner)
	}
	return nil
}

func (s *Service) credit(ctx context.Context, tx *sql.Tx, token models.AssetHandle, owner string, amount decimal.Decimal) error {
	var (
		accountId  string
		balanceStr string
		version    int64
	)
	err := tx.QueryRowContext(ctx, queryGetTokenAccount, token.AppId, owner).
		Scan(&accountId, &balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		if _, err := tx.ExecContext(ctx, queryInsertTokenAccount,
			accountId, token.AppId, owner, amount.String()); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get account for credit: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	newBalance := balance.Add(amount)

	result, err := tx.ExecContext(ctx, queryUpdateTokenAccount,
		newBalance.String(), token.AppId, owner, version)
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("credit of %s to %s lost a version race", amount.String(), owner)
	}
	return nil
}
