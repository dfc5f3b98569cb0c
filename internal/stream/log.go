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

package stream

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// dbtx is the statement surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Log is the append-only, strictly-ordered outbound event queue. The engine's
// contract is emit exactly once, in commit order; consumers are responsible
// for their own idempotent replay.
type Log struct {
	db dbtx
}

// NewLog wraps an open database handle and initializes the log schema.
func NewLog(db *sql.DB) (*Log, error) {
	log := &Log{db: db}
	if err := log.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize event log schema: %w", err)
	}
	return log, nil
}

// Bound returns a view of the log that writes through tx, so emits commit or
// roll back together with the caller's state mutations. The log and the
// auction store share one database file, which is what makes this possible.
func (l *Log) Bound(tx *sql.Tx) *Log {
	return &Log{db: tx}
}

func (l *Log) initSchema() error {
	schema := `
	-- Ordered event log. idx is the replay cursor; rows are never updated.
	CREATE TABLE IF NOT EXISTS events (
		idx INTEGER PRIMARY KEY AUTOINCREMENT,
		stream TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload BLOB NOT NULL,
		emitted_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream, idx);

	-- Remote chains subscribed to the auction stream.
	CREATE TABLE IF NOT EXISTS stream_subscriptions (
		chain_id TEXT PRIMARY KEY,
		subscribed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Emit appends one event to the stream and returns its index.
func (l *Log) Emit(ctx context.Context, kind Kind, payload any) (uint64, error) {
	encoded, err := cbor.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	result, err := l.db.ExecContext(ctx,
		`INSERT INTO events (stream, kind, payload, emitted_at) VALUES (?, ?, ?, ?)`,
		AuctionStream, string(kind), encoded, time.Now().UTC().UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to append %s event: %w", kind, err)
	}

	index, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event index: %w", err)
	}

	zap.L().Debug("Event emitted",
		zap.String("stream", AuctionStream),
		zap.String("kind", string(kind)),
		zap.Int64("index", index))
	return uint64(index), nil
}

// Replay invokes fn for every event with index > afterIndex, in order.
// Replay stops and returns the first error fn reports.
func (l *Log) Replay(ctx context.Context, afterIndex uint64, fn func(Event) error) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT idx, stream, kind, payload, emitted_at FROM events WHERE idx > ? ORDER BY idx`,
		afterIndex)
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var (
			event        Event
			kind         string
			emittedAtVal int64
		)
		if err := rows.Scan(&event.Index, &event.Stream, &kind, &event.Payload, &emittedAtVal); err != nil {
			return fmt.Errorf("failed to scan event: %w", err)
		}
		event.Kind = Kind(kind)
		event.EmittedAt = time.UnixMicro(emittedAtVal).UTC()
		if err := fn(event); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LastIndex returns the index of the newest event, zero if the log is empty.
func (l *Log) LastIndex(ctx context.Context) (uint64, error) {
	var index sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT MAX(idx) FROM events`).Scan(&index)
	if err != nil {
		return 0, fmt.Errorf("failed to read last event index: %w", err)
	}
	if !index.Valid {
		return 0, nil
	}
	return uint64(index.Int64), nil
}

// Subscribe registers a remote chain for the auction stream. Subscribing
// twice is a no-op.
func (l *Log) Subscribe(ctx context.Context, chainId string) error {
	if chainId == "" {
		return fmt.Errorf("chain id cannot be empty")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO stream_subscriptions (chain_id) VALUES (?)`, chainId)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", chainId, err)
	}
	return nil
}

// Unsubscribe removes a remote chain's registration. Unknown chains are a
// no-op.
func (l *Log) Unsubscribe(ctx context.Context, chainId string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM stream_subscriptions WHERE chain_id = ?`, chainId)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", chainId, err)
	}
	return nil
}

// Subscribers lists the registered remote chains.
func (l *Log) Subscribers(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT chain_id FROM stream_subscriptions ORDER BY chain_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var chains []string
	for rows.Next() {
		var chainId string
		if err := rows.Scan(&chainId); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		chains = append(chains, chainId)
	}
	return chains, rows.Err()
}
