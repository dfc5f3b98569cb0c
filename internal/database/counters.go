package database

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	counterAuctionId = "next_auction_id"
	counterBidId     = "next_bid_id"
)

// nextCounterTx reads the named register and increments it, inside the
// caller's transaction. Counters are never reset or decremented.
func nextCounterTx(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	if _, err := tx.ExecContext(ctx, queryEnsureCounter, name); err != nil {
		return 0, fmt.Errorf("failed to ensure counter %s: %w", name, err)
	}

	var value uint64
	if err := tx.QueryRowContext(ctx, queryGetCounter, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, queryIncrementCounter, name); err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return value, nil
}

// NextBidId allocates the next global bid id.
func (s *Service) NextBidId(ctx context.Context) (uint64, error) {
	var bidId uint64
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var err error
		bidId, err = nextCounterTx(ctx, tx, counterBidId)
		return err
	})
	if err != nil {
		return 0, err
	}
	return bidId, nil
}
