package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AppendBid persists an accepted bid. Bid rows are append-only until pruning;
// only the claimed flag is mutated afterwards.
func (s *Service) AppendBid(ctx context.Context, bid *models.BidRecord) error {
	_, err := s.db.ExecContext(ctx, queryInsertBid,
		bid.BidId, bid.AuctionId, bid.Bidder, bid.Quantity.String(),
		bid.AmountPaid.String(), bid.Timestamp.UnixMicro(), boolToInt(bid.Claimed))
	if err != nil {
		return fmt.Errorf("failed to insert bid %d: %w", bid.BidId, err)
	}
	return nil
}

// UserBids returns the ordered bid list for one (bidder, auction) pair.
func (s *Service) UserBids(ctx context.Context, bidder string, auctionId uint64) ([]models.BidRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetUserBids, bidder, auctionId)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bids: %w", err)
	}
	return scanBids(rows)
}

// AuctionBids pages through an auction's full bid history, oldest first.
func (s *Service) AuctionBids(ctx context.Context, auctionId uint64, limit, offset int) ([]models.BidRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAuctionBids, auctionId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction bids: %w", err)
	}
	return scanBids(rows)
}

func scanBids(rows *sql.Rows) ([]models.BidRecord, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var bids []models.BidRecord
	for rows.Next() {
		var (
			bid           models.BidRecord
			quantity      string
			amountPaid    string
			bidTimeMicros int64
			claimed       int
		)
		err := rows.Scan(&bid.BidId, &bid.AuctionId, &bid.Bidder, &quantity,
			&amountPaid, &bidTimeMicros, &claimed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		if bid.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("failed to parse bid quantity %q: %w", quantity, err)
		}
		if bid.AmountPaid, err = decimal.NewFromString(amountPaid); err != nil {
			return nil, fmt.Errorf("failed to parse bid amount %q: %w", amountPaid, err)
		}
		bid.Timestamp = microsToTime(bidTimeMicros)
		bid.Claimed = claimed != 0
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

// MarkBidsClaimed flips the claimed flag on the given bids as one atomic unit.
func (s *Service) MarkBidsClaimed(ctx context.Context, bidder string, auctionId uint64, bidIds []uint64) error {
	if len(bidIds) == 0 {
		return nil
	}

	return s.runTx(ctx, func(tx *sql.Tx) error {
		for _, bidId := range bidIds {
			result, err := tx.ExecContext(ctx, queryMarkBidClaimed, bidId, bidder, auctionId)
			if err != nil {
				return fmt.Errorf("failed to mark bid %d claimed: %w", bidId, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check rows affected: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("%w: bid %d for %s on auction %d", store.ErrBidNotFound, bidId, bidder, auctionId)
			}
		}
		return nil
	})
}

// PruneClaimedBids removes claimed records for an auction, keeping unclaimed
// ones (retention tier 1). Returns the number of rows removed.
func (s *Service) PruneClaimedBids(ctx context.Context, auctionId uint64) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryPruneClaimedBids, auctionId)
	if err != nil {
		return 0, fmt.Errorf("failed to prune claimed bids: %w", err)
	}
	return result.RowsAffected()
}

// PruneAllBids removes every bid record for an auction regardless of claimed
// state (retention tier 2).
func (s *Service) PruneAllBids(ctx context.Context, auctionId uint64) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryPruneAllBids, auctionId)
	if err != nil {
		return 0, fmt.Errorf("failed to prune bids: %w", err)
	}
	return result.RowsAffected()
}

// AddUserTotal accumulates accepted quantity for one (auction, bidder) pair.
func (s *Service) AddUserTotal(ctx context.Context, auctionId uint64, bidder string, quantity decimal.Decimal) error {
	current, err := s.UserTotal(ctx, auctionId, bidder)
	if err != nil {
		return err
	}
	total := current.Add(quantity)
	if _, err := s.db.ExecContext(ctx, queryUpsertUserTotal, auctionId, bidder, total.String()); err != nil {
		return fmt.Errorf("failed to update user total: %w", err)
	}
	return nil
}

// UserTotal returns the cumulative accepted quantity, zero if no bids yet.
func (s *Service) UserTotal(ctx context.Context, auctionId uint64, bidder string) (decimal.Decimal, error) {
	var quantity string
	err := s.db.QueryRowContext(ctx, queryGetUserTotal, auctionId, bidder).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get user total: %w", err)
	}
	total, err := decimal.NewFromString(quantity)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse user total %q: %w", quantity, err)
	}
	return total, nil
}
