package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"

	"go.uber.org/zap"
)

var (
	ErrNotSettled = errors.New("auction is not settled")
	ErrTooRecent  = errors.New("auction settled too recently to prune")
)

// PruneResult reports what a prune pass removed.
type PruneResult struct {
	AuctionId   uint64
	BidsDeleted int64
	PrunedAll   bool
}

// PruneSettledAuction removes historical bid records once the auction has
// aged past the retention window. Two tiers: past the minimum age only
// claimed bids are dropped, keeping unclaimed entitlements intact; past the
// prune-all age every remaining record goes and the auction is flagged so
// later claims and queries know the history is gone.
func (e *Engine) PruneSettledAuction(ctx context.Context, auctionId uint64) (*PruneResult, error) {
	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.StatusSettled || auction.SettledAt == nil {
		return nil, fmt.Errorf("%w: auction %d has status %s", ErrNotSettled, auctionId, auction.Status)
	}

	age := e.now().Sub(*auction.SettledAt)
	if age < e.retention.MinAge {
		return nil, fmt.Errorf("%w: auction %d settled %s ago, minimum age is %s",
			ErrTooRecent, auctionId, age, e.retention.MinAge)
	}

	result := &PruneResult{AuctionId: auctionId}
	if age >= e.retention.PruneAllAge {
		// The deletes and the bids_pruned flag commit together, so the
		// history can never vanish without the auction saying so.
		err := e.store.InTransaction(ctx, func(_ *sql.Tx, txStore store.AuctionStore) error {
			deleted, err := txStore.PruneAllBids(ctx, auctionId)
			if err != nil {
				return err
			}
			auction.BidsPruned = true
			if err := txStore.UpdateAuction(ctx, auction); err != nil {
				return err
			}
			result.BidsDeleted = deleted
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.PrunedAll = true
	} else {
		deleted, err := e.store.PruneClaimedBids(ctx, auctionId)
		if err != nil {
			return nil, err
		}
		result.BidsDeleted = deleted
	}

	zap.L().Info("Pruned auction bid history",
		zap.Uint64("auction_id", auctionId),
		zap.Int64("bids_deleted", result.BidsDeleted),
		zap.Bool("pruned_all", result.PrunedAll))
	return result, nil
}
