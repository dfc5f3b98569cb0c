package auction

import (
	"context"
	"fmt"
	"time"

	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"
	"fairdrop-auction-go/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settlement is the per-claimant outcome at the uniform clearing price.
type Settlement struct {
	AuctionId         uint64
	Bidder            string
	AllocatedQuantity decimal.Decimal
	ClearingPrice     decimal.Decimal
	TotalCost         decimal.Decimal
	Refund            decimal.Decimal
}

// settle moves an auction to Settled: the clearing price must already be
// fixed by the caller (from the triggering bid's current price). The price
// is immutable from here on. The store and log views are parameters because
// settlement always runs inside the triggering bid's transaction.
func (e *Engine) settle(ctx context.Context, st store.AuctionStore, events *stream.Log, auction *models.Auction, now time.Time) error {
	if auction.ClearingPrice == nil {
		return fmt.Errorf("%w: auction %d", store.ErrClearingPriceNil, auction.Id)
	}

	settledAt := now.UTC()
	auction.Status = models.StatusSettled
	auction.SettledAt = &settledAt
	if err := st.UpdateAuction(ctx, auction); err != nil {
		return err
	}

	if _, err := events.Emit(ctx, stream.KindAuctionSettled, stream.AuctionSettled{
		AuctionId:     auction.Id,
		ClearingPrice: *auction.ClearingPrice,
		TotalBidders:  auction.TotalBidders,
		TotalSold:     auction.Sold,
	}); err != nil {
		return err
	}

	zap.L().Info("Auction settled",
		zap.Uint64("auction_id", auction.Id),
		zap.String("clearing_price", auction.ClearingPrice.String()),
		zap.String("total_sold", auction.Sold.String()),
		zap.Uint64("total_bidders", auction.TotalBidders))
	return nil
}

// ClaimSettlement pays out a bidder's allocation and refund at the clearing
// price. Idempotent: the discipline is mark-then-pay, so a repeated claim
// finds no unclaimed records and returns a nil settlement. Transfer failure
// after marking is fatal: escrow covers every claim by construction, so a
// failure there is an unexpected-state error, not a retryable outcome.
func (e *Engine) ClaimSettlement(ctx context.Context, claimant string, auctionId uint64) (*Settlement, error) {
	if claimant == "" {
		return nil, ErrUnauthenticated
	}

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	if auction.Status != models.StatusSettled {
		return nil, nil
	}
	if auction.ClearingPrice == nil {
		return nil, fmt.Errorf("%w: auction %d", store.ErrClearingPriceNil, auctionId)
	}
	clearingPrice := *auction.ClearingPrice

	bids, err := e.store.UserBids(ctx, claimant, auctionId)
	if err != nil {
		return nil, err
	}

	var (
		unclaimedIds  []uint64
		totalQuantity = decimal.Zero
		totalPaid     = decimal.Zero
	)
	for _, bid := range bids {
		if bid.Claimed {
			continue
		}
		unclaimedIds = append(unclaimedIds, bid.BidId)
		totalQuantity = totalQuantity.Add(bid.Quantity)
		totalPaid = totalPaid.Add(bid.AmountPaid)
	}
	if len(unclaimedIds) == 0 {
		return nil, nil
	}

	totalCost := clearingPrice.Mul(totalQuantity)
	// The price only decays between bid time and clearing, so cost can never
	// exceed what was paid; the clamp is a guard against bad data.
	refund := saturatingSub(totalPaid, totalCost)

	// Mark first, then pay. The marks are one atomic unit, so a second claim
	// can never pick up the same records.
	if err := e.store.MarkBidsClaimed(ctx, claimant, auctionId, unclaimedIds); err != nil {
		return nil, err
	}

	if refund.IsPositive() {
		if err := e.ledger.Transfer(ctx, auction.Params.PaymentToken, ledger.EscrowOwner, refund, claimant); err != nil {
			return nil, fmt.Errorf("unexpected state: escrow refund failed after claim mark: %w", err)
		}
		if _, err := e.events.Emit(ctx, stream.KindRefundIssued, stream.RefundIssued{
			AuctionId: auctionId,
			Bidder:    claimant,
			Refund:    refund,
		}); err != nil {
			return nil, err
		}
	}

	if totalQuantity.IsPositive() {
		if err := e.ledger.Transfer(ctx, auction.Params.PayoutToken, ledger.EscrowOwner, totalQuantity, claimant); err != nil {
			return nil, fmt.Errorf("unexpected state: payout transfer failed after claim mark: %w", err)
		}
	}

	settlement := &Settlement{
		AuctionId:         auctionId,
		Bidder:            claimant,
		AllocatedQuantity: totalQuantity,
		ClearingPrice:     clearingPrice,
		TotalCost:         totalCost,
		Refund:            refund,
	}
	if _, err := e.events.Emit(ctx, stream.KindSettlementClaimed, stream.SettlementClaimed{
		AuctionId:         auctionId,
		Bidder:            claimant,
		AllocatedQuantity: settlement.AllocatedQuantity,
		ClearingPrice:     settlement.ClearingPrice,
		TotalCost:         settlement.TotalCost,
		Refund:            settlement.Refund,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("Settlement claimed",
		zap.Uint64("auction_id", auctionId),
		zap.String("claimant", claimant),
		zap.String("allocated", settlement.AllocatedQuantity.String()),
		zap.String("refund", settlement.Refund.String()))
	return settlement, nil
}
