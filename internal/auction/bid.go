package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/pricing"
	"fairdrop-auction-go/internal/store"
	"fairdrop-auction-go/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// bidValidation carries everything the execution phase needs once a bid has
// passed all fast-fail checks.
type bidValidation struct {
	bidder       string
	accepted     decimal.Decimal
	amountPaid   decimal.Decimal
	currentPrice decimal.Decimal
	shouldSettle bool
}

// PlaceBid runs the full bid pipeline: price → lifecycle/time/supply checks →
// payment collection → state mutation → settlement on exhaustion.
//
// A nil receipt with a nil error means the bid was rejected as a business
// outcome; the reason is on the event stream. Errors are fatal and leave no
// partial state behind: payment collection is ordered strictly before any
// persistent mutation.
func (e *Engine) PlaceBid(ctx context.Context, bidder string, auctionId uint64, quantity decimal.Decimal) (*models.BidReceipt, error) {
	if bidder == "" {
		return nil, ErrUnauthenticated
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}

	now := e.now()
	currentPrice := pricing.CurrentPrice(
		auction.Params.StartPrice,
		auction.Params.FloorPrice,
		auction.Params.DecayAmount,
		auction.Params.DecayInterval,
		auction.Params.StartTime,
		now,
	)

	// Lazy expiry settlement: an expired Active auction settles on this
	// interaction, at the price just computed, and the bid is rejected.
	// The status flip and both events commit as one unit.
	if now.After(auction.Params.EndTime) && auction.Status == models.StatusActive {
		auction.ClearingPrice = &currentPrice
		reason := fmt.Sprintf("Auction expired at: %s", auction.Params.EndTime.Format(time.RFC3339))
		err := e.store.InTransaction(ctx, func(tx *sql.Tx, txStore store.AuctionStore) error {
			events := e.events.Bound(tx)
			if err := e.settle(ctx, txStore, events, auction, now); err != nil {
				return err
			}
			return e.emitRejection(ctx, events, auctionId, bidder, reason)
		})
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	window := checkBidWindow(auction.Status, auction.Params.StartTime, auction.Params.EndTime, now)
	if window.rejected() {
		if err := e.emitRejection(ctx, e.events, auctionId, bidder, window.reason); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if window.activate {
		auction.Status = models.StatusActive
		if err := e.store.UpdateAuction(ctx, auction); err != nil {
			return nil, err
		}
	}

	remaining := auction.Remaining()
	if remaining.IsZero() {
		if err := e.emitRejection(ctx, e.events, auctionId, bidder, "Supply exhausted"); err != nil {
			return nil, err
		}
		return nil, nil
	}

	accepted := quantity
	if accepted.GreaterThan(remaining) {
		accepted = remaining
	}
	amountPaid := currentPrice.Mul(accepted)

	validation := bidValidation{
		bidder:       bidder,
		accepted:     accepted,
		amountPaid:   amountPaid,
		currentPrice: currentPrice,
		shouldSettle: auction.Sold.Add(accepted).GreaterThanOrEqual(auction.Params.TotalSupply),
	}

	// Collect payment into escrow before any persistent mutation.
	if amountPaid.IsPositive() {
		err := e.ledger.Transfer(ctx, auction.Params.PaymentToken, bidder, amountPaid, ledger.EscrowOwner)
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			reason := fmt.Sprintf("Payment failed: %s. Ensure you have sufficient token balance on the auction authority", err)
			if err := e.emitRejection(ctx, e.events, auctionId, bidder, reason); err != nil {
				return nil, err
			}
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("payment collection failed: %w", err)
		}
	}

	// Everything after collection is one transaction: the bid row, the user
	// total, the auction update, the events, and settlement on exhaustion
	// all commit or roll back together.
	var bid *models.BidRecord
	err = e.store.InTransaction(ctx, func(tx *sql.Tx, txStore store.AuctionStore) error {
		events := e.events.Bound(tx)
		var err error
		bid, err = e.executeBid(ctx, txStore, events, auction, validation, now)
		if err != nil {
			return err
		}
		if validation.shouldSettle {
			auction.ClearingPrice = &validation.currentPrice
			return e.settle(ctx, txStore, events, auction, now)
		}
		return nil
	})
	if err != nil {
		e.returnPayment(ctx, auction, bidder, amountPaid)
		return nil, err
	}

	return &models.BidReceipt{
		AuctionId:  auctionId,
		BidId:      bid.BidId,
		Bidder:     bid.Bidder,
		Quantity:   bid.Quantity,
		AmountPaid: bid.AmountPaid,
		Timestamp:  bid.Timestamp,
	}, nil
}

// returnPayment undoes a collected payment after the bid transaction rolled
// back. A failure here has nothing left to roll back into, so it is logged
// with the amounts needed for manual reconciliation.
func (e *Engine) returnPayment(ctx context.Context, auction *models.Auction, bidder string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if err := e.ledger.Transfer(ctx, auction.Params.PaymentToken, ledger.EscrowOwner, amount, bidder); err != nil {
		zap.L().Error("Failed to return payment after bid failure",
			zap.Uint64("auction_id", auction.Id),
			zap.String("bidder", bidder),
			zap.String("token", auction.Params.PaymentToken.Symbol),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}

// executeBid records the accepted bid and updates the auction's derived
// state. Payment has already been collected; this path must not soft-fail.
// It always runs on the transaction-bound store and log views.
func (e *Engine) executeBid(ctx context.Context, st store.AuctionStore, events *stream.Log, auction *models.Auction, validation bidValidation, now time.Time) (*models.BidRecord, error) {
	bidId, err := st.NextBidId(ctx)
	if err != nil {
		return nil, err
	}

	bid := &models.BidRecord{
		BidId:      bidId,
		AuctionId:  auction.Id,
		Bidder:     validation.bidder,
		Quantity:   validation.accepted,
		AmountPaid: validation.amountPaid,
		Timestamp:  now,
		Claimed:    false,
	}
	if err := st.AppendBid(ctx, bid); err != nil {
		return nil, err
	}

	priorTotal, err := st.UserTotal(ctx, auction.Id, validation.bidder)
	if err != nil {
		return nil, err
	}
	if err := st.AddUserTotal(ctx, auction.Id, validation.bidder, validation.accepted); err != nil {
		return nil, err
	}

	auction.Sold = auction.Sold.Add(validation.accepted)
	auction.CurrentPrice = validation.currentPrice
	auction.LastPriceUpdate = now
	auction.TotalBids++
	if priorTotal.IsZero() {
		auction.TotalBidders++
	}
	if err := st.UpdateAuction(ctx, auction); err != nil {
		return nil, err
	}

	if _, err := events.Emit(ctx, stream.KindPaymentReceived, stream.PaymentReceived{
		AuctionId: auction.Id,
		Bidder:    bid.Bidder,
		Amount:    bid.AmountPaid,
		BidId:     bid.BidId,
	}); err != nil {
		return nil, err
	}
	if _, err := events.Emit(ctx, stream.KindBidAccepted, stream.BidAccepted{
		AuctionId:  auction.Id,
		BidId:      bid.BidId,
		Bidder:     bid.Bidder,
		Quantity:   bid.Quantity,
		AmountPaid: bid.AmountPaid,
		TotalSold:  auction.Sold,
		Remaining:  auction.Remaining(),
	}); err != nil {
		return nil, err
	}

	zap.L().Info("Bid accepted",
		zap.Uint64("auction_id", auction.Id),
		zap.Uint64("bid_id", bid.BidId),
		zap.String("bidder", bid.Bidder),
		zap.String("quantity", bid.Quantity.String()),
		zap.String("amount_paid", bid.AmountPaid.String()))
	return bid, nil
}
