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

package auction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"
	"fairdrop-auction-go/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fatal errors. These abort the whole operation with no state change; they
// are distinct from business rejections, which succeed at the platform level
// and surface as BidRejected events instead.
var (
	ErrUnauthenticated = errors.New("caller must be authenticated")
	ErrNotCreator      = errors.New("only the creator can cancel the auction")
	ErrNotCancellable  = errors.New("only scheduled auctions can be cancelled")
	ErrInvalidParams   = errors.New("invalid auction parameters")
	ErrInvalidQuantity = errors.New("bid quantity must be positive")
)

// Engine is the auction authority: it owns auction state, the escrow account,
// and the outbound event stream, and processes the operations of one auction
// at a time. Prices are recomputed lazily at every operation; there are no
// background timers.
type Engine struct {
	store     store.AuctionStore
	ledger    ledger.TokenLedger
	events    *stream.Log
	tokens    *ledger.Registry
	retention models.RetentionConfig

	// now is the operation clock, swappable in tests.
	now func() time.Time
}

func NewEngine(auctionStore store.AuctionStore, tokenLedger ledger.TokenLedger, events *stream.Log, tokens *ledger.Registry, retention models.RetentionConfig) *Engine {
	return &Engine{
		store:     auctionStore,
		ledger:    tokenLedger,
		events:    events,
		tokens:    tokens,
		retention: retention,
		now:       time.Now,
	}
}

// CreateAuctionInput is the caller-supplied parameter set. Token handles
// arrive as raw application ids and are resolved against the registry here,
// at creation time, never at transfer time.
type CreateAuctionInput struct {
	ItemName        string
	Image           string
	MaxBidAmount    decimal.Decimal
	TotalSupply     decimal.Decimal
	StartPrice      decimal.Decimal
	FloorPrice      decimal.Decimal
	DecayInterval   time.Duration
	DecayAmount     decimal.Decimal
	StartTime       time.Time
	EndTime         time.Time
	PaymentTokenApp string
	PayoutTokenApp  string
}

// CreateAuction validates the parameters, allocates the next auction id, and
// emits the full parameter snapshot on the stream.
func (e *Engine) CreateAuction(ctx context.Context, caller string, input CreateAuctionInput) (uint64, error) {
	if caller == "" {
		return 0, ErrUnauthenticated
	}
	if err := validateInput(input); err != nil {
		return 0, err
	}

	paymentToken, err := e.tokens.Resolve(input.PaymentTokenApp)
	if err != nil {
		return 0, fmt.Errorf("payment token: %w", err)
	}
	payoutToken, err := e.tokens.Resolve(input.PayoutTokenApp)
	if err != nil {
		return 0, fmt.Errorf("payout token: %w", err)
	}

	params := models.AuctionParams{
		ItemName:      input.ItemName,
		Image:         input.Image,
		MaxBidAmount:  input.MaxBidAmount,
		TotalSupply:   input.TotalSupply,
		StartPrice:    input.StartPrice,
		FloorPrice:    input.FloorPrice,
		DecayInterval: input.DecayInterval,
		DecayAmount:   input.DecayAmount,
		StartTime:     input.StartTime.UTC(),
		EndTime:       input.EndTime.UTC(),
		Creator:       caller,
		PaymentToken:  paymentToken,
		PayoutToken:   payoutToken,
	}

	// The auction row and its AuctionCreated event commit as one unit; a
	// failure on either side leaves no trace of the other.
	auction := models.NewAuction(params, e.now())
	var auctionId uint64
	err = e.store.InTransaction(ctx, func(tx *sql.Tx, txStore store.AuctionStore) error {
		var err error
		auctionId, err = txStore.CreateAuction(ctx, auction)
		if err != nil {
			return err
		}
		_, err = e.events.Bound(tx).Emit(ctx, stream.KindAuctionCreated, stream.AuctionCreated{
			AuctionId:     auctionId,
			ItemName:      params.ItemName,
			Image:         params.Image,
			MaxBidAmount:  params.MaxBidAmount,
			TotalSupply:   params.TotalSupply,
			StartPrice:    params.StartPrice,
			FloorPrice:    params.FloorPrice,
			DecayInterval: params.DecayInterval.Microseconds(),
			DecayAmount:   params.DecayAmount,
			StartTime:     params.StartTime,
			EndTime:       params.EndTime,
			Creator:       params.Creator,
			PaymentToken:  params.PaymentToken.AppId,
			PayoutToken:   params.PayoutToken.AppId,
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return auctionId, nil
}

func validateInput(input CreateAuctionInput) error {
	if input.ItemName == "" {
		return fmt.Errorf("%w: item name cannot be empty", ErrInvalidParams)
	}
	if !input.TotalSupply.IsPositive() {
		return fmt.Errorf("%w: total supply must be positive", ErrInvalidParams)
	}
	// Intervals are stored at microsecond resolution; anything finer
	// truncates to zero and can never be allowed through.
	if input.DecayInterval < time.Microsecond {
		return fmt.Errorf("%w: decay interval must be at least one microsecond", ErrInvalidParams)
	}
	if input.DecayAmount.IsNegative() {
		return fmt.Errorf("%w: decay amount cannot be negative", ErrInvalidParams)
	}
	if input.FloorPrice.IsNegative() {
		return fmt.Errorf("%w: floor price cannot be negative", ErrInvalidParams)
	}
	if input.StartPrice.LessThan(input.FloorPrice) {
		return fmt.Errorf("%w: start price cannot be below floor price", ErrInvalidParams)
	}
	if !input.EndTime.After(input.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidParams)
	}
	return nil
}

// CancelAuction cancels a not-yet-started auction. Creator only.
func (e *Engine) CancelAuction(ctx context.Context, caller string, auctionId uint64) error {
	if caller == "" {
		return ErrUnauthenticated
	}

	auction, err := e.store.GetAuction(ctx, auctionId)
	if err != nil {
		return err
	}
	if auction.Params.Creator != caller {
		return fmt.Errorf("%w: auction %d belongs to %s", ErrNotCreator, auctionId, auction.Params.Creator)
	}
	if auction.Status != models.StatusScheduled {
		return fmt.Errorf("%w: auction %d is %s", ErrNotCancellable, auctionId, auction.Status)
	}

	auction.Status = models.StatusCancelled
	reason := fmt.Sprintf("Cancelled by creator before start_time (%s)", auction.Params.StartTime.Format(time.RFC3339))
	err = e.store.InTransaction(ctx, func(tx *sql.Tx, txStore store.AuctionStore) error {
		if err := txStore.UpdateAuction(ctx, auction); err != nil {
			return err
		}
		_, err := e.events.Bound(tx).Emit(ctx, stream.KindAuctionCancelled, stream.AuctionCancelled{
			AuctionId: auctionId,
			Reason:    reason,
		})
		return err
	})
	if err != nil {
		return err
	}

	zap.L().Info("Auction cancelled",
		zap.Uint64("auction_id", auctionId),
		zap.String("creator", caller))
	return nil
}

// Subscribe registers a remote chain for the auction event stream.
func (e *Engine) Subscribe(ctx context.Context, chainId string) error {
	return e.events.Subscribe(ctx, chainId)
}

// Unsubscribe removes a remote chain's stream registration.
func (e *Engine) Unsubscribe(ctx context.Context, chainId string) error {
	return e.events.Unsubscribe(ctx, chainId)
}

// emitRejection converts a business rejection into its event. The operation
// itself still succeeds; callers learn the outcome from the stream. The log
// is a parameter so transactional callers can pass a bound view.
func (e *Engine) emitRejection(ctx context.Context, events *stream.Log, auctionId uint64, bidder, reason string) error {
	_, err := events.Emit(ctx, stream.KindBidRejected, stream.BidRejected{
		AuctionId: auctionId,
		Bidder:    bidder,
		Reason:    reason,
	})
	if err != nil {
		return err
	}
	zap.L().Info("Bid rejected",
		zap.Uint64("auction_id", auctionId),
		zap.String("bidder", bidder),
		zap.String("reason", reason))
	return nil
}

// saturatingSub clamps at zero instead of going negative.
func saturatingSub(a, b decimal.Decimal) decimal.Decimal {
	diff := a.Sub(b)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}
