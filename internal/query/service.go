package query

import (
	"context"
	"time"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/pricing"
	"fairdrop-auction-go/internal/store"

	"github.com/shopspring/decimal"
)

const (
	defaultAuctionPageSize = 10
	defaultBidPageSize     = 50
)

// Service is the read-only projection over persisted auction state. It never
// mutates anything: prices are recomputed on demand from the decay model, so
// a snapshot is current even if no bid has touched the auction lately.
type Service struct {
	store store.AuctionStore

	now func() time.Time
}

func NewService(auctionStore store.AuctionStore) *Service {
	return &Service{
		store: auctionStore,
		now:   time.Now,
	}
}

// CurrentPrice returns the live price for an auction. Settled auctions
// report their fixed clearing price; everything still running reports the
// decayed price as of now.
func (s *Service) CurrentPrice(ctx context.Context, auctionId uint64) (decimal.Decimal, error) {
	auction, err := s.store.GetAuction(ctx, auctionId)
	if err != nil {
		return decimal.Zero, err
	}
	return s.priceOf(auction), nil
}

// AuctionInfo returns a full snapshot with the price refreshed.
func (s *Service) AuctionInfo(ctx context.Context, auctionId uint64) (*models.Auction, error) {
	auction, err := s.store.GetAuction(ctx, auctionId)
	if err != nil {
		return nil, err
	}
	auction.CurrentPrice = s.priceOf(auction)
	return auction, nil
}

// UserBids returns one bidder's bid records for an auction, oldest first.
func (s *Service) UserBids(ctx context.Context, bidder string, auctionId uint64) ([]models.BidRecord, error) {
	return s.store.UserBids(ctx, bidder, auctionId)
}

// AllAuctions pages through every auction newest first, refreshing prices.
func (s *Service) AllAuctions(ctx context.Context, limit, offset int) ([]models.Auction, error) {
	if limit <= 0 {
		limit = defaultAuctionPageSize
	}
	if offset < 0 {
		offset = 0
	}
	auctions, err := s.store.ListAuctions(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range auctions {
		auctions[i].CurrentPrice = s.priceOf(&auctions[i])
	}
	return auctions, nil
}

// AuctionsByCreator returns every auction created by one identity, newest
// first.
func (s *Service) AuctionsByCreator(ctx context.Context, creator string) ([]models.Auction, error) {
	auctions, err := s.store.AuctionsByCreator(ctx, creator)
	if err != nil {
		return nil, err
	}
	for i := range auctions {
		auctions[i].CurrentPrice = s.priceOf(&auctions[i])
	}
	return auctions, nil
}

// BidHistory pages through an auction's bid records in chronological order.
// The auction must exist, so a missing id surfaces as an error rather than
// an empty page.
func (s *Service) BidHistory(ctx context.Context, auctionId uint64, limit, offset int) ([]models.BidRecord, error) {
	if _, err := s.store.GetAuction(ctx, auctionId); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBidPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.AuctionBids(ctx, auctionId, limit, offset)
}

func (s *Service) priceOf(auction *models.Auction) decimal.Decimal {
	switch auction.Status {
	case models.StatusSettled:
		if auction.ClearingPrice != nil {
			return *auction.ClearingPrice
		}
		return auction.CurrentPrice
	case models.StatusCancelled:
		return auction.CurrentPrice
	default:
		return pricing.CurrentPrice(
			auction.Params.StartPrice,
			auction.Params.FloorPrice,
			auction.Params.DecayAmount,
			auction.Params.DecayInterval,
			auction.Params.StartTime,
			s.now(),
		)
	}
}
