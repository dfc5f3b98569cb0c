package store

import (
	"context"
	"database/sql"
	"errors"

	"fairdrop-auction-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrClearingPriceNil = errors.New("settled auction has no clearing price")
	ErrBidNotFound      = errors.New("bid not found")
)

// UserBidsKey identifies one (bidder, auction) bid list.
type UserBidsKey struct {
	Bidder    string
	AuctionId uint64
}

// AuctionStore defines the persistence contract for the auction authority's
// state: auctions, bid history, per-user totals, and the monotonic id
// counters. Operations against one auction are serialized by the hosting
// process, so implementations do not need cross-operation locking.
type AuctionStore interface {
	// --- Auctions ---
	// CreateAuction allocates the next auction id, persists the auction,
	// and returns the id.
	CreateAuction(ctx context.Context, auction *models.Auction) (uint64, error)
	GetAuction(ctx context.Context, auctionId uint64) (*models.Auction, error)
	UpdateAuction(ctx context.Context, auction *models.Auction) error
	// ListAuctions pages through auctions newest first.
	ListAuctions(ctx context.Context, limit, offset int) ([]models.Auction, error)
	AuctionsByCreator(ctx context.Context, creator string) ([]models.Auction, error)

	// --- Bids ---
	// NextBidId allocates the next global bid id (read-then-increment).
	NextBidId(ctx context.Context) (uint64, error)
	AppendBid(ctx context.Context, bid *models.BidRecord) error
	UserBids(ctx context.Context, bidder string, auctionId uint64) ([]models.BidRecord, error)
	// AuctionBids pages through an auction's bid history oldest first.
	AuctionBids(ctx context.Context, auctionId uint64, limit, offset int) ([]models.BidRecord, error)
	MarkBidsClaimed(ctx context.Context, bidder string, auctionId uint64, bidIds []uint64) error

	// --- Retention ---
	// PruneClaimedBids drops claimed bid records for an auction, keeping
	// unclaimed ones. PruneAllBids drops every bid record for the auction.
	PruneClaimedBids(ctx context.Context, auctionId uint64) (int64, error)
	PruneAllBids(ctx context.Context, auctionId uint64) (int64, error)

	// --- User totals ---
	AddUserTotal(ctx context.Context, auctionId uint64, bidder string, quantity decimal.Decimal) error
	UserTotal(ctx context.Context, auctionId uint64, bidder string) (decimal.Decimal, error)

	// --- Transactions ---
	// InTransaction runs fn against a view of the store bound to a single
	// database transaction, committing only when fn returns nil. The raw
	// transaction is exposed so collaborators persisting to the same
	// database, such as the event log, can join the unit of work. Called
	// on an already-bound view, fn joins the open transaction.
	InTransaction(ctx context.Context, fn func(tx *sql.Tx, txStore AuctionStore) error) error

	// --- Lifecycle ---
	Close()
}
