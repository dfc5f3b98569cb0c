package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction.
// Scheduled → Active → Settled, with Scheduled → Cancelled as the only other
// legal transition. Pruning is a flag on a Settled auction, not a status.
type AuctionStatus string

const (
	StatusScheduled AuctionStatus = "scheduled"
	StatusActive    AuctionStatus = "active"
	StatusSettled   AuctionStatus = "settled"
	StatusCancelled AuctionStatus = "cancelled"
)

// AssetHandle is a validated reference to a fungible token application.
// Handles are resolved against the token registry at auction creation time,
// never cast from raw strings at transfer time.
type AssetHandle struct {
	Symbol string
	AppId  string
}

// AuctionParams are the immutable parameters fixed at creation.
type AuctionParams struct {
	ItemName      string
	Image         string
	MaxBidAmount  decimal.Decimal
	TotalSupply   decimal.Decimal
	StartPrice    decimal.Decimal // per unit
	FloorPrice    decimal.Decimal // reserve, price never decays below this
	DecayInterval time.Duration   // time between price drops
	DecayAmount   decimal.Decimal // price decrease per interval
	StartTime     time.Time
	EndTime       time.Time
	Creator       string
	PaymentToken  AssetHandle
	PayoutToken   AssetHandle
}

// Auction is one sale: immutable params plus mutable derived state.
// An auction row is never deleted; only its bid history is pruned.
type Auction struct {
	Id              uint64
	Params          AuctionParams
	CurrentPrice    decimal.Decimal
	LastPriceUpdate time.Time
	Sold            decimal.Decimal
	ClearingPrice   *decimal.Decimal // nil until settled, immutable once set
	Status          AuctionStatus
	SettledAt       *time.Time
	BidsPruned      bool
	TotalBids       uint64
	TotalBidders    uint64
}

// NewAuction builds the initial auction state for freshly validated params.
// Auctions whose start time is already in the past open as Active directly.
func NewAuction(params AuctionParams, now time.Time) *Auction {
	status := StatusActive
	if now.Before(params.StartTime) {
		status = StatusScheduled
	}
	return &Auction{
		Params:          params,
		CurrentPrice:    params.StartPrice,
		LastPriceUpdate: params.StartTime,
		Sold:            decimal.Zero,
		Status:          status,
	}
}

// Remaining returns the unsold supply.
func (a *Auction) Remaining() decimal.Decimal {
	r := a.Params.TotalSupply.Sub(a.Sold)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// BidRecord is one accepted bid. Only the Claimed flag is ever mutated after
// creation, and only by the settlement engine.
type BidRecord struct {
	BidId      uint64
	AuctionId  uint64
	Bidder     string
	Quantity   decimal.Decimal
	AmountPaid decimal.Decimal
	Timestamp  time.Time
	Claimed    bool
}

// UserTotal is the cumulative accepted quantity for one (auction, bidder)
// pair. Write-only accumulator used for reporting.
type UserTotal struct {
	AuctionId uint64
	Bidder    string
	Quantity  decimal.Decimal
}

// BidReceipt is returned to the caller when a bid is accepted.
type BidReceipt struct {
	AuctionId  uint64
	BidId      uint64
	Bidder     string
	Quantity   decimal.Decimal
	AmountPaid decimal.Decimal
	Timestamp  time.Time
}
