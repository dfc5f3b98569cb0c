package stream

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// AuctionStream is the single named stream all auction events are emitted on.
// The indexer reconstructs its materialized view purely by replaying this
// stream in order, exactly once per index.
const AuctionStream = "fairdrop_auctions"

// Kind discriminates event payloads.
type Kind string

const (
	KindApplicationInitialized Kind = "application-initialized"
	KindAuctionCreated         Kind = "auction-created"
	KindBidAccepted            Kind = "bid-accepted"
	KindBidRejected            Kind = "bid-rejected"
	KindPaymentReceived        Kind = "payment-received"
	KindAuctionSettled         Kind = "auction-settled"
	KindSettlementClaimed      Kind = "settlement-claimed"
	KindAuctionCancelled       Kind = "auction-cancelled"
	KindRefundIssued           Kind = "refund-issued"
)

// Event is one entry in the ordered log. Index is assigned on append and is
// strictly increasing; payloads are CBOR-encoded kind-specific structs.
type Event struct {
	Index     uint64
	Stream    string
	Kind      Kind
	Payload   []byte
	EmittedAt time.Time
}

// ApplicationInitialized marks stream creation at deployment.
type ApplicationInitialized struct {
	AuthorityChain string `cbor:"authority_chain"`
}

// AuctionCreated carries the full parameter snapshot.
type AuctionCreated struct {
	AuctionId     uint64          `cbor:"auction_id"`
	ItemName      string          `cbor:"item_name"`
	Image         string          `cbor:"image"`
	MaxBidAmount  decimal.Decimal `cbor:"max_bid_amount"`
	TotalSupply   decimal.Decimal `cbor:"total_supply"`
	StartPrice    decimal.Decimal `cbor:"start_price"`
	FloorPrice    decimal.Decimal `cbor:"floor_price"`
	DecayInterval int64           `cbor:"decay_interval_micros"`
	DecayAmount   decimal.Decimal `cbor:"decay_amount"`
	StartTime     time.Time       `cbor:"start_time"`
	EndTime       time.Time       `cbor:"end_time"`
	Creator       string          `cbor:"creator"`
	PaymentToken  string          `cbor:"payment_token_app"`
	PayoutToken   string          `cbor:"payout_token_app"`
}

type BidAccepted struct {
	AuctionId  uint64          `cbor:"auction_id"`
	BidId      uint64          `cbor:"bid_id"`
	Bidder     string          `cbor:"bidder"`
	Quantity   decimal.Decimal `cbor:"quantity"`
	AmountPaid decimal.Decimal `cbor:"amount_paid"`
	TotalSold  decimal.Decimal `cbor:"total_sold"`
	Remaining  decimal.Decimal `cbor:"remaining"`
}

type BidRejected struct {
	AuctionId uint64 `cbor:"auction_id"`
	Bidder    string `cbor:"bidder"`
	Reason    string `cbor:"reason"`
}

type PaymentReceived struct {
	AuctionId uint64          `cbor:"auction_id"`
	Bidder    string          `cbor:"bidder"`
	Amount    decimal.Decimal `cbor:"amount"`
	BidId     uint64          `cbor:"bid_id"`
}

type AuctionSettled struct {
	AuctionId     uint64          `cbor:"auction_id"`
	ClearingPrice decimal.Decimal `cbor:"clearing_price"`
	TotalBidders  uint64          `cbor:"total_bidders"`
	TotalSold     decimal.Decimal `cbor:"total_sold"`
}

type SettlementClaimed struct {
	AuctionId         uint64          `cbor:"auction_id"`
	Bidder            string          `cbor:"bidder"`
	AllocatedQuantity decimal.Decimal `cbor:"allocated_quantity"`
	ClearingPrice     decimal.Decimal `cbor:"clearing_price"`
	TotalCost         decimal.Decimal `cbor:"total_cost"`
	Refund            decimal.Decimal `cbor:"refund"`
}

type AuctionCancelled struct {
	AuctionId uint64 `cbor:"auction_id"`
	Reason    string `cbor:"reason"`
}

type RefundIssued struct {
	AuctionId uint64          `cbor:"auction_id"`
	Bidder    string          `cbor:"bidder"`
	Refund    decimal.Decimal `cbor:"refund_amount"`
}

// DecodePayload unmarshals an event payload into the kind-specific struct.
func DecodePayload(event Event, out any) error {
	return cbor.Unmarshal(event.Payload, out)
}
