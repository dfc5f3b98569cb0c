package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var storeTestStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStoreTestDB(t *testing.T) (*Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	service, err := NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("Failed to create auction store: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func storeTestAuction() *models.Auction {
	params := models.AuctionParams{
		ItemName:      "genesis-drop",
		Image:         "ipfs://genesis-drop.png",
		MaxBidAmount:  decimal.NewFromInt(100000),
		TotalSupply:   decimal.NewFromInt(100),
		StartPrice:    decimal.NewFromInt(100),
		FloorPrice:    decimal.NewFromInt(10),
		DecayInterval: time.Minute,
		DecayAmount:   decimal.NewFromInt(1),
		StartTime:     storeTestStart,
		EndTime:       storeTestStart.Add(time.Hour),
		Creator:       "creator",
		PaymentToken:  models.AssetHandle{Symbol: "PAY", AppId: "app-payment"},
		PayoutToken:   models.AssetHandle{Symbol: "DROP", AppId: "app-payout"},
	}
	return models.NewAuction(params, storeTestStart)
}

func TestCreateAuction_IdsStartAtOne(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := service.CreateAuction(ctx, storeTestAuction())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	second, err := service.CreateAuction(ctx, storeTestAuction())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	if first != 1 || second != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", first, second)
	}
}

func TestAuctionRoundTrip(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	auctionId, err := service.CreateAuction(ctx, storeTestAuction())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	auction, err := service.GetAuction(ctx, auctionId)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if auction.Params.ItemName != "genesis-drop" {
		t.Errorf("Expected item genesis-drop, got %q", auction.Params.ItemName)
	}
	if auction.Params.DecayInterval != time.Minute {
		t.Errorf("Expected decay interval 1m, got %s", auction.Params.DecayInterval)
	}
	if !auction.Params.StartTime.Equal(storeTestStart) {
		t.Errorf("Expected start %s, got %s", storeTestStart, auction.Params.StartTime)
	}
	if auction.ClearingPrice != nil {
		t.Errorf("Expected nil clearing price, got %s", auction.ClearingPrice)
	}
	if auction.SettledAt != nil {
		t.Errorf("Expected nil settled_at, got %s", auction.SettledAt)
	}
	if auction.Status != models.StatusActive {
		t.Errorf("Expected active status, got %s", auction.Status)
	}

	// Settle and read back the nullable fields.
	clearing := decimal.RequireFromString("88.5")
	settledAt := storeTestStart.Add(30 * time.Minute)
	auction.Status = models.StatusSettled
	auction.ClearingPrice = &clearing
	auction.SettledAt = &settledAt
	auction.Sold = decimal.NewFromInt(100)
	auction.TotalBids = 7
	auction.TotalBidders = 3
	if err := service.UpdateAuction(ctx, auction); err != nil {
		t.Fatalf("UpdateAuction failed: %v", err)
	}

	reloaded, err := service.GetAuction(ctx, auctionId)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if reloaded.ClearingPrice == nil || !reloaded.ClearingPrice.Equal(clearing) {
		t.Errorf("Expected clearing price %s, got %v", clearing, reloaded.ClearingPrice)
	}
	if reloaded.SettledAt == nil || !reloaded.SettledAt.Equal(settledAt) {
		t.Errorf("Expected settled_at %s, got %v", settledAt, reloaded.SettledAt)
	}
	if reloaded.TotalBids != 7 || reloaded.TotalBidders != 3 {
		t.Errorf("Expected 7 bids / 3 bidders, got %d/%d", reloaded.TotalBids, reloaded.TotalBidders)
	}
}

func TestGetAuction_NotFound(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()

	if _, err := service.GetAuction(context.Background(), 7); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Errorf("Expected ErrAuctionNotFound, got %v", err)
	}
}

func TestUpdateAuction_NotFound(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()

	auction := storeTestAuction()
	auction.Id = 42
	if err := service.UpdateAuction(context.Background(), auction); !errors.Is(err, store.ErrAuctionNotFound) {
		t.Errorf("Expected ErrAuctionNotFound, got %v", err)
	}
}

func TestNextBidId_Monotonic(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		got, err := service.NextBidId(ctx)
		if err != nil {
			t.Fatalf("NextBidId failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected bid id %d, got %d", want, got)
		}
	}
}

func TestBidsAndClaimMarks(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	auctionId, err := service.CreateAuction(ctx, storeTestAuction())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	for i := uint64(1); i <= 2; i++ {
		bid := &models.BidRecord{
			BidId:      i,
			AuctionId:  auctionId,
			Bidder:     "alice",
			Quantity:   decimal.NewFromInt(10),
			AmountPaid: decimal.NewFromInt(1000),
			Timestamp:  storeTestStart.Add(time.Duration(i) * time.Minute),
		}
		if err := service.AppendBid(ctx, bid); err != nil {
			t.Fatalf("AppendBid failed: %v", err)
		}
	}

	bids, err := service.UserBids(ctx, "alice", auctionId)
	if err != nil {
		t.Fatalf("UserBids failed: %v", err)
	}
	if len(bids) != 2 {
		t.Fatalf("Expected 2 bids, got %d", len(bids))
	}
	if bids[0].Claimed || bids[1].Claimed {
		t.Error("Fresh bids must be unclaimed")
	}

	if err := service.MarkBidsClaimed(ctx, "alice", auctionId, []uint64{1, 2}); err != nil {
		t.Fatalf("MarkBidsClaimed failed: %v", err)
	}
	bids, err = service.UserBids(ctx, "alice", auctionId)
	if err != nil {
		t.Fatalf("UserBids failed: %v", err)
	}
	if !bids[0].Claimed || !bids[1].Claimed {
		t.Error("Expected both bids marked claimed")
	}

	// Unknown bid id must fail without committing anything.
	if err := service.MarkBidsClaimed(ctx, "alice", auctionId, []uint64{99}); !errors.Is(err, store.ErrBidNotFound) {
		t.Errorf("Expected ErrBidNotFound, got %v", err)
	}
}

func TestPruneClaimedKeepsUnclaimed(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	auctionId, err := service.CreateAuction(ctx, storeTestAuction())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	claimed := &models.BidRecord{
		BidId: 1, AuctionId: auctionId, Bidder: "alice",
		Quantity: decimal.NewFromInt(5), AmountPaid: decimal.NewFromInt(500),
		Timestamp: storeTestStart, Claimed: true,
	}
	unclaimed := &models.BidRecord{
		BidId: 2, AuctionId: auctionId, Bidder: "bob",
		Quantity: decimal.NewFromInt(5), AmountPaid: decimal.NewFromInt(500),
		Timestamp: storeTestStart,
	}
	if err := service.AppendBid(ctx, claimed); err != nil {
		t.Fatalf("AppendBid failed: %v", err)
	}
	if err := service.AppendBid(ctx, unclaimed); err != nil {
		t.Fatalf("AppendBid failed: %v", err)
	}

	deleted, err := service.PruneClaimedBids(ctx, auctionId)
	if err != nil {
		t.Fatalf("PruneClaimedBids failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}

	remaining, err := service.AuctionBids(ctx, auctionId, 10, 0)
	if err != nil {
		t.Fatalf("AuctionBids failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Bidder != "bob" {
		t.Errorf("Expected only bob's bid to remain, got %+v", remaining)
	}

	deleted, err = service.PruneAllBids(ctx, auctionId)
	if err != nil {
		t.Fatalf("PruneAllBids failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
}

func TestUserTotalAccumulates(t *testing.T) {
	service, cleanup := setupStoreTestDB(t)
	defer cleanup()
	ctx := context.Background()

	total, err := service.UserTotal(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("UserTotal failed: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("Expected zero total before any bid, got %s", total)
	}

	if err := service.AddUserTotal(ctx, 1, "alice", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("AddUserTotal failed: %v", err)
	}
	if err := service.AddUserTotal(ctx, 1, "alice", decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("AddUserTotal failed: %v", err)
	}

	total, err = service.UserTotal(ctx, 1, "alice")
	if err != nil {
		t.Fatalf("UserTotal failed: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Expected total 12.5, got %s", total)
	}
}
