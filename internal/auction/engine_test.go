package auction

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"fairdrop-auction-go/internal/database"
	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/stream"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var (
	testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testPaymentToken = models.AssetHandle{Symbol: "PAY", AppId: "app-payment"}
	testPayoutToken  = models.AssetHandle{Symbol: "DROP", AppId: "app-payout"}
)

type engineFixture struct {
	engine *Engine
	store  *database.Service
	ledger *ledger.Service
	events *stream.Log
}

func setupEngineTest(t *testing.T) (*engineFixture, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	auctionStore, err := database.NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("Failed to create auction store: %v", err)
	}
	tokenLedger, err := ledger.NewService(db)
	if err != nil {
		t.Fatalf("Failed to create token ledger: %v", err)
	}
	events, err := stream.NewLog(db)
	if err != nil {
		t.Fatalf("Failed to create event log: %v", err)
	}

	registry := ledger.NewRegistry([]ledger.TokenConfig{
		{Symbol: testPaymentToken.Symbol, AppId: testPaymentToken.AppId},
		{Symbol: testPayoutToken.Symbol, AppId: testPayoutToken.AppId},
	})
	retention := models.RetentionConfig{
		MinAge:      time.Hour,
		PruneAllAge: 90 * 24 * time.Hour,
	}

	engine := NewEngine(auctionStore, tokenLedger, events, registry, retention)
	engine.now = func() time.Time { return testStart }

	fixture := &engineFixture{
		engine: engine,
		store:  auctionStore,
		ledger: tokenLedger,
		events: events,
	}
	cleanup := func() {
		db.Close()
	}
	return fixture, cleanup
}

func (f *engineFixture) setNow(ts time.Time) {
	f.engine.now = func() time.Time { return ts }
}

func (f *engineFixture) mint(t *testing.T, token models.AssetHandle, owner string, amount int64) {
	t.Helper()
	if err := f.ledger.Mint(context.Background(), token, owner, decimal.NewFromInt(amount)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
}

func (f *engineFixture) balance(t *testing.T, token models.AssetHandle, owner string) decimal.Decimal {
	t.Helper()
	balance, err := f.ledger.BalanceOf(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	return balance
}

func (f *engineFixture) eventKinds(t *testing.T) []stream.Kind {
	t.Helper()
	var kinds []stream.Kind
	err := f.events.Replay(context.Background(), 0, func(event stream.Event) error {
		kinds = append(kinds, event.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	return kinds
}

func (f *engineFixture) lastRejection(t *testing.T) stream.BidRejected {
	t.Helper()
	var rejection stream.BidRejected
	found := false
	err := f.events.Replay(context.Background(), 0, func(event stream.Event) error {
		if event.Kind == stream.KindBidRejected {
			found = true
			return stream.DecodePayload(event, &rejection)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if !found {
		t.Fatal("Expected a bid rejection event on the stream")
	}
	return rejection
}

// defaultInput describes an auction running one hour from testStart, priced
// 100 down to 10 at 1 per minute, with 100 units of supply.
func defaultInput() CreateAuctionInput {
	return CreateAuctionInput{
		ItemName:        "genesis-drop",
		Image:           "ipfs://genesis-drop.png",
		MaxBidAmount:    decimal.NewFromInt(100000),
		TotalSupply:     decimal.NewFromInt(100),
		StartPrice:      decimal.NewFromInt(100),
		FloorPrice:      decimal.NewFromInt(10),
		DecayInterval:   time.Minute,
		DecayAmount:     decimal.NewFromInt(1),
		StartTime:       testStart,
		EndTime:         testStart.Add(time.Hour),
		PaymentTokenApp: testPaymentToken.AppId,
		PayoutTokenApp:  testPayoutToken.AppId,
	}
}

func TestCreateAuction_AssignsSequentialIds(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	firstId, err := fixture.engine.CreateAuction(ctx, "creator", defaultInput())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	secondId, err := fixture.engine.CreateAuction(ctx, "creator", defaultInput())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	if firstId != 1 || secondId != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", firstId, secondId)
	}

	kinds := fixture.eventKinds(t)
	if len(kinds) != 2 || kinds[0] != stream.KindAuctionCreated {
		t.Errorf("Expected two auction-created events, got %v", kinds)
	}
}

func TestCreateAuction_ActiveWhenStartTimePassed(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	input := defaultInput()
	input.StartTime = testStart.Add(-time.Minute)

	auctionId, err := fixture.engine.CreateAuction(ctx, "creator", input)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	auction, err := fixture.store.GetAuction(ctx, auctionId)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if auction.Status != models.StatusActive {
		t.Errorf("Expected active status, got %s", auction.Status)
	}
}

func TestCreateAuction_ScheduledBeforeStartTime(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	input := defaultInput()
	input.StartTime = testStart.Add(time.Hour)
	input.EndTime = testStart.Add(2 * time.Hour)

	auctionId, err := fixture.engine.CreateAuction(ctx, "creator", input)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	auction, err := fixture.store.GetAuction(ctx, auctionId)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if auction.Status != models.StatusScheduled {
		t.Errorf("Expected scheduled status, got %s", auction.Status)
	}
}

func TestCreateAuction_RejectsInvalidParams(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	cases := map[string]func(*CreateAuctionInput){
		"empty item name":        func(in *CreateAuctionInput) { in.ItemName = "" },
		"zero supply":            func(in *CreateAuctionInput) { in.TotalSupply = decimal.Zero },
		"zero decay interval":    func(in *CreateAuctionInput) { in.DecayInterval = 0 },
		"sub-microsecond decay":  func(in *CreateAuctionInput) { in.DecayInterval = 500 * time.Nanosecond },
		"negative decay amount":  func(in *CreateAuctionInput) { in.DecayAmount = decimal.NewFromInt(-1) },
		"start below floor":      func(in *CreateAuctionInput) { in.StartPrice = decimal.NewFromInt(5) },
		"end not after start":    func(in *CreateAuctionInput) { in.EndTime = in.StartTime },
		"negative floor price":   func(in *CreateAuctionInput) { in.FloorPrice = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		input := defaultInput()
		mutate(&input)
		if _, err := fixture.engine.CreateAuction(ctx, "creator", input); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", name, err)
		}
	}
}

func TestCreateAuction_RejectsUnknownToken(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()

	input := defaultInput()
	input.PaymentTokenApp = "app-unknown"

	_, err := fixture.engine.CreateAuction(context.Background(), "creator", input)
	if !errors.Is(err, ledger.ErrUnknownToken) {
		t.Errorf("Expected ErrUnknownToken, got %v", err)
	}
}

func TestCreateAuction_RequiresAuthenticatedCaller(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()

	if _, err := fixture.engine.CreateAuction(context.Background(), "", defaultInput()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Expected ErrUnauthenticated, got %v", err)
	}
}

func TestCancelAuction_ScheduledOnly(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	input := defaultInput()
	input.StartTime = testStart.Add(time.Hour)
	input.EndTime = testStart.Add(2 * time.Hour)
	auctionId, err := fixture.engine.CreateAuction(ctx, "creator", input)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	if err := fixture.engine.CancelAuction(ctx, "creator", auctionId); err != nil {
		t.Fatalf("CancelAuction failed: %v", err)
	}

	auction, err := fixture.store.GetAuction(ctx, auctionId)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if auction.Status != models.StatusCancelled {
		t.Errorf("Expected cancelled status, got %s", auction.Status)
	}

	// A cancelled auction cannot be cancelled again.
	if err := fixture.engine.CancelAuction(ctx, "creator", auctionId); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable, got %v", err)
	}
}

func TestCancelAuction_CreatorOnly(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	input := defaultInput()
	input.StartTime = testStart.Add(time.Hour)
	input.EndTime = testStart.Add(2 * time.Hour)
	auctionId, err := fixture.engine.CreateAuction(ctx, "creator", input)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	if err := fixture.engine.CancelAuction(ctx, "mallory", auctionId); !errors.Is(err, ErrNotCreator) {
		t.Errorf("Expected ErrNotCreator, got %v", err)
	}
}

func TestCancelAuction_RejectsActiveAuction(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	auctionId, err := fixture.engine.CreateAuction(ctx, "creator", defaultInput())
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}

	if err := fixture.engine.CancelAuction(ctx, "creator", auctionId); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable, got %v", err)
	}
}

func TestSubscribeRegistersChain(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := fixture.engine.Subscribe(ctx, "chain-frontend"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	subscribers, err := fixture.events.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers failed: %v", err)
	}
	if len(subscribers) != 1 || subscribers[0] != "chain-frontend" {
		t.Errorf("Expected [chain-frontend], got %v", subscribers)
	}

	if err := fixture.engine.Unsubscribe(ctx, "chain-frontend"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	subscribers, err = fixture.events.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers failed: %v", err)
	}
	if len(subscribers) != 0 {
		t.Errorf("Expected no subscribers, got %v", subscribers)
	}
}
