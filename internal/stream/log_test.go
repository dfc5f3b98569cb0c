package stream

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupLogTestDB(t *testing.T) (*Log, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	log, err := NewLog(db)
	if err != nil {
		t.Fatalf("Failed to create event log: %v", err)
	}
	return log, func() { db.Close() }
}

func TestEmitAssignsIncreasingIndices(t *testing.T) {
	log, cleanup := setupLogTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var prev uint64
	for i := 0; i < 5; i++ {
		index, err := log.Emit(ctx, KindBidRejected, BidRejected{AuctionId: 1, Bidder: "alice", Reason: "test"})
		if err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
		if index <= prev {
			t.Fatalf("Index %d not greater than previous %d", index, prev)
		}
		prev = index
	}

	last, err := log.LastIndex(ctx)
	if err != nil {
		t.Fatalf("LastIndex failed: %v", err)
	}
	if last != prev {
		t.Errorf("Expected last index %d, got %d", prev, last)
	}
}

func TestReplayInOrderWithPayloadRoundTrip(t *testing.T) {
	log, cleanup := setupLogTestDB(t)
	defer cleanup()
	ctx := context.Background()

	accepted := BidAccepted{
		AuctionId:  7,
		BidId:      3,
		Bidder:     "bob",
		Quantity:   decimal.NewFromInt(10),
		AmountPaid: decimal.NewFromInt(990),
		TotalSold:  decimal.NewFromInt(10),
		Remaining:  decimal.NewFromInt(40),
	}
	if _, err := log.Emit(ctx, KindBidAccepted, accepted); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	settled := AuctionSettled{AuctionId: 7, ClearingPrice: decimal.NewFromInt(80), TotalBidders: 2, TotalSold: decimal.NewFromInt(50)}
	if _, err := log.Emit(ctx, KindAuctionSettled, settled); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	var kinds []Kind
	err := log.Replay(ctx, 0, func(event Event) error {
		kinds = append(kinds, event.Kind)
		if event.Kind == KindBidAccepted {
			var got BidAccepted
			if err := DecodePayload(event, &got); err != nil {
				return err
			}
			if got.Bidder != "bob" || !got.AmountPaid.Equal(decimal.NewFromInt(990)) {
				t.Errorf("Payload round trip mismatch: %+v", got)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if len(kinds) != 2 || kinds[0] != KindBidAccepted || kinds[1] != KindAuctionSettled {
		t.Errorf("Unexpected replay order: %v", kinds)
	}
}

func TestReplayAfterCursorSkipsOldEvents(t *testing.T) {
	log, cleanup := setupLogTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := log.Emit(ctx, KindAuctionCancelled, AuctionCancelled{AuctionId: 1, Reason: "a"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := log.Emit(ctx, KindAuctionCancelled, AuctionCancelled{AuctionId: 2, Reason: "b"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	var count int
	if err := log.Replay(ctx, first, func(Event) error { count++; return nil }); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 event after cursor, got %d", count)
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	log, cleanup := setupLogTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := log.Subscribe(ctx, "chain-a"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	// Duplicate subscribe is a no-op.
	if err := log.Subscribe(ctx, "chain-a"); err != nil {
		t.Fatalf("Duplicate subscribe failed: %v", err)
	}
	if err := log.Subscribe(ctx, "chain-b"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	chains, err := log.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers failed: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", len(chains))
	}

	if err := log.Unsubscribe(ctx, "chain-a"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	chains, err = log.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers failed: %v", err)
	}
	if len(chains) != 1 || chains[0] != "chain-b" {
		t.Errorf("Unexpected subscribers after unsubscribe: %v", chains)
	}
}

func TestSubscribeRejectsEmptyChainId(t *testing.T) {
	log, cleanup := setupLogTestDB(t)
	defer cleanup()

	if err := log.Subscribe(context.Background(), ""); err == nil {
		t.Error("Expected error for empty chain id")
	}
}
