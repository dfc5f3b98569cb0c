package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"
	"fairdrop-auction-go/internal/stream"

	"go.uber.org/zap"
)

// describe renders one event as a single report line.
func describe(event stream.Event) string {
	switch event.Kind {
	case stream.KindApplicationInitialized:
		var p stream.ApplicationInitialized
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("stream initialized (authority chain %s)", p.AuthorityChain)
		}
	case stream.KindAuctionCreated:
		var p stream.AuctionCreated
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d created: %q supply %s, price %s→%s, by %s",
				p.AuctionId, p.ItemName, p.TotalSupply, p.StartPrice, p.FloorPrice, p.Creator)
		}
	case stream.KindBidAccepted:
		var p stream.BidAccepted
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d: bid #%d by %s for %s paid %s (sold %s, remaining %s)",
				p.AuctionId, p.BidId, p.Bidder, p.Quantity, p.AmountPaid, p.TotalSold, p.Remaining)
		}
	case stream.KindBidRejected:
		var p stream.BidRejected
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d: bid by %s rejected: %s", p.AuctionId, p.Bidder, p.Reason)
		}
	case stream.KindPaymentReceived:
		var p stream.PaymentReceived
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d: payment %s from %s (bid #%d)",
				p.AuctionId, p.Amount, p.Bidder, p.BidId)
		}
	case stream.KindAuctionSettled:
		var p stream.AuctionSettled
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d settled at %s (%s sold to %d bidders)",
				p.AuctionId, p.ClearingPrice, p.TotalSold, p.TotalBidders)
		}
	case stream.KindSettlementClaimed:
		var p stream.SettlementClaimed
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d: %s claimed %s at %s (cost %s, refund %s)",
				p.AuctionId, p.Bidder, p.AllocatedQuantity, p.ClearingPrice, p.TotalCost, p.Refund)
		}
	case stream.KindAuctionCancelled:
		var p stream.AuctionCancelled
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d cancelled: %s", p.AuctionId, p.Reason)
		}
	case stream.KindRefundIssued:
		var p stream.RefundIssued
		if err := stream.DecodePayload(event, &p); err == nil {
			return fmt.Sprintf("auction %d: refund %s to %s", p.AuctionId, p.Refund, p.Bidder)
		}
	}
	return fmt.Sprintf("%s (undecodable payload, %d bytes)", event.Kind, len(event.Payload))
}

func main() {
	fromIndex := flag.Uint64("from", 0, "Replay events after this index before following")
	once := flag.Bool("once", false, "Print the backlog and exit instead of following")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	events, err := stream.NewLog(dbService.DB())
	if err != nil {
		zap.L().Fatal("Failed to open event log", zap.Error(err))
	}

	cursor := *fromIndex
	printBatch := func() {
		err := events.Replay(ctx, cursor, func(event stream.Event) error {
			fmt.Printf("[%6d] %s  %s\n", event.Index,
				event.EmittedAt.Format("2006-01-02 15:04:05"), describe(event))
			cursor = event.Index
			return nil
		})
		if err != nil {
			zap.L().Error("Replay failed", zap.Error(err))
		}
	}

	printBatch()
	if *once {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Watch.PollingInterval)
	defer ticker.Stop()

	zap.L().Info("Following auction stream",
		zap.String("stream", stream.AuctionStream),
		zap.Uint64("cursor", cursor),
		zap.Duration("interval", cfg.Watch.PollingInterval))

	for {
		select {
		case <-ticker.C:
			printBatch()
		case sig := <-sigChan:
			zap.L().Info("Shutting down", zap.String("signal", sig.String()))
			return
		}
	}
}
