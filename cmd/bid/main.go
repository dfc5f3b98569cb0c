package main

import (
	"context"
	"flag"

	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	bidder := flag.String("bidder", "", "Bidder identity (required)")
	auctionId := flag.Uint64("auction", 0, "Auction id (required)")
	quantity := flag.String("quantity", "", "Quantity to bid for (required)")
	flag.Parse()

	if *bidder == "" || *auctionId == 0 || *quantity == "" {
		logger.Fatal("Required flags: -bidder, -auction, -quantity")
	}
	qty, err := decimal.NewFromString(*quantity)
	if err != nil {
		logger.Fatal("Invalid -quantity", zap.String("value", *quantity), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	receipt, err := services.Engine.PlaceBid(ctx, *bidder, *auctionId, qty)
	if err != nil {
		logger.Fatal("Bid failed", zap.Error(err))
	}

	// A nil receipt means the bid was rejected as a business outcome; the
	// reason is on the event stream (see the watch tool).
	if receipt == nil {
		logger.Warn("Bid rejected",
			zap.Uint64("auction_id", *auctionId),
			zap.String("bidder", *bidder))
		return
	}

	logger.Info("Bid accepted",
		zap.Uint64("auction_id", receipt.AuctionId),
		zap.Uint64("bid_id", receipt.BidId),
		zap.String("quantity", receipt.Quantity.String()),
		zap.String("amount_paid", receipt.AmountPaid.String()))
}
