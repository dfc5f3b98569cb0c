package main

import (
	"context"
	"flag"

	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	claimant := flag.String("claimant", "", "Claimant identity (required)")
	auctionId := flag.Uint64("auction", 0, "Auction id (required)")
	flag.Parse()

	if *claimant == "" || *auctionId == 0 {
		logger.Fatal("Required flags: -claimant, -auction")
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

	settlement, err := services.Engine.ClaimSettlement(ctx, *claimant, *auctionId)
	if err != nil {
		logger.Fatal("Claim failed", zap.Error(err))
	}
	if settlement == nil {
		logger.Info("Nothing to claim",
			zap.Uint64("auction_id", *auctionId),
			zap.String("claimant", *claimant))
		return
	}

	logger.Info("Settlement claimed",
		zap.Uint64("auction_id", settlement.AuctionId),
		zap.String("claimant", settlement.Bidder),
		zap.String("allocated", settlement.AllocatedQuantity.String()),
		zap.String("clearing_price", settlement.ClearingPrice.String()),
		zap.String("total_cost", settlement.TotalCost.String()),
		zap.String("refund", settlement.Refund.String()))
}
