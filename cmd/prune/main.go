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

	auctionId := flag.Uint64("auction", 0, "Settled auction id to prune (required)")
	flag.Parse()

	if *auctionId == 0 {
		logger.Fatal("Required flag: -auction")
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

	result, err := services.Engine.PruneSettledAuction(ctx, *auctionId)
	if err != nil {
		logger.Fatal("Prune failed", zap.Error(err))
	}

	logger.Info("Prune completed",
		zap.Uint64("auction_id", result.AuctionId),
		zap.Int64("bids_deleted", result.BidsDeleted),
		zap.Bool("pruned_all", result.PrunedAll))
}
