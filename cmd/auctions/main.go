/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/query"

	"go.uber.org/zap"
)

func formatClearing(auction models.Auction) string {
	if auction.ClearingPrice == nil {
		return "-"
	}
	return auction.ClearingPrice.String()
}

func printAuctionHeader(auction models.Auction) {
	fmt.Printf("\n┌─ Auction #%d: %s [%s]\n", auction.Id, auction.Params.ItemName, auction.Status)
	fmt.Printf("│  Creator: %s\n", auction.Params.Creator)
	fmt.Printf("│  Window: %s → %s\n",
		auction.Params.StartTime.Format("2006-01-02 15:04:05"),
		auction.Params.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("│  Price: %s (start %s, floor %s, -%s per %s)\n",
		auction.CurrentPrice.String(),
		auction.Params.StartPrice.String(),
		auction.Params.FloorPrice.String(),
		auction.Params.DecayAmount.String(),
		auction.Params.DecayInterval)
	fmt.Printf("│  Sold: %s / %s (clearing: %s, bids: %d, bidders: %d)\n",
		auction.Sold.String(),
		auction.Params.TotalSupply.String(),
		formatClearing(auction),
		auction.TotalBids,
		auction.TotalBidders)
	if auction.BidsPruned {
		fmt.Println("│  Bid history pruned")
	}
}

func printBidHistory(queryService *query.Service, ctx context.Context, auctionId uint64, limit int) error {
	bids, err := queryService.BidHistory(ctx, auctionId, limit, 0)
	if err != nil {
		return err
	}
	for i, bid := range bids {
		prefix := common.BoxPrefix(i == len(bids)-1)
		claimed := ""
		if bid.Claimed {
			claimed = " claimed"
		}
		fmt.Printf("%s bid #%d by %-12s qty %10s paid %12s at %s%s\n",
			prefix, bid.BidId, bid.Bidder,
			bid.Quantity.String(), bid.AmountPaid.String(),
			bid.Timestamp.Format("15:04:05"), claimed)
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	creator := flag.String("creator", "", "Only show auctions by this creator")
	auctionId := flag.Uint64("auction", 0, "Show one auction with its bid history")
	limit := flag.Int("limit", 10, "Maximum auctions to list")
	offset := flag.Int("offset", 0, "Auctions to skip (newest first)")
	bidLimit := flag.Int("bids", 50, "Maximum bids to show per auction")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	queryService := query.NewService(dbService)

	common.PrintHeader("AUCTION REPORT", common.DefaultWidth)

	var auctions []models.Auction
	switch {
	case *auctionId != 0:
		auction, err := queryService.AuctionInfo(ctx, *auctionId)
		if err != nil {
			logger.Fatal("Failed to get auction", zap.Error(err))
		}
		auctions = []models.Auction{*auction}
	case *creator != "":
		auctions, err = queryService.AuctionsByCreator(ctx, *creator)
		if err != nil {
			logger.Fatal("Failed to list auctions by creator", zap.Error(err))
		}
	default:
		auctions, err = queryService.AllAuctions(ctx, *limit, *offset)
		if err != nil {
			logger.Fatal("Failed to list auctions", zap.Error(err))
		}
	}

	for _, auction := range auctions {
		printAuctionHeader(auction)
		if *auctionId != 0 && !auction.BidsPruned {
			if err := printBidHistory(queryService, ctx, auction.Id, *bidLimit); err != nil {
				logger.Error("Failed to load bid history",
					zap.Uint64("auction_id", auction.Id), zap.Error(err))
			}
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d auctions shown", len(auctions))
	common.PrintFooter(summary, common.DefaultWidth)
}
