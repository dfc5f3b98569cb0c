package main

import (
	"context"
	"flag"
	"time"

	"fairdrop-auction-go/internal/auction"
	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func mustDecimal(logger *zap.Logger, name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		logger.Fatal("Invalid decimal flag", zap.String("flag", name), zap.String("value", value), zap.Error(err))
	}
	return d
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	creator := flag.String("creator", "", "Creator identity (required)")
	item := flag.String("item", "", "Item name (required)")
	image := flag.String("image", "", "Item image URL")
	supply := flag.String("supply", "", "Total supply (required)")
	startPrice := flag.String("start-price", "", "Start price (required)")
	floorPrice := flag.String("floor-price", "0", "Floor price")
	decayAmount := flag.String("decay-amount", "0", "Price decrease per interval")
	decayInterval := flag.Duration("decay-interval", time.Minute, "Decay interval")
	start := flag.String("start", "", "Start time, RFC3339 (default: now)")
	duration := flag.Duration("duration", time.Hour, "Auction duration from start time")
	maxBid := flag.String("max-bid", "0", "Maximum bid amount (0 = unlimited)")
	paymentToken := flag.String("payment-token", "", "Payment token application id (required)")
	payoutToken := flag.String("payout-token", "", "Payout token application id (required)")
	flag.Parse()

	if *creator == "" || *item == "" || *supply == "" || *startPrice == "" ||
		*paymentToken == "" || *payoutToken == "" {
		logger.Fatal("Required flags: -creator, -item, -supply, -start-price, -payment-token, -payout-token")
	}

	startTime := time.Now().UTC()
	if *start != "" {
		parsed, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			logger.Fatal("Invalid -start time, want RFC3339", zap.String("value", *start), zap.Error(err))
		}
		startTime = parsed.UTC()
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

	input := auction.CreateAuctionInput{
		ItemName:        *item,
		Image:           *image,
		MaxBidAmount:    mustDecimal(logger, "max-bid", *maxBid),
		TotalSupply:     mustDecimal(logger, "supply", *supply),
		StartPrice:      mustDecimal(logger, "start-price", *startPrice),
		FloorPrice:      mustDecimal(logger, "floor-price", *floorPrice),
		DecayInterval:   *decayInterval,
		DecayAmount:     mustDecimal(logger, "decay-amount", *decayAmount),
		StartTime:       startTime,
		EndTime:         startTime.Add(*duration),
		PaymentTokenApp: *paymentToken,
		PayoutTokenApp:  *payoutToken,
	}

	auctionId, err := services.Engine.CreateAuction(ctx, *creator, input)
	if err != nil {
		logger.Fatal("Failed to create auction", zap.Error(err))
	}

	logger.Info("Auction created",
		zap.Uint64("auction_id", auctionId),
		zap.String("item", *item),
		zap.Time("start_time", input.StartTime),
		zap.Time("end_time", input.EndTime))
}
