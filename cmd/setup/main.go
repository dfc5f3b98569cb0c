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
	"strings"

	"fairdrop-auction-go/internal/common"
	"fairdrop-auction-go/internal/config"
	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/stream"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const demoBidderFunds = 100000

var demoBidders = []string{"alice", "bob", "carol"}

// seedDemoAccounts funds demo bidders with every registered token and parks a
// large payout reserve in escrow so settled auctions can pay out without a
// separate mint step.
func seedDemoAccounts(ctx context.Context, services *common.Services) error {
	for _, token := range services.Registry.Tokens() {
		for _, bidder := range demoBidders {
			amount := decimal.NewFromInt(demoBidderFunds)
			if err := services.TokenLedger.Mint(ctx, token, bidder, amount); err != nil {
				return err
			}
		}
		reserve := decimal.NewFromInt(1000000)
		if err := services.TokenLedger.Mint(ctx, token, ledger.EscrowOwner, reserve); err != nil {
			return err
		}
		zap.L().Info("Seeded demo accounts for token",
			zap.String("symbol", token.Symbol),
			zap.Strings("bidders", demoBidders))
	}
	return nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	subscribeFlag := flag.String("subscribe", "", "Comma-separated chain ids to subscribe to the auction stream")
	flag.Parse()

	logger.Info("Starting auction authority setup")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// Emit the initialization marker only on a fresh event log, so rerunning
	// setup stays idempotent.
	lastIndex, err := services.Events.LastIndex(ctx)
	if err != nil {
		logger.Fatal("Failed to inspect event log", zap.Error(err))
	}
	if lastIndex == 0 {
		_, err := services.Events.Emit(ctx, stream.KindApplicationInitialized, stream.ApplicationInitialized{
			AuthorityChain: "local",
		})
		if err != nil {
			logger.Fatal("Failed to emit initialization event", zap.Error(err))
		}
		logger.Info("Event stream initialized", zap.String("stream", stream.AuctionStream))
	} else {
		logger.Info("Event stream already initialized", zap.Uint64("last_index", lastIndex))
	}

	if *subscribeFlag != "" {
		for _, chainId := range strings.Split(*subscribeFlag, ",") {
			chainId = strings.TrimSpace(chainId)
			if chainId == "" {
				continue
			}
			if err := services.Engine.Subscribe(ctx, chainId); err != nil {
				logger.Fatal("Failed to subscribe chain", zap.String("chain_id", chainId), zap.Error(err))
			}
			logger.Info("Subscribed chain to auction stream", zap.String("chain_id", chainId))
		}
	}

	if cfg.Database.CreateDemoAccounts {
		logger.Info("Seeding demo accounts (CREATE_DEMO_ACCOUNTS=true)")
		if err := seedDemoAccounts(ctx, services); err != nil {
			logger.Fatal("Failed to seed demo accounts", zap.Error(err))
		}
	}

	logger.Info("Setup completed",
		zap.String("database", cfg.Database.Path),
		zap.String("ledger_backend", cfg.Ledger.Backend),
		zap.Int("registered_tokens", len(services.Registry.Tokens())))
}
