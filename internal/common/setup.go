package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"fairdrop-auction-go/internal/auction"
	"fairdrop-auction-go/internal/database"
	"fairdrop-auction-go/internal/formance"
	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/query"
	"fairdrop-auction-go/internal/stream"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService   *database.Service
	TokenLedger ledger.TokenLedger
	Events      *stream.Log
	Registry    *ledger.Registry
	Engine      *auction.Engine
	Query       *query.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full auction authority: the SQLite-backed
// auction store, the token ledger (SQLite or Formance per config), the event
// log, the token registry, and the engine on top of them all.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Loading token registry", zap.String("file", cfg.Ledger.TokensFile))
	registry, err := ledger.LoadRegistry(cfg.Ledger.TokensFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	tokenLedger, err := newTokenLedger(ctx, cfg, dbService)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	events, err := stream.NewLog(dbService.DB())
	if err != nil {
		tokenLedger.Close()
		dbService.Close()
		return nil, err
	}

	engine := auction.NewEngine(dbService, tokenLedger, events, registry, cfg.Retention)

	return &Services{
		DbService:   dbService,
		TokenLedger: tokenLedger,
		Events:      events,
		Registry:    registry,
		Engine:      engine,
		Query:       query.NewService(dbService),
	}, nil
}

// InitializeDatabaseOnly initializes just the auction store without the
// ledger backends. Useful for read-only operations like listing auctions.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func newTokenLedger(ctx context.Context, cfg *models.Config, dbService *database.Service) (ledger.TokenLedger, error) {
	switch cfg.Ledger.Backend {
	case "sqlite", "":
		zap.L().Info("Using SQLite token ledger")
		return ledger.NewService(dbService.DB())
	case "formance":
		zap.L().Info("Using Formance token ledger")
		return formance.NewService(ctx, cfg.Ledger.Formance)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (want sqlite or formance)", cfg.Ledger.Backend)
	}
}

func (cs *Services) Close() {
	if cs.TokenLedger != nil {
		cs.TokenLedger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
