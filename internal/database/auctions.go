package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fairdrop-auction-go/internal/models"
	"fairdrop-auction-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAuction allocates the next auction id and persists the auction in a
// single transaction. The id counter is read-then-incremented exactly once.
func (s *Service) CreateAuction(ctx context.Context, auction *models.Auction) (uint64, error) {
	p := auction.Params
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		auctionId, err := nextCounterTx(ctx, tx, counterAuctionId)
		if err != nil {
			return err
		}
		auction.Id = auctionId

		_, err = tx.ExecContext(ctx, queryInsertAuction,
			auction.Id, p.ItemName, p.Image, p.MaxBidAmount.String(), p.TotalSupply.String(),
			p.StartPrice.String(), p.FloorPrice.String(), p.DecayInterval.Microseconds(),
			p.DecayAmount.String(), p.StartTime.UnixMicro(), p.EndTime.UnixMicro(), p.Creator,
			p.PaymentToken.Symbol, p.PaymentToken.AppId, p.PayoutToken.Symbol, p.PayoutToken.AppId,
			auction.CurrentPrice.String(), auction.LastPriceUpdate.UnixMicro(), auction.Sold.String(),
			nullDecimal(auction.ClearingPrice), string(auction.Status), nullMicros(auction.SettledAt),
			boolToInt(auction.BidsPruned), auction.TotalBids, auction.TotalBidders)
		if err != nil {
			return fmt.Errorf("failed to insert auction: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("Auction created",
		zap.Uint64("auction_id", auction.Id),
		zap.String("item", p.ItemName),
		zap.String("creator", p.Creator))
	return auction.Id, nil
}

func (s *Service) GetAuction(ctx context.Context, auctionId uint64) (*models.Auction, error) {
	row := s.db.QueryRowContext(ctx, queryGetAuction, auctionId)
	auction, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", store.ErrAuctionNotFound, auctionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction %d: %w", auctionId, err)
	}
	return auction, nil
}

// UpdateAuction writes back the mutable derived state. Immutable params are
// never touched after creation.
func (s *Service) UpdateAuction(ctx context.Context, auction *models.Auction) error {
	result, err := s.db.ExecContext(ctx, queryUpdateAuction,
		auction.CurrentPrice.String(), auction.LastPriceUpdate.UnixMicro(), auction.Sold.String(),
		nullDecimal(auction.ClearingPrice), string(auction.Status), nullMicros(auction.SettledAt),
		boolToInt(auction.BidsPruned), auction.TotalBids, auction.TotalBidders, auction.Id)
	if err != nil {
		return fmt.Errorf("failed to update auction %d: %w", auction.Id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", store.ErrAuctionNotFound, auction.Id)
	}
	return nil
}

// ListAuctions pages through auctions newest first.
func (s *Service) ListAuctions(ctx context.Context, limit, offset int) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, queryListAuctions, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return scanAuctions(rows)
}

// AuctionsByCreator returns every auction created by one identity, newest
// first.
func (s *Service) AuctionsByCreator(ctx context.Context, creator string) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx, queryAuctionsByCreator, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions for %s: %w", creator, err)
	}
	return scanAuctions(rows)
}

func scanAuctions(rows *sql.Rows) ([]models.Auction, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var auctions []models.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, *auction)
	}
	return auctions, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (*models.Auction, error) {
	var (
		a                models.Auction
		maxBid, supply   string
		startP, floorP   string
		decayMicros      int64
		decayAmt         string
		startT, endT     int64
		currentP, sold   string
		clearing         sql.NullString
		status           string
		settledAt        sql.NullInt64
		pruned           int
		lastUpdateMicros int64
	)

	err := row.Scan(&a.Id, &a.Params.ItemName, &a.Params.Image, &maxBid, &supply,
		&startP, &floorP, &decayMicros, &decayAmt, &startT, &endT, &a.Params.Creator,
		&a.Params.PaymentToken.Symbol, &a.Params.PaymentToken.AppId,
		&a.Params.PayoutToken.Symbol, &a.Params.PayoutToken.AppId,
		&currentP, &lastUpdateMicros, &sold, &clearing, &status,
		&settledAt, &pruned, &a.TotalBids, &a.TotalBidders)
	if err != nil {
		return nil, err
	}

	if a.Params.MaxBidAmount, err = decimal.NewFromString(maxBid); err != nil {
		return nil, fmt.Errorf("failed to parse max_bid_amount %q: %w", maxBid, err)
	}
	if a.Params.TotalSupply, err = decimal.NewFromString(supply); err != nil {
		return nil, fmt.Errorf("failed to parse total_supply %q: %w", supply, err)
	}
	if a.Params.StartPrice, err = decimal.NewFromString(startP); err != nil {
		return nil, fmt.Errorf("failed to parse start_price %q: %w", startP, err)
	}
	if a.Params.FloorPrice, err = decimal.NewFromString(floorP); err != nil {
		return nil, fmt.Errorf("failed to parse floor_price %q: %w", floorP, err)
	}
	if a.Params.DecayAmount, err = decimal.NewFromString(decayAmt); err != nil {
		return nil, fmt.Errorf("failed to parse decay_amount %q: %w", decayAmt, err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(currentP); err != nil {
		return nil, fmt.Errorf("failed to parse current_price %q: %w", currentP, err)
	}
	if a.Sold, err = decimal.NewFromString(sold); err != nil {
		return nil, fmt.Errorf("failed to parse sold %q: %w", sold, err)
	}
	if clearing.Valid {
		cp, err := decimal.NewFromString(clearing.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse clearing_price %q: %w", clearing.String, err)
		}
		a.ClearingPrice = &cp
	}
	if settledAt.Valid {
		t := time.UnixMicro(settledAt.Int64).UTC()
		a.SettledAt = &t
	}

	a.Params.DecayInterval = time.Duration(decayMicros) * time.Microsecond
	a.Params.StartTime = time.UnixMicro(startT).UTC()
	a.Params.EndTime = time.UnixMicro(endT).UTC()
	a.LastPriceUpdate = time.UnixMicro(lastUpdateMicros).UTC()
	a.Status = models.AuctionStatus(status)
	a.BidsPruned = pruned != 0
	return &a, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullMicros(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}

func microsToTime(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
