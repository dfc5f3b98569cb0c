package formance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"fairdrop-auction-go/internal/ledger"
	"fairdrop-auction-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy ledger.TokenLedger.
var _ ledger.TokenLedger = (*Service)(nil)

// tokenPrecision is the smallest-unit precision used for every auction token
// in the Formance ledger. Amounts are stored as integers shifted by this many
// decimal places.
const tokenPrecision = 6

// Service implements ledger.TokenLedger backed by a Formance Stack ledger.
// Each token lives as its own asset; insufficient source funds surface as
// ledger.ErrInsufficientBalance so the engine treats them as a soft bid
// rejection, exactly like the SQLite backend.
type Service struct {
	client *v3.Formance
	ledger string
}

// NewService connects to the stack and creates the ledger if it does not
// already exist.
func NewService(ctx context.Context, cfg models.FormanceConfig) (*Service, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "fairdrop-auction"
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	svc := &Service{client: client, ledger: cfg.LedgerName}

	if err := svc.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance token ledger initialized", zap.String("ledger", cfg.LedgerName))
	return svc, nil
}

// ensureLedger creates the ledger if it does not already exist.
func (s *Service) ensureLedger(ctx context.Context) error {
	_, err := s.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: s.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "fairdrop-auction",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", s.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", s.ledger))
	return nil
}

// Close is a no-op for the Formance backend (HTTP client needs no teardown).
func (s *Service) Close() {}

// ---------- helpers ----------

// formanceAsset returns the UMN notation for a token, e.g. "PAY/6".
func formanceAsset(token models.AssetHandle) string {
	return fmt.Sprintf("%s/%d", token.Symbol, tokenPrecision)
}

// accountAddress maps an owner identity to its Formance account. The escrow
// owner already carries a valid segmented address; everything else lives
// under the holders namespace.
func accountAddress(owner string) string {
	if owner == ledger.EscrowOwner {
		return owner
	}
	return "holders:" + owner
}

// toSmallestUnit converts a decimal amount to the integer string Numscript
// expects.
func toSmallestUnit(amount decimal.Decimal) string {
	return amount.Shift(tokenPrecision).BigInt().String()
}

// fromSmallestUnit converts a smallest-unit balance back to a decimal.
func fromSmallestUnit(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -tokenPrecision)
}

// isConflictError checks whether a Formance SDK error is a CONFLICT
// (duplicate reference).
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}

// isInsufficientFundError checks whether a Formance SDK error is
// INSUFFICIENT_FUND.
func isInsufficientFundError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumInsufficientFund {
		return true
	}
	// Numscript execution failures carry the code in the message on some
	// stack versions.
	return err != nil && strings.Contains(err.Error(), "INSUFFICIENT_FUND")
}
