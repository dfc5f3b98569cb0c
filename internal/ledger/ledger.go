package ledger

import (
	"context"
	"errors"

	"fairdrop-auction-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrUnknownToken        = errors.New("unknown token application")
)

// EscrowOwner is the application-owned account that holds collected payments
// until settlement. No actor other than the auction engine may debit it.
const EscrowOwner = "auction:escrow"

// TokenLedger is the boundary to the fungible token application. A transfer
// either fully completes or fails synchronously with no partial effect.
type TokenLedger interface {
	// Transfer moves amount of the given token from owner to destination.
	// Returns ErrInsufficientBalance if owner cannot cover the amount.
	Transfer(ctx context.Context, token models.AssetHandle, owner string, amount decimal.Decimal, destination string) error

	// Mint credits amount of the given token to owner (faucet).
	Mint(ctx context.Context, token models.AssetHandle, owner string, amount decimal.Decimal) error

	// BalanceOf returns the owner's balance in the given token, zero if the
	// account does not exist.
	BalanceOf(ctx context.Context, token models.AssetHandle, owner string) (decimal.Decimal, error)

	Close()
}
