package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"fairdrop-auction-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var testToken = models.AssetHandle{Symbol: "PAY", AppId: "app-payment"}

func setupLedgerTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	service, err := NewService(db)
	if err != nil {
		t.Fatalf("Failed to create ledger service: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return service, cleanup
}

func TestBalanceOf_NoAccount(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()

	balance, err := service.BalanceOf(context.Background(), testToken, "alice")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected zero balance for missing account, got %s", balance)
	}
}

func TestMintAndTransfer(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.Mint(ctx, testToken, "alice", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if err := service.Transfer(ctx, testToken, "alice", decimal.NewFromInt(40), EscrowOwner); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	aliceBalance, err := service.BalanceOf(ctx, testToken, "alice")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !aliceBalance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected alice balance 60, got %s", aliceBalance)
	}

	escrowBalance, err := service.BalanceOf(ctx, testToken, EscrowOwner)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !escrowBalance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected escrow balance 40, got %s", escrowBalance)
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.Mint(ctx, testToken, "bob", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	err := service.Transfer(ctx, testToken, "bob", decimal.NewFromInt(11), EscrowOwner)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	// Failed transfer must leave no partial effect.
	bobBalance, err := service.BalanceOf(ctx, testToken, "bob")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !bobBalance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected bob balance unchanged at 10, got %s", bobBalance)
	}
	escrowBalance, err := service.BalanceOf(ctx, testToken, EscrowOwner)
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !escrowBalance.IsZero() {
		t.Errorf("Expected escrow untouched, got %s", escrowBalance)
	}
}

func TestTransfer_UnknownSourceAccount(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()

	err := service.Transfer(context.Background(), testToken, "nobody", decimal.NewFromInt(1), EscrowOwner)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance for missing account, got %v", err)
	}
}

func TestTransfer_RejectsNonPositiveAmount(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := service.Mint(ctx, testToken, "carol", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		err := service.Transfer(ctx, testToken, "carol", amount, EscrowOwner)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount for %s, got %v", amount, err)
		}
	}
}

func TestTokensAreIsolatedByAppId(t *testing.T) {
	service, cleanup := setupLedgerTestDB(t)
	defer cleanup()
	ctx := context.Background()

	other := models.AssetHandle{Symbol: "ITEM", AppId: "app-item"}
	if err := service.Mint(ctx, testToken, "dave", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	balance, err := service.BalanceOf(ctx, other, "dave")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !balance.IsZero() {
		t.Errorf("Expected zero balance in other token, got %s", balance)
	}
}
