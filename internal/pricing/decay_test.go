package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var (
	testStartPrice = decimal.NewFromInt(100)
	testFloorPrice = decimal.NewFromInt(10)
	testDecay      = decimal.NewFromInt(1)
	testInterval   = 60 * time.Second
	testStartTime  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

func priceAt(now time.Time) decimal.Decimal {
	return CurrentPrice(testStartPrice, testFloorPrice, testDecay, testInterval, testStartTime, now)
}

func TestPriceAtStart(t *testing.T) {
	price := priceAt(testStartTime)
	if !price.Equal(testStartPrice) {
		t.Errorf("Expected start price %s at exact start, got %s", testStartPrice, price)
	}
}

func TestPriceBeforeStart(t *testing.T) {
	price := priceAt(testStartTime.Add(-time.Hour))
	if !price.Equal(testStartPrice) {
		t.Errorf("Expected start price %s before start, got %s", testStartPrice, price)
	}
}

func TestPriceAfterOneInterval(t *testing.T) {
	price := priceAt(testStartTime.Add(60 * time.Second))
	want := decimal.NewFromInt(99)
	if !price.Equal(want) {
		t.Errorf("Expected %s after one interval, got %s", want, price)
	}
}

func TestPriceMidInterval(t *testing.T) {
	// Partial intervals do not count: 90s elapsed is still one full interval.
	price := priceAt(testStartTime.Add(90 * time.Second))
	want := decimal.NewFromInt(99)
	if !price.Equal(want) {
		t.Errorf("Expected %s mid-interval, got %s", want, price)
	}
}

func TestPriceReachesFloor(t *testing.T) {
	// After 100 intervals the raw price would be 0; floor wins.
	price := priceAt(testStartTime.Add(100 * time.Minute))
	if !price.Equal(testFloorPrice) {
		t.Errorf("Expected floor price %s, got %s", testFloorPrice, price)
	}
}

func TestPriceMonotonicNonIncreasing(t *testing.T) {
	prev := priceAt(testStartTime)
	for i := 1; i <= 200; i++ {
		now := testStartTime.Add(time.Duration(i) * 30 * time.Second)
		price := priceAt(now)
		if price.GreaterThan(prev) {
			t.Fatalf("Price increased from %s to %s at +%ds", prev, price, i*30)
		}
		if price.LessThan(testFloorPrice) {
			t.Fatalf("Price %s fell below floor %s at +%ds", price, testFloorPrice, i*30)
		}
		prev = price
	}
}

func TestPriceIdempotent(t *testing.T) {
	now := testStartTime.Add(42 * time.Minute)
	first := priceAt(now)
	second := priceAt(now)
	if !first.Equal(second) {
		t.Errorf("Repeated evaluation differs: %s vs %s", first, second)
	}
}

func TestFractionalDecay(t *testing.T) {
	decay := decimal.RequireFromString("0.25")
	price := CurrentPrice(testStartPrice, testFloorPrice, decay, testInterval, testStartTime,
		testStartTime.Add(4*time.Minute))
	want := decimal.NewFromInt(99)
	if !price.Equal(want) {
		t.Errorf("Expected %s with fractional decay, got %s", want, price)
	}
}
