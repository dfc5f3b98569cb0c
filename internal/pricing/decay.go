package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentPrice computes the Dutch-decay price of an auction at a given
// evaluation time. The price starts at startPrice, drops by decayAmount once
// per full decayInterval elapsed since startTime, and never goes below
// floorPrice. Before startTime the price is simply startPrice.
//
// This is a pure function: the engine and the query layer both evaluate it
// on demand instead of running a scheduled decay job.
//
// decayInterval must be at least one microsecond; that is enforced when
// auction parameters are validated at creation time, not here.
func CurrentPrice(
	startPrice decimal.Decimal,
	floorPrice decimal.Decimal,
	decayAmount decimal.Decimal,
	decayInterval time.Duration,
	startTime time.Time,
	now time.Time,
) decimal.Decimal {
	if now.Before(startTime) {
		return startPrice
	}

	elapsedMicros := now.Sub(startTime).Microseconds()
	intervals := elapsedMicros / decayInterval.Microseconds()

	totalDecay := decayAmount.Mul(decimal.NewFromInt(intervals))

	price := startPrice.Sub(totalDecay)
	if price.LessThan(floorPrice) {
		return floorPrice
	}
	return price
}
