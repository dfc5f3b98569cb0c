package auction

import (
	"fmt"
	"time"

	"fairdrop-auction-go/internal/models"
)

// bidWindow is the outcome of checking an auction's lifecycle state against
// an incoming bid: either the bid may proceed (optionally after a
// Scheduled→Active transition) or it is rejected with a reason.
type bidWindow struct {
	activate bool
	reason   string
}

func (w bidWindow) rejected() bool {
	return w.reason != ""
}

// checkBidWindow decides whether a bid evaluated at now is admissible.
// Expiry of an Active auction is handled by the caller before this check,
// because it has a settlement side effect; here an expired Active auction is
// only re-detected as a plain rejection.
func checkBidWindow(status models.AuctionStatus, startTime, endTime, now time.Time) bidWindow {
	if status == models.StatusScheduled {
		if !now.Before(startTime) {
			return bidWindow{activate: true}
		}
		return bidWindow{reason: fmt.Sprintf("Auction not started yet. Starts at: %s", startTime.Format(time.RFC3339))}
	}

	if status == models.StatusActive && now.After(endTime) {
		return bidWindow{reason: fmt.Sprintf("Auction expired at: %s", endTime.Format(time.RFC3339))}
	}

	if status != models.StatusActive {
		return bidWindow{reason: "Auction not active"}
	}
	return bidWindow{}
}
