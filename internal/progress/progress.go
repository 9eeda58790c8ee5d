// internal/progress/progress.go
package progress

import (
	"math"

	"handoff-coordinator/internal/models"
)

// Band labels shown alongside the percentage. Lower bound inclusive,
// upper bound exclusive at the next tier.
const (
	BandJustStarted      = "Just Started"
	BandInProgress       = "In Progress"
	BandNearlyComplete   = "Nearly Complete"
	BandReadyForTransfer = "Ready for Transfer"
)

// Summary is the result of one progress computation.
type Summary struct {
	Percent       int    `json:"percent"`
	VerifiedCount int    `json:"verifiedCount"`
	TotalCount    int    `json:"totalCount"`
	Band          string `json:"band"`
}

// Compute maps a session's item set to a percentage and banded label.
// It is pure and order-invariant; callers recompute on every item-set
// change rather than updating incrementally, because verification can
// happen out of order.
func Compute(items []models.VerificationItem) Summary {
	total := len(items)
	verified := 0
	for _, item := range items {
		if item.IsVerified {
			verified++
		}
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(100 * float64(verified) / float64(total)))
	}

	return Summary{
		Percent:       percent,
		VerifiedCount: verified,
		TotalCount:    total,
		Band:          bandFor(percent),
	}
}

func bandFor(percent int) string {
	switch {
	case percent <= 25:
		return BandJustStarted
	case percent <= 50:
		return BandInProgress
	case percent <= 75:
		return BandNearlyComplete
	default:
		return BandReadyForTransfer
	}
}
