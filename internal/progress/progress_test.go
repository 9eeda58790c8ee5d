// internal/progress/progress_test.go
package progress

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"handoff-coordinator/internal/models"
)

func makeItems(total, verified int) []models.VerificationItem {
	items := make([]models.VerificationItem, total)
	for i := range items {
		items[i] = models.VerificationItem{
			ID:         string(rune('a' + i)),
			FieldName:  "field",
			IsVerified: i < verified,
		}
	}
	return items
}

func TestCompute_Percentages(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		verified     int
		wantPercent  int
		wantBand     string
	}{
		{"empty set is zero", 0, 0, 0, BandJustStarted},
		{"none verified", 10, 0, 0, BandJustStarted},
		{"quarter done", 4, 1, 25, BandJustStarted},
		{"just past first band", 10, 3, 30, BandInProgress},
		{"half done", 10, 5, 50, BandInProgress},
		{"rounds half up", 3, 2, 67, BandNearlyComplete},
		{"eight of ten", 10, 8, 80, BandReadyForTransfer},
		{"all verified", 10, 10, 100, BandReadyForTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(makeItems(tt.total, tt.verified))
			assert.Equal(t, tt.wantPercent, got.Percent)
			assert.Equal(t, tt.wantBand, got.Band)
			assert.Equal(t, tt.verified, got.VerifiedCount)
			assert.Equal(t, tt.total, got.TotalCount)
		})
	}
}

func TestCompute_OrderInvariant(t *testing.T) {
	items := makeItems(10, 4)

	base := Compute(items)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(items), func(a, b int) { items[a], items[b] = items[b], items[a] })
		assert.Equal(t, base, Compute(items))
	}
}

func TestCompute_Idempotent(t *testing.T) {
	items := makeItems(7, 3)

	first := Compute(items)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Compute(items))
	}
}

func TestCompute_BandEdges(t *testing.T) {
	// Lower bound inclusive, upper bound exclusive at the next tier.
	assert.Equal(t, BandJustStarted, Compute(makeItems(100, 25)).Band)
	assert.Equal(t, BandInProgress, Compute(makeItems(100, 26)).Band)
	assert.Equal(t, BandInProgress, Compute(makeItems(100, 50)).Band)
	assert.Equal(t, BandNearlyComplete, Compute(makeItems(100, 51)).Band)
	assert.Equal(t, BandNearlyComplete, Compute(makeItems(100, 75)).Band)
	assert.Equal(t, BandReadyForTransfer, Compute(makeItems(100, 76)).Band)
}
