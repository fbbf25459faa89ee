// Package rank implements Reciprocal Rank Fusion, the rank-position method
// used to merge dense and sparse retrieval orderings without comparable
// score scales.
package rank

import (
	"math"
	"sort"

	"github.com/aiyelab/aiye/internal/lexical"
)

// DefaultK is the RRF smoothing constant.
const DefaultK = 60

// Fuse combines the given rankings into one ordering. Every item at
// zero-based rank r in a ranking contributes 1/(k+r) to its total; items
// absent from a ranking contribute nothing from it. Ties keep ascending id
// order so the output is deterministic.
func Fuse(rankings [][]lexical.Hit, k float64) []lexical.Hit {
	if k == 0 {
		k = DefaultK
	}

	totals := make(map[int]float64)
	for _, ranking := range rankings {
		for r, hit := range ranking {
			totals[hit.Index] += 1.0 / (k + float64(r))
		}
	}

	fused := make([]lexical.Hit, 0, len(totals))
	for id, score := range totals {
		fused = append(fused, lexical.Hit{Index: id, Score: score})
	}
	sort.Slice(fused, func(a, b int) bool {
		if fused[a].Score != fused[b].Score {
			return fused[a].Score > fused[b].Score
		}
		return fused[a].Index < fused[b].Index
	})
	return fused
}

// FuseWeighted fuses a dense and a sparse ranking, approximating the
// continuous weight alpha by replicating each list an integer number of
// times (round(alpha*100) dense copies, round((1-alpha)*100) sparse copies).
// Alpha of exactly 0 or 1 bypasses the approximation and returns the single
// ranking untouched.
func FuseWeighted(dense, sparse []lexical.Hit, alpha float64) []lexical.Hit {
	switch alpha {
	case 1.0:
		return dense
	case 0.0:
		return sparse
	}

	denseWeight := int(math.Round(alpha * 100))
	sparseWeight := int(math.Round((1 - alpha) * 100))

	rankings := make([][]lexical.Hit, 0, denseWeight+sparseWeight)
	for i := 0; i < denseWeight; i++ {
		rankings = append(rankings, dense)
	}
	for i := 0; i < sparseWeight; i++ {
		rankings = append(rankings, sparse)
	}

	return Fuse(rankings, DefaultK)
}
