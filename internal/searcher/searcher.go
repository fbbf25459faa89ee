// Package searcher implements hybrid retrieval: the dense candidate set from
// vector search is re-ordered by fusing it with a BM25 keyword ranking over
// the same corpus.
package searcher

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/internal/lexical"
	"github.com/aiyelab/aiye/internal/rank"
	"github.com/aiyelab/aiye/pkg/types"
)

// DefaultAlpha is the dense weight: 65% semantic, 35% keywords.
const DefaultAlpha = 0.65

// Results whose sparse rank is within this bound are marked BM25Boosted.
const boostTop = 5

// Searcher fuses dense results with BM25 rankings over a fixed chunk corpus.
// Built once per corpus snapshot; Search is read-only and safe for concurrent
// use.
type Searcher struct {
	alpha  float64
	corpus []string
	bm25   *lexical.Index
}

// New indexes the chunk contents for sparse ranking. Corpus order must match
// the vector index so dense and sparse halves describe the same snapshot.
func New(corpus []string, alpha float64) *Searcher {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}

	bm25 := lexical.NewIndex()
	bm25.Fit(corpus)

	log.Debug().Int("corpus", len(corpus)).Float64("alpha", alpha).Msg("hybrid searcher indexed")
	return &Searcher{alpha: alpha, corpus: corpus, bm25: bm25}
}

// CorpusLen reports the indexed corpus size, used to detect stale snapshots.
func (s *Searcher) CorpusLen() int {
	return len(s.corpus)
}

// Search re-orders the dense candidates by weighted RRF with the BM25
// ranking for the query and truncates to topK. With an empty corpus the
// dense results pass through unfused.
//
// Sparse candidates are cross-referenced into the dense set by exact content
// equality, so two chunks with identical text are conflated; ingestion keeps
// chunk contents unique per snapshot.
func (s *Searcher) Search(query string, dense []types.SearchResult, topK int) []types.SearchResult {
	if len(s.corpus) == 0 {
		if topK < len(dense) {
			return dense[:topK]
		}
		return dense
	}

	denseRanking := make([]lexical.Hit, len(dense))
	contentToDense := make(map[string]int, len(dense))
	for i, res := range dense {
		denseRanking[i] = lexical.Hit{Index: i, Score: res.Score}
		contentToDense[res.Content] = i
	}

	sparseScores := s.bm25.Scores(query)
	var sparseRanking []lexical.Hit
	for corpusIdx, score := range sparseScores {
		if score <= 0 {
			continue
		}
		if denseIdx, ok := contentToDense[s.corpus[corpusIdx]]; ok {
			sparseRanking = append(sparseRanking, lexical.Hit{Index: denseIdx, Score: score})
		}
	}
	sort.SliceStable(sparseRanking, func(a, b int) bool {
		return sparseRanking[a].Score > sparseRanking[b].Score
	})

	boosted := make(map[int]bool, boostTop)
	for i, hit := range sparseRanking {
		if i == boostTop {
			break
		}
		boosted[hit.Index] = true
	}

	combined := rank.FuseWeighted(denseRanking, sparseRanking, s.alpha)

	out := make([]types.SearchResult, 0, topK)
	for _, hit := range combined {
		if len(out) == topK {
			break
		}
		if hit.Index < 0 || hit.Index >= len(dense) {
			continue
		}
		res := dense[hit.Index]
		res.HybridScore = hit.Score
		res.BM25Boosted = boosted[hit.Index]
		out = append(out, res)
	}

	log.Debug().Int("dense", len(dense)).Int("hybrid", len(out)).Msg("hybrid fusion complete")
	return out
}
