package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiyelab/aiye/pkg/types"
)

func corpus() []string {
	return []string{
		"O Orixá Exu é o guardião das encruzilhadas.",
		"Iemanjá é a rainha do mar e protetora dos pescadores.",
		"O terreiro abre suas giras todas as sextas-feiras.",
		"Receitas de bolo de fubá com erva-doce.",
	}
}

func denseFor(indices []int, scores []float64) []types.SearchResult {
	c := corpus()
	out := make([]types.SearchResult, len(indices))
	for i, idx := range indices {
		out[i] = types.SearchResult{Content: c[idx], Score: scores[i]}
	}
	return out
}

func TestSearch_EmptyCorpusPassesThrough(t *testing.T) {
	s := New(nil, DefaultAlpha)
	dense := denseFor([]int{0, 1}, []float64{0.9, 0.8})

	got := s.Search("qualquer pergunta", dense, 1)
	require.Len(t, got, 1)
	assert.Equal(t, dense[0].Content, got[0].Content)
	assert.Zero(t, got[0].HybridScore)
}

func TestSearch_KeywordMatchBoostsResult(t *testing.T) {
	s := New(corpus(), DefaultAlpha)

	// Dense order slightly favors the Iemanjá chunk; keywords should pull
	// the Exu chunk up.
	dense := denseFor([]int{1, 0, 2}, []float64{0.62, 0.61, 0.40})

	got := s.Search("quem é o guardião das encruzilhadas exu", dense, 3)
	require.Len(t, got, 3)
	assert.Contains(t, got[0].Content, "Exu")
	assert.True(t, got[0].BM25Boosted)
	assert.Greater(t, got[0].HybridScore, got[1].HybridScore)
}

func TestSearch_PureDenseAlpha(t *testing.T) {
	s := New(corpus(), 1.0)
	dense := denseFor([]int{1, 0}, []float64{0.9, 0.5})

	got := s.Search("guardião encruzilhadas", dense, 2)
	require.Len(t, got, 2)
	// Alpha 1 keeps the dense order regardless of keywords.
	assert.Contains(t, got[0].Content, "Iemanjá")
	assert.Equal(t, 0.9, got[0].HybridScore)
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	s := New(corpus(), DefaultAlpha)
	dense := denseFor([]int{0, 1, 2, 3}, []float64{0.9, 0.8, 0.7, 0.6})

	got := s.Search("terreiro giras", dense, 2)
	assert.Len(t, got, 2)
}

func TestSearch_NoKeywordOverlapKeepsDenseOrder(t *testing.T) {
	s := New(corpus(), DefaultAlpha)
	dense := denseFor([]int{2, 3}, []float64{0.7, 0.5})

	got := s.Search("xxxxx yyyyy zzzzz", dense, 2)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Content, "terreiro")
	assert.False(t, got[0].BM25Boosted)
}

func TestCorpusLen(t *testing.T) {
	s := New(corpus(), DefaultAlpha)
	assert.Equal(t, 4, s.CorpusLen())
}
