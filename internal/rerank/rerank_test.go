package rerank

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiyelab/aiye/pkg/types"
)

func TestKeywordOverlap(t *testing.T) {
	content := "O Orixá Exu é o guardião das encruzilhadas."

	// "quem" misses, "exu" and "guardião" hit; "é" and "o" are stopwords.
	got := keywordOverlap("quem é o guardião exu", content)
	assert.InDelta(t, 2.0/3.0, got, 1e-9)

	assert.Zero(t, keywordOverlap("é o de da", content))
	assert.Equal(t, 1.0, keywordOverlap("exu", content))
}

func TestPositionScore(t *testing.T) {
	assert.Equal(t, 1.0, positionScore(0))
	assert.InDelta(t, 1.0/1.5, positionScore(1), 1e-9)
	assert.Greater(t, positionScore(1), positionScore(5))
}

func TestQualityScore_Bands(t *testing.T) {
	// Ideal: mid-length, several sentences, reasonable word density.
	ideal := strings.Repeat("As giras acontecem no terreiro. ", 12)
	assert.Equal(t, 1.0, qualityScore(ideal))

	// Tiny fragment: no length credit, one sentence, decent density.
	assert.InDelta(t, 0.45, qualityScore("Exu é guardião."), 1e-9)

	// Good length and density but no terminal punctuation.
	assert.InDelta(t, 0.7, qualityScore(strings.Repeat("palavra ", 60)), 1e-9)
}

func TestRerank_OrdersByCompositeScore(t *testing.T) {
	results := []types.SearchResult{
		{Content: "Receitas de bolo de fubá. Nada sobre o tema. Apenas culinária regional mineira e seus doces tradicionais, preparados em fornos a lenha durante as festas juninas do interior. As receitas passam de geração em geração nas famílias.", Score: 0.55},
		{Content: "O Orixá Exu é o guardião das encruzilhadas. Ele abre os caminhos nas giras de Umbanda. Seu papel é protegido por tradição.", Score: 0.50},
	}

	got := Rerank("quem é exu o guardião das encruzilhadas", results)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Content, "Exu")
	require.NotNil(t, got[0].RerankDetails)
	assert.Greater(t, got[0].RerankDetails.Keywords, got[1].RerankDetails.Keywords)
	assert.Greater(t, got[0].FinalScore, got[1].FinalScore)
}

func TestRerank_PureAndStable(t *testing.T) {
	results := []types.SearchResult{
		{Content: "primeiro", Score: 0.5},
		{Content: "segundo", Score: 0.5},
	}

	got := Rerank("pergunta sem relação", results)
	require.Len(t, got, 2)

	// Inputs untouched.
	assert.Zero(t, results[0].FinalScore)
	assert.Nil(t, results[0].RerankDetails)

	// Position signal breaks the tie in favor of the original first result.
	assert.Equal(t, "primeiro", got[0].Content)
}

func TestRerank_Empty(t *testing.T) {
	assert.Empty(t, Rerank("pergunta", nil))
}
