// Package rerank re-orders retrieved results by a composite of four
// relevance signals: dense similarity, keyword overlap, original rank
// position and content quality heuristics.
package rerank

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/pkg/types"
)

// Weights of the composite score.
const (
	WeightSemantic = 0.50
	WeightKeywords = 0.25
	WeightPosition = 0.10
	WeightQuality  = 0.15
)

// Stopwords ignored for keyword overlap. A wider net than the BM25 set:
// question words carry no keyword signal.
var stopwords = map[string]bool{
	"a": true, "o": true, "e": true, "de": true, "da": true, "do": true,
	"em": true, "para": true, "com": true, "por": true, "um": true,
	"uma": true, "os": true, "as": true, "dos": true, "das": true,
	"que": true, "é": true, "no": true, "na": true, "são": true,
	"se": true, "foi": true, "como": true, "qual": true, "quais": true,
	"quando": true, "onde": true, "porque": true,
}

// Rerank scores every result against the query and returns them sorted by
// FinalScore descending, ties keeping the incoming order. Pure: inputs are
// not mutated.
func Rerank(query string, results []types.SearchResult) []types.SearchResult {
	if len(results) == 0 {
		return results
	}

	reranked := make([]types.SearchResult, len(results))
	copy(reranked, results)

	for i := range reranked {
		semantic := reranked[i].Score
		keywords := keywordOverlap(query, reranked[i].Content)
		position := positionScore(i)
		quality := qualityScore(reranked[i].Content)

		reranked[i].FinalScore = WeightSemantic*semantic +
			WeightKeywords*keywords +
			WeightPosition*position +
			WeightQuality*quality
		reranked[i].RerankDetails = &types.RerankDetails{
			Semantic: semantic,
			Keywords: keywords,
			Position: position,
			Quality:  quality,
		}
	}

	sort.SliceStable(reranked, func(a, b int) bool {
		return reranked[a].FinalScore > reranked[b].FinalScore
	})

	log.Debug().Str("query", query).Int("results", len(reranked)).Msg("results reranked")
	return reranked
}

// keywordOverlap is the fraction of non-stopword query words that appear as
// substrings of the lower-cased content.
func keywordOverlap(query, content string) float64 {
	words := make(map[string]bool)
	for _, w := range splitWords(strings.ToLower(query)) {
		if !stopwords[w] {
			words[w] = true
		}
	}
	if len(words) == 0 {
		return 0
	}

	contentLower := strings.ToLower(content)
	matches := 0
	for w := range words {
		if strings.Contains(contentLower, w) {
			matches++
		}
	}
	return float64(matches) / float64(len(words))
}

// positionScore decays with the original zero-based rank: 1.0 for the first
// result, approaching 0 for late ones.
func positionScore(rank int) float64 {
	return 1.0 / (1.0 + float64(rank)*0.5)
}

// qualityScore grades the content on length, sentence structure and word
// density, capped at 1.
func qualityScore(content string) float64 {
	var score float64

	length := len(content)
	switch {
	case length >= 300 && length <= 1500:
		score += 0.4
	case (length >= 150 && length < 300) || (length > 1500 && length <= 2000):
		score += 0.2
	}

	sentences := countSentenceBreaks(content)
	switch {
	case sentences >= 3:
		score += 0.3
	case sentences >= 1:
		score += 0.15
	}

	words := len(strings.Fields(content))
	if words > 0 {
		charsPerWord := float64(length) / float64(words)
		switch {
		case charsPerWord >= 4 && charsPerWord <= 8:
			score += 0.3
		case (charsPerWord >= 3 && charsPerWord < 4) || (charsPerWord > 8 && charsPerWord <= 10):
			score += 0.15
		}
	}

	if score > 1 {
		score = 1
	}
	return score
}

// countSentenceBreaks counts runs of terminal punctuation.
func countSentenceBreaks(content string) int {
	count := 0
	inRun := false
	for _, r := range content {
		if r == '.' || r == '!' || r == '?' {
			if !inRun {
				count++
				inRun = true
			}
		} else {
			inRun = false
		}
	}
	return count
}

// splitWords splits on anything that is not a letter, digit or underscore.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
