// Package lexical implements BM25 term-frequency ranking over the chunk
// corpus, the sparse half of hybrid search.
package lexical

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
)

// BM25 parameters. k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Portuguese stopwords dropped during tokenization.
var stopwords = map[string]bool{
	"a": true, "o": true, "e": true, "de": true, "da": true, "do": true,
	"em": true, "um": true, "uma": true, "os": true, "as": true,
	"para": true, "com": true, "por": true, "é": true, "à": true,
	"ao": true, "na": true, "no": true, "dos": true, "das": true,
	"que": true, "se": true, "como": true, "mais": true, "mas": true,
	"foi": true, "são": true, "seu": true, "sua": true,
}

// Hit is one ranked corpus position with its score.
type Hit struct {
	Index int
	Score float64
}

// Index is a BM25 index over a fixed corpus. Fit builds it once at ingestion
// time; scoring is read-only and safe for concurrent use afterwards.
type Index struct {
	k1 float64
	b  float64

	corpus    []string
	termFreqs []map[string]int
	docLen    []int
	avgdl     float64
	idf       map[string]float64
}

// NewIndex creates an empty BM25 index with default parameters.
func NewIndex() *Index {
	return &Index{k1: DefaultK1, b: DefaultB}
}

// Fit indexes the corpus, computing per-term document frequencies and
// smoothed inverse document frequencies.
func (ix *Index) Fit(corpus []string) {
	ix.corpus = corpus
	ix.termFreqs = make([]map[string]int, len(corpus))
	ix.docLen = make([]int, len(corpus))
	ix.idf = make(map[string]float64)

	df := make(map[string]int)
	totalLen := 0
	for i, doc := range corpus {
		// Document length is the raw whitespace word count, stopwords
		// included.
		ix.docLen[i] = len(strings.Fields(doc))
		totalLen += ix.docLen[i]

		freqs := make(map[string]int)
		for _, tok := range Tokenize(doc) {
			freqs[tok]++
		}
		ix.termFreqs[i] = freqs
		for tok := range freqs {
			df[tok]++
		}
	}

	if len(corpus) > 0 {
		ix.avgdl = float64(totalLen) / float64(len(corpus))
	}

	n := float64(len(corpus))
	for term, freq := range df {
		f := float64(freq)
		ix.idf[term] = math.Log((n-f+0.5)/(f+0.5) + 1)
	}

	log.Debug().Int("documents", len(corpus)).Int("terms", len(ix.idf)).Msg("bm25 index built")
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.corpus)
}

// Scores computes the BM25 score of the query against every document, in
// corpus order. Documents sharing no surviving query term score 0.
func (ix *Index) Scores(query string) []float64 {
	scores := make([]float64, len(ix.corpus))
	queryTokens := Tokenize(query)

	for i := range ix.corpus {
		freqs := ix.termFreqs[i]
		docLen := float64(ix.docLen[i])

		var score float64
		for _, term := range queryTokens {
			idf, ok := ix.idf[term]
			if !ok {
				continue
			}
			tf := float64(freqs[term])
			numerator := tf * (ix.k1 + 1)
			denominator := tf + ix.k1*(1-ix.b+ix.b*(docLen/ix.avgdl))
			score += idf * (numerator / denominator)
		}
		scores[i] = score
	}

	return scores
}

// TopK returns the k best-scoring documents, positive scores only. Ties keep
// corpus order.
func (ix *Index) TopK(query string, k int) []Hit {
	scores := ix.Scores(query)

	ranked := make([]Hit, 0, len(scores))
	for i, s := range scores {
		ranked = append(ranked, Hit{Index: i, Score: s})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})

	hits := make([]Hit, 0, k)
	for _, h := range ranked {
		if len(hits) == k {
			break
		}
		if h.Score > 0 {
			hits = append(hits, h)
		}
	}
	return hits
}

// Tokenize lower-cases the text, strips non-word characters, and drops short
// tokens and stopwords.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if stopwords[tok] || len([]rune(tok)) <= 2 {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
