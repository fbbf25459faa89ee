package types

// RerankDetails is the per-signal breakdown attached to a result by the
// re-ranker, kept for observability and testing.
type RerankDetails struct {
	Semantic float64 `json:"semantic"`
	Keywords float64 `json:"keywords"`
	Position float64 `json:"position"`
	Quality  float64 `json:"quality"`
}

// SearchResult is the per-query record produced by retrieval. It is
// ephemeral: built from chunk and document metadata on every query and
// enriched as it moves through the hybrid and re-ranking stages.
type SearchResult struct {
	Content   string  `json:"content"`
	Title     string  `json:"title"`
	PageStart int     `json:"page_start"`
	PageEnd   int     `json:"page_end"`
	URI       string  `json:"uri"`
	Score     float64 `json:"score"`

	// Provenance, filled in by later stages
	MatchedQuery  string         `json:"matched_query,omitempty"`
	HybridScore   float64        `json:"hybrid_score,omitempty"`
	BM25Boosted   bool           `json:"bm25_boosted,omitempty"`
	FinalScore    float64        `json:"final_score,omitempty"`
	RerankDetails *RerankDetails `json:"rerank_details,omitempty"`
}

// BestScore returns the re-ranked score when present, falling back to the
// dense similarity score.
func (r *SearchResult) BestScore() float64 {
	if r.RerankDetails != nil {
		return r.FinalScore
	}
	return r.Score
}
