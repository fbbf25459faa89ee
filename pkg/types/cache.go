package types

// CacheEntry is the value memoized by the response cache for one normalized
// question. OriginalQuestion preserves the exact phrasing that populated the
// entry; normalization-equivalent questions share it.
type CacheEntry struct {
	Answer           string         `json:"answer"`
	Contexts         []SearchResult `json:"contexts"`
	OriginalQuestion string         `json:"original_question"`
}
