// Package cache memoizes end-to-end answers keyed by the normalized
// question, so rephrasings differing only in casing, spacing or terminal
// punctuation share an entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/pkg/types"
)

// DefaultMaxSize bounds the response cache.
const DefaultMaxSize = 100

var (
	punctRe = regexp.MustCompile(`[?.!]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Size         int     `json:"size"`
	MaxSize      int     `json:"max_size"`
	UsagePercent float64 `json:"usage_percent"`
}

// ResponseCache is a strict-capacity LRU of answered questions. LRU
// bookkeeping must be atomic per operation under concurrent requests, so
// every operation holds the mutex.
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	entries *lru.Cache[string, *types.CacheEntry]
}

// New creates a response cache. Non-positive sizes fall back to the default.
func New(maxSize int) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	entries, err := lru.New[string, *types.CacheEntry](maxSize)
	if err != nil {
		entries, _ = lru.New[string, *types.CacheEntry](DefaultMaxSize)
		maxSize = DefaultMaxSize
	}
	return &ResponseCache{maxSize: maxSize, entries: entries}
}

// Get returns the cached entry for any question in the same normalization
// equivalence class, refreshing its recency.
func (c *ResponseCache) Get(question string) (*types.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(Key(question))
	if ok {
		log.Debug().Str("question", question).Msg("response cache hit")
	}
	return entry, ok
}

// Set stores the answer and its contexts under the question's normalized
// key, evicting the least recently used entry at capacity.
func (c *ResponseCache) Set(question, answer string, contexts []types.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Add(Key(question), &types.CacheEntry{
		Answer:           answer,
		Contexts:         contexts,
		OriginalQuestion: question,
	})
}

// Clear drops every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	log.Debug().Msg("response cache cleared")
}

// Stats reports current occupancy.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.entries.Len()
	return Stats{
		Size:         size,
		MaxSize:      c.maxSize,
		UsagePercent: float64(size) / float64(c.maxSize) * 100,
	}
}

// Normalize lower-cases and trims the question, strips runs of terminal
// punctuation and collapses whitespace.
func Normalize(question string) string {
	normalized := strings.TrimSpace(strings.ToLower(question))
	normalized = punctRe.ReplaceAllString(normalized, "")
	normalized = spaceRe.ReplaceAllString(normalized, " ")
	return normalized
}

// Key is the stable content hash of the normalized question.
func Key(question string) string {
	h := sha256.Sum256([]byte(Normalize(question)))
	return hex.EncodeToString(h[:])
}
