package types

import "errors"

// Chunk represents a semantically coherent passage of a source document.
// Chunks are created during ingestion and are immutable afterwards; they are
// destroyed only by a full re-ingestion of the owning document.
type Chunk struct {
	// Identification
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`

	// Content
	Content string `json:"content"`

	// Location (1-indexed, inclusive)
	PageStart int `json:"page_start"`
	PageEnd   int `json:"page_end"`

	// Structural metadata
	SectionTitle  string `json:"section_title"`
	SentenceCount int    `json:"sentence_count"`

	// IsComplete is false only when the chunker was forced to accumulate
	// past the maximum size to avoid splitting a sentence.
	IsComplete bool `json:"is_complete"`

	// Enrichment metadata, assigned by the final chunking pass
	ChunkIndex       int     `json:"chunk_index"`
	TotalChunks      int     `json:"total_chunks"`
	RelativePosition float64 `json:"relative_position"`
	WordCount        int     `json:"word_count"`
	UniqueWordRatio  float64 `json:"unique_word_ratio"`
	ContainsNumbers  bool    `json:"contains_numbers"`
	HasList          bool    `json:"has_list"`
}

// Validate checks the chunk's core invariants.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.PageStart <= 0 || c.PageEnd <= 0 {
		return errors.New("page numbers must be positive")
	}

	if c.PageStart > c.PageEnd {
		return errors.New("page start must be before or equal to page end")
	}

	return nil
}
