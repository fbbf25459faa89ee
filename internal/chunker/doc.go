// Package chunker divides page texts into semantically coherent passages for
// embedding and search.
//
// Chunks are built by greedily accumulating sentences, so no chunk ever ends
// mid-sentence. Paragraph boundaries (blank lines) are respected when
// possible, and consecutive chunks share an adaptive overlap of trailing
// sentences to preserve context across boundaries.
//
// # Basic Usage
//
//	c := chunker.New(chunker.DefaultOptions())
//	chunks := c.Chunk(pages)
//
//	for _, ch := range chunks {
//	    fmt.Printf("pp. %d-%d: %d sentences\n", ch.PageStart, ch.PageEnd, ch.SentenceCount)
//	}
//
// # Sizing
//
// Accumulation targets MaxSize as a hard limit and MinSize as the smallest
// chunk worth closing. A sentence that would overflow MaxSize closes the
// current chunk only when it already meets MinSize; otherwise the sentence is
// force-appended and the eventual chunk is flagged IsComplete=false rather
// than being split mid-sentence. Trailing sub-minimum content at the end of a
// page is dropped unless the merge pass can fold it into a neighbor from the
// same or an adjacent page.
//
// # Enrichment
//
// A final pass assigns positional metadata (chunk index, relative position)
// and content statistics (word count, unique-word ratio, number and list
// detection) used by the re-ranker and for observability.
package chunker
