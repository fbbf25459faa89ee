package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aiyelab/aiye/pkg/types"
)

// Default chunk sizing, in characters.
const (
	DefaultTargetSize = 800
	DefaultMaxSize    = 1200
	DefaultMinSize    = 200

	// Overlap between consecutive chunks: max(MinOverlap, OverlapRatio*len).
	MinOverlap   = 150
	OverlapRatio = 0.18
)

var (
	paragraphRe  = regexp.MustCompile(`\n\s*\n`)
	numberedRe   = regexp.MustCompile(`^(\d+\.|\d+\)|\d+\s)`)
	digitRe      = regexp.MustCompile(`\d+`)
	listMarkerRe = regexp.MustCompile(`(\n\s*[-•*]\s|\n\s*\d+[.)]\s)`)
)

// Options controls chunk sizing.
type Options struct {
	TargetSize int
	MaxSize    int
	MinSize    int
}

// DefaultOptions returns the sizing used in production.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MaxSize:    DefaultMaxSize,
		MinSize:    DefaultMinSize,
	}
}

// Chunker segments page texts into chunks.
type Chunker struct {
	opts Options
}

// New creates a Chunker with the given options, falling back to defaults for
// non-positive values.
func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.TargetSize <= 0 {
		opts.TargetSize = def.TargetSize
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.MinSize <= 0 {
		opts.MinSize = def.MinSize
	}
	return &Chunker{opts: opts}
}

// Chunk segments the ordered page texts of one document into enriched chunks.
// Page numbers are 1-indexed. Document and chunk ids are assigned by the
// caller at ingestion.
func (c *Chunker) Chunk(pages []string) []types.Chunk {
	var chunks []types.Chunk

	for pageNum, pageText := range pages {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		chunks = append(chunks, c.chunkPage(pageText, pageNum+1)...)
	}

	chunks = c.mergeSmallChunks(chunks)
	enrich(chunks)
	return chunks
}

// chunkPage greedily accumulates sentences into chunks for a single page.
func (c *Chunker) chunkPage(pageText string, page int) []types.Chunk {
	sectionTitle := extractSectionTitle(pageText)

	var chunks []types.Chunk
	var buffer string
	var bufSentences []string
	forced := false

	closeChunk := func() {
		chunks = append(chunks, types.Chunk{
			Content:       strings.TrimSpace(buffer),
			PageStart:     page,
			PageEnd:       page,
			SectionTitle:  sectionTitle,
			SentenceCount: len(bufSentences),
			IsComplete:    !forced,
		})
		forced = false
	}

	for _, para := range splitParagraphs(pageText) {
		for _, sentence := range SplitSentences(para) {
			test := sentence
			if buffer != "" {
				test = buffer + " " + sentence
			}

			if len(test) <= c.opts.MaxSize {
				buffer = test
				bufSentences = append(bufSentences, sentence)
				continue
			}

			if len(buffer) >= c.opts.MinSize {
				closeChunk()

				// Seed the next buffer with trailing sentences of the
				// closed chunk up to the adaptive overlap budget.
				overlap := trailingOverlap(bufSentences, overlapBudget(len(buffer)))
				if overlap != "" {
					buffer = overlap + " " + sentence
				} else {
					buffer = sentence
				}
				bufSentences = []string{sentence}
			} else {
				// Too small to close: accept an oversized chunk rather
				// than splitting the sentence.
				buffer = test
				bufSentences = append(bufSentences, sentence)
				forced = true
			}
		}
	}

	if strings.TrimSpace(buffer) != "" && len(buffer) >= c.opts.MinSize {
		closeChunk()
	}

	return chunks
}

// mergeSmallChunks folds chunks below MinSize into their immediate neighbor
// when both originate from pages at most one apart.
func (c *Chunker) mergeSmallChunks(chunks []types.Chunk) []types.Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	merged := make([]types.Chunk, 0, len(chunks))
	i := 0
	for i < len(chunks) {
		cur := chunks[i]

		if len(cur.Content) < c.opts.MinSize && i+1 < len(chunks) {
			next := chunks[i+1]
			if abs(cur.PageStart-next.PageStart) <= 1 {
				title := cur.SectionTitle
				if title == "" {
					title = next.SectionTitle
				}
				merged = append(merged, types.Chunk{
					Content:       cur.Content + " " + next.Content,
					PageStart:     cur.PageStart,
					PageEnd:       next.PageEnd,
					SectionTitle:  title,
					SentenceCount: cur.SentenceCount + next.SentenceCount,
					IsComplete:    true,
				})
				i += 2
				continue
			}
		}

		merged = append(merged, cur)
		i++
	}
	return merged
}

// enrich assigns positional metadata and content statistics in place.
func enrich(chunks []types.Chunk) {
	total := len(chunks)
	for i := range chunks {
		ch := &chunks[i]
		ch.ChunkIndex = i
		ch.TotalChunks = total
		if total > 0 {
			ch.RelativePosition = float64(i) / float64(total)
		}

		words := strings.Fields(strings.ToLower(ch.Content))
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		ch.WordCount = len(words)
		if len(words) > 0 {
			ch.UniqueWordRatio = float64(len(unique)) / float64(len(words))
		}

		ch.ContainsNumbers = digitRe.MatchString(ch.Content)
		ch.HasList = listMarkerRe.MatchString(ch.Content)
	}
}

// overlapBudget computes the adaptive overlap size for a closed chunk.
func overlapBudget(chunkLen int) int {
	budget := int(float64(chunkLen) * OverlapRatio)
	if budget < MinOverlap {
		budget = MinOverlap
	}
	return budget
}

// trailingOverlap collects trailing sentences whose combined length fits the
// budget, preserving their original order.
func trailingOverlap(sentences []string, budget int) string {
	var overlap string
	for i := len(sentences) - 1; i >= 0; i-- {
		s := sentences[i]
		if len(overlap)+len(s) > budget {
			break
		}
		if overlap == "" {
			overlap = s
		} else {
			overlap = s + " " + overlap
		}
	}
	return strings.TrimSpace(overlap)
}

// extractSectionTitle guesses a section heading from the first line of a
// page: short all-caps lines, chapter numbering, or very short phrases.
func extractSectionTitle(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 {
		return ""
	}
	first := strings.TrimSpace(lines[0])
	if first == "" {
		return ""
	}

	if len(first) < 80 && isUpperLine(first) {
		return first
	}
	if numberedRe.MatchString(first) {
		return first
	}
	if len(strings.Fields(first)) <= 5 && len(first) < 50 {
		return first
	}
	return ""
}

// isUpperLine reports whether the line contains letters and none of them is
// lower case.
func isUpperLine(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range paragraphRe.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
