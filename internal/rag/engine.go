// Package rag coordinates the full question-answering pipeline: query
// expansion, dense retrieval, hybrid fusion, re-ranking, grounded generation
// and the response cache.
package rag

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/aiyelab/aiye/internal/cache"
	"github.com/aiyelab/aiye/internal/chunker"
	"github.com/aiyelab/aiye/internal/embedder"
	"github.com/aiyelab/aiye/internal/expander"
	"github.com/aiyelab/aiye/internal/generator"
	"github.com/aiyelab/aiye/internal/rerank"
	"github.com/aiyelab/aiye/internal/searcher"
	"github.com/aiyelab/aiye/internal/vindex"
	"github.com/aiyelab/aiye/pkg/types"
)

// Pipeline defaults.
const (
	DefaultTopK   = 8
	DefaultMinSim = 0.30

	// Questions shorter than this are rejected before any retrieval work.
	minQuestionRunes = 3

	// Bound on concurrent embedding calls during ingestion.
	embedWorkers = 4
)

// Config tunes the engine.
type Config struct {
	IndexDir string
	TopK     int
	MinSim   float64
	Alpha    float64

	// Chunking sizes; zero values fall back to the chunker defaults.
	Chunking chunker.Options
}

// Deps are the engine's collaborators. Expander and Cache may be nil; the
// engine then builds defaults (synonym-only expansion, default-size cache).
type Deps struct {
	Embedder  embedder.Embedder
	Generator generator.Generator
	Expander  *expander.Expander
	Cache     *cache.ResponseCache
}

// Engine owns the corpus snapshot (vector index, metadata, sparse index) and
// runs the query pipeline against it. Ingestion is the single writer;
// serving reads the snapshot under the read lock.
type Engine struct {
	cfg      Config
	embedder embedder.Embedder
	gen      generator.Generator
	expander *expander.Expander
	cache    *cache.ResponseCache
	chunker  *chunker.Chunker

	mu     sync.RWMutex
	index  *vindex.Index
	meta   *types.IndexMetadata
	hybrid *searcher.Searcher
}

// New loads the persisted index from cfg.IndexDir (degrading to an empty
// snapshot when missing or corrupt) and builds the sparse index over it.
func New(cfg Config, deps Deps) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinSim <= 0 {
		cfg.MinSim = DefaultMinSim
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = searcher.DefaultAlpha
	}
	if deps.Expander == nil {
		deps.Expander = expander.New(nil, false)
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.DefaultMaxSize)
	}

	index, meta := vindex.Load(cfg.IndexDir, deps.Embedder.Dimension())

	e := &Engine{
		cfg:      cfg,
		embedder: deps.Embedder,
		gen:      deps.Generator,
		expander: deps.Expander,
		cache:    deps.Cache,
		chunker:  chunker.New(cfg.Chunking),
		index:    index,
		meta:     meta,
	}
	e.hybrid = searcher.New(chunkContents(meta.Chunks), cfg.Alpha)
	return e
}

// Cache exposes the response cache for stats and administration endpoints.
func (e *Engine) Cache() *cache.ResponseCache {
	return e.cache
}

// ChunkCount reports the indexed corpus size.
func (e *Engine) ChunkCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.meta.Chunks)
}

// AddDocument chunks the page texts, embeds them with bounded concurrency,
// and appends vectors and chunk metadata in lockstep before persisting the
// snapshot. Returns the new document record and its chunk count.
func (e *Engine) AddDocument(ctx context.Context, title, sourceURI string, pages []string) (*types.Document, int, error) {
	chunks := e.chunker.Chunk(pages)
	if len(chunks) == 0 {
		log.Warn().Str("title", title).Msg("document produced no chunks")
		return nil, 0, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i := range chunks {
		i := i
		g.Go(func() error {
			emb, err := e.embedder.GenerateEmbedding(gctx, chunks[i].Content)
			if err != nil {
				return err
			}
			vectors[i] = vindex.Normalize(emb.Vector)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	doc := types.Document{
		DocumentID: uuid.NewString(),
		Title:      title,
		SourceURI:  sourceURI,
		Pages:      len(pages),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.Add(vectors); err != nil {
		return nil, 0, err
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.DocumentID
		chunks[i].ChunkID = uuid.NewString()
	}
	e.meta.Documents = append(e.meta.Documents, doc)
	e.meta.Chunks = append(e.meta.Chunks, chunks...)

	if err := e.index.Save(e.cfg.IndexDir, e.meta); err != nil {
		return nil, 0, err
	}
	e.hybrid = searcher.New(chunkContents(e.meta.Chunks), e.cfg.Alpha)

	log.Info().Str("title", title).Int("chunks", len(chunks)).Int("total", len(e.meta.Chunks)).Msg("document indexed")
	return &doc, len(chunks), nil
}

// Retrieve runs the retrieval half of the pipeline: expansion, per-variant
// dense search, similarity filtering, content deduplication, hybrid fusion
// and re-ranking, truncated to topK. Non-positive topK and minSim fall back
// to the engine defaults.
func (e *Engine) Retrieve(ctx context.Context, question string, topK int, minSim float64) ([]types.SearchResult, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	if minSim <= 0 {
		minSim = e.cfg.MinSim
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index.Len() == 0 {
		return nil, nil
	}

	variants := e.expander.Expand(ctx, question)
	searchK := topK * len(variants)
	docs := e.meta.DocumentByID()

	// Dedup by content, keeping the best score across variants. Insertion
	// order is preserved so downstream ranks are deterministic.
	byContent := make(map[string]int)
	var results []types.SearchResult

	for _, variant := range variants {
		emb, err := e.embedder.GenerateEmbedding(ctx, variant)
		if err != nil {
			return nil, err
		}

		hits, err := e.index.Search(vindex.Normalize(emb.Vector), searchK)
		if err != nil {
			return nil, err
		}

		for _, hit := range hits {
			// Malformed ids from the index are skipped, not fatal.
			if hit.Index < 0 || hit.Index >= len(e.meta.Chunks) {
				continue
			}
			if hit.Score < minSim {
				continue
			}

			chunk := e.meta.Chunks[hit.Index]
			if pos, seen := byContent[chunk.Content]; seen {
				if hit.Score > results[pos].Score {
					results[pos].Score = hit.Score
					results[pos].MatchedQuery = variant
				}
				continue
			}

			doc := docs[chunk.DocumentID]
			byContent[chunk.Content] = len(results)
			results = append(results, types.SearchResult{
				Content:      chunk.Content,
				Title:        doc.Title,
				PageStart:    chunk.PageStart,
				PageEnd:      chunk.PageEnd,
				URI:          doc.SourceURI,
				Score:        hit.Score,
				MatchedQuery: variant,
			})
		}
	}

	log.Debug().Str("question", question).Int("variants", len(variants)).Int("candidates", len(results)).Msg("dense retrieval complete")
	if len(results) == 0 {
		return nil, nil
	}

	results = e.hybrid.Search(question, results, topK*2)
	results = rerank.Rerank(question, results)

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// AnswerWithCache is the end-to-end operation: cache lookup, retrieval,
// grounded generation, cache store. A hit returns the cached answer and
// contexts verbatim without re-running retrieval. Empty retrievals
// short-circuit to the canonical not-found answer without calling the
// generator.
func (e *Engine) AnswerWithCache(ctx context.Context, question string, topK int, minSim float64, history []generator.Turn) (string, []types.SearchResult, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) < minQuestionRunes {
		return "", nil, types.ErrQuestionTooShort
	}

	if entry, ok := e.cache.Get(question); ok {
		return entry.Answer, entry.Contexts, nil
	}

	contexts, err := e.Retrieve(ctx, question, topK, minSim)
	if err != nil {
		return "", nil, err
	}

	var answer string
	if len(contexts) == 0 {
		answer = generator.NotFoundAnswer
	} else {
		answer, err = e.gen.Generate(ctx, question, contexts, history)
		if err != nil {
			return "", nil, err
		}
	}

	e.cache.Set(question, answer, contexts)
	return answer, contexts, nil
}

func chunkContents(chunks []types.Chunk) []string {
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	return contents
}
