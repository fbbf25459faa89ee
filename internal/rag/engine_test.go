package rag

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiyelab/aiye/internal/chunker"
	"github.com/aiyelab/aiye/internal/embedder"
	"github.com/aiyelab/aiye/internal/generator"
	"github.com/aiyelab/aiye/pkg/types"
)

const exuChunk = "O Orixá Exu é o guardião das encruzilhadas."

// bowEmbedder is a deterministic bag-of-words embedder: the normalized inner
// product of two texts grows with their token overlap, which makes dense
// similarity predictable in tests.
type bowEmbedder struct {
	mu    sync.Mutex
	vocab map[string]int
}

const bowDim = 256

func newBowEmbedder() *bowEmbedder {
	return &bowEmbedder{vocab: make(map[string]int)}
}

func (b *bowEmbedder) GenerateEmbedding(ctx context.Context, text string) (*embedder.Embedding, error) {
	vec := make([]float32, bowDim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	b.mu.Lock()
	for _, tok := range tokens {
		idx, ok := b.vocab[tok]
		if !ok {
			idx = len(b.vocab)
			b.vocab[tok] = idx
		}
		vec[idx%bowDim] = 1
	}
	b.mu.Unlock()

	return &embedder.Embedding{Vector: vec, Dimension: bowDim, Provider: "stub"}, nil
}

func (b *bowEmbedder) GenerateBatch(ctx context.Context, texts []string) ([]*embedder.Embedding, error) {
	out := make([]*embedder.Embedding, len(texts))
	for i, t := range texts {
		emb, err := b.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

func (b *bowEmbedder) Dimension() int   { return bowDim }
func (b *bowEmbedder) Provider() string { return "stub" }
func (b *bowEmbedder) Close() error     { return nil }

type echoGenerator struct {
	calls    atomic.Int32
	contexts []types.SearchResult
}

func (g *echoGenerator) Generate(ctx context.Context, question string, contexts []types.SearchResult, history []generator.Turn) (string, error) {
	g.calls.Add(1)
	g.contexts = contexts
	return "resposta fixa sintetizada do acervo", nil
}

func newTestEngine(t *testing.T) (*Engine, *echoGenerator) {
	t.Helper()
	gen := &echoGenerator{}
	e := New(Config{
		IndexDir: t.TempDir(),
		TopK:     3,
		MinSim:   0.30,
		// Small chunks so short fixture pages survive chunking.
		Chunking: chunker.Options{TargetSize: 200, MaxSize: 400, MinSize: 10},
	}, Deps{
		Embedder:  newBowEmbedder(),
		Generator: gen,
	})
	return e, gen
}

func ingestFixtures(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()

	doc, n, err := e.AddDocument(ctx, "Livro A", "livro-a.pdf", []string{"", "", exuChunk})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, 1, n)

	_, _, err = e.AddDocument(ctx, "Culinária", "culinaria.pdf", []string{
		"Receitas de bolo de fubá com açúcar, canela e coco ralado.",
	})
	require.NoError(t, err)
}

func TestAnswerWithCache_EndToEnd(t *testing.T) {
	e, gen := newTestEngine(t)
	ingestFixtures(t, e)
	ctx := context.Background()

	answer, contexts, err := e.AnswerWithCache(ctx, "Quem é Exu?", 3, 0.30, nil)
	require.NoError(t, err)
	assert.Equal(t, "resposta fixa sintetizada do acervo", answer)

	require.Len(t, contexts, 1)
	assert.Equal(t, exuChunk, contexts[0].Content)
	assert.Equal(t, "Livro A", contexts[0].Title)
	assert.Equal(t, 3, contexts[0].PageStart)
	assert.Equal(t, 3, contexts[0].PageEnd)
	assert.GreaterOrEqual(t, contexts[0].Score, 0.30)
	assert.Equal(t, "Quem é Exu?", contexts[0].MatchedQuery)
	require.NotNil(t, contexts[0].RerankDetails)

	// The generator saw exactly the retrieved chunk.
	require.Equal(t, int32(1), gen.calls.Load())
	require.Len(t, gen.contexts, 1)
	assert.Equal(t, exuChunk, gen.contexts[0].Content)

	// An identical call is served from the cache without re-generating.
	answer2, contexts2, err := e.AnswerWithCache(ctx, "Quem é Exu?", 3, 0.30, nil)
	require.NoError(t, err)
	assert.Equal(t, answer, answer2)
	assert.Equal(t, contexts, contexts2)
	assert.Equal(t, int32(1), gen.calls.Load())

	// So is a phrasing in the same normalization class.
	answer3, _, err := e.AnswerWithCache(ctx, "  quem é exu!! ", 3, 0.30, nil)
	require.NoError(t, err)
	assert.Equal(t, answer, answer3)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestAnswerWithCache_EmptyCorpusNeverCallsGenerator(t *testing.T) {
	e, gen := newTestEngine(t)

	answer, contexts, err := e.AnswerWithCache(context.Background(), "Quem é Exu?", 3, 0.30, nil)
	require.NoError(t, err)
	assert.Equal(t, generator.NotFoundAnswer, answer)
	assert.Empty(t, contexts)
	assert.Zero(t, gen.calls.Load())
}

func TestAnswerWithCache_RejectsShortQuestion(t *testing.T) {
	e, gen := newTestEngine(t)
	ingestFixtures(t, e)

	_, _, err := e.AnswerWithCache(context.Background(), " oi ", 3, 0.30, nil)
	assert.ErrorIs(t, err, types.ErrQuestionTooShort)
	assert.Zero(t, gen.calls.Load())
}

func TestRetrieve_FiltersByMinSim(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestFixtures(t, e)

	results, err := e.Retrieve(context.Background(), "Quem é Exu?", 3, 0.30)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, exuChunk, results[0].Content)

	// An off-topic question clears nothing.
	results, err = e.Retrieve(context.Background(), "previsão meteorológica amanhã", 3, 0.30)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddDocument_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	emb := newBowEmbedder()
	cfg := Config{
		IndexDir: dir,
		TopK:     3,
		MinSim:   0.30,
		Chunking: chunker.Options{TargetSize: 200, MaxSize: 400, MinSize: 10},
	}

	e := New(cfg, Deps{Embedder: emb, Generator: &echoGenerator{}})
	_, n, err := e.AddDocument(context.Background(), "Livro A", "livro-a.pdf", []string{"", "", exuChunk})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	reloaded := New(cfg, Deps{Embedder: emb, Generator: &echoGenerator{}})
	assert.Equal(t, 1, reloaded.ChunkCount())

	results, err := reloaded.Retrieve(context.Background(), "Quem é Exu?", 3, 0.30)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, exuChunk, results[0].Content)
}

func TestAddDocument_EmptyPages(t *testing.T) {
	e, _ := newTestEngine(t)
	doc, n, err := e.AddDocument(context.Background(), "Vazio", "vazio.pdf", []string{"", "   "})
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Zero(t, n)
}
