package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider(nil)
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, "Quem é Exu?")
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, "Quem é Exu?")
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Equal(t, LocalDimension, a.Dimension)
	assert.Equal(t, ProviderLocal, a.Provider)
	assert.NotEmpty(t, a.Hash)

	c, err := p.GenerateEmbedding(ctx, "outro texto")
	require.NoError(t, err)
	assert.NotEqual(t, a.Vector, c.Vector)
}

func TestLocalProvider_EmptyText(t *testing.T) {
	p := NewLocalProvider(nil)
	_, err := p.GenerateEmbedding(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocalProvider_Batch(t *testing.T) {
	p := NewLocalProvider(NewCache(10))
	embs, err := p.GenerateBatch(context.Background(), []string{"um", "dois", "três"})
	require.NoError(t, err)
	require.Len(t, embs, 3)

	_, err = p.GenerateBatch(context.Background(), []string{"um", ""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCache_DeepCopy(t *testing.T) {
	c := NewCache(2)
	c.Set("h1", &Embedding{Vector: []float32{1, 2}, Dimension: 2, Hash: "h1"})

	got, ok := c.Get("h1")
	require.True(t, ok)
	got.Vector[0] = 99

	again, ok := c.Get("h1")
	require.True(t, ok)
	assert.Equal(t, float32(1), again.Vector[0])
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", &Embedding{Hash: "a"})
	c.Set("b", &Embedding{Hash: "b"})
	c.Set("c", &Embedding{Hash: "c"})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestNew_ProviderSelection(t *testing.T) {
	e, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	e, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, e.Provider())

	_, err = New(Config{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}

func TestOpenAIProvider_BatchAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type datum struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			data[i] = datum{Embedding: []float32{float32(i), 1}, Index: i}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	cache := NewCache(10)
	p, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: srv.URL}, cache)
	require.NoError(t, err)
	defer p.Close()

	embs, err := p.GenerateBatch(context.Background(), []string{"um", "dois"})
	require.NoError(t, err)
	require.Len(t, embs, 2)
	assert.Equal(t, []float32{0, 1}, embs[0].Vector)
	assert.Equal(t, []float32{1, 1}, embs[1].Vector)
	assert.Equal(t, int32(1), calls.Load())

	// Second single-text call is served from the cache.
	emb, err := p.GenerateEmbedding(context.Background(), "um")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, emb.Vector)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIProvider_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.GenerateBatch(context.Background(), []string{"um"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestOpenAIProvider_BatchTooLarge(t *testing.T) {
	p, err := NewOpenAIProvider(Config{APIKey: "k"}, nil)
	require.NoError(t, err)

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = p.GenerateBatch(context.Background(), texts)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestComputeHash_Stable(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
	assert.Len(t, ComputeHash("abc"), 64)
}
