package vindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiyelab/aiye/pkg/types"
)

func TestAdd_DimensionMismatch(t *testing.T) {
	ix := New(3)
	err := ix.Add([][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	assert.Zero(t, ix.Len())
}

func TestSearch_InnerProductOrder(t *testing.T) {
	ix := New(2)
	require.NoError(t, ix.Add([][]float32{
		Normalize([]float32{1, 0}),
		Normalize([]float32{0, 1}),
		Normalize([]float32{1, 1}),
	}))

	hits, err := ix.Search(Normalize([]float32{1, 0}), 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 0, hits[0].Index)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].Index)
	assert.Equal(t, 1, hits[2].Index)
}

func TestSearch_EmptyIndex(t *testing.T) {
	ix := New(4)
	hits, err := ix.Search(make([]float32, 4), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	ix := New(3)
	require.NoError(t, ix.Add([][]float32{
		Normalize([]float32{1, 2, 3}),
		Normalize([]float32{4, 5, 6}),
	}))
	meta := &types.IndexMetadata{
		Documents: []types.Document{{DocumentID: "d1", Title: "Livro A", Pages: 10}},
		Chunks: []types.Chunk{
			{DocumentID: "d1", ChunkID: "c1", Content: "primeiro", PageStart: 1, PageEnd: 1},
			{DocumentID: "d1", ChunkID: "c2", Content: "segundo", PageStart: 2, PageEnd: 2},
		},
	}
	require.NoError(t, ix.Save(dir, meta))

	loaded, loadedMeta := Load(dir, 3)
	require.Equal(t, 2, loaded.Len())
	require.Len(t, loadedMeta.Chunks, 2)
	assert.Equal(t, loaded.Len(), len(loadedMeta.Chunks))
	assert.Equal(t, "Livro A", loadedMeta.Documents[0].Title)

	hits, err := loaded.Search(Normalize([]float32{1, 2, 3}), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Index)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestLoad_MissingDirectoryDegradesToEmpty(t *testing.T) {
	ix, meta := Load(filepath.Join(t.TempDir(), "nope"), 3)
	assert.Zero(t, ix.Len())
	assert.Empty(t, meta.Chunks)
}

func TestLoad_CorruptIndexDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte("garbage"), 0o644))

	ix, meta := Load(dir, 3)
	assert.Zero(t, ix.Len())
	assert.Empty(t, meta.Chunks)
}

func TestLoad_MisalignedMetadataDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()

	ix := New(2)
	require.NoError(t, ix.Add([][]float32{{1, 0}}))
	meta := &types.IndexMetadata{Chunks: []types.Chunk{
		{ChunkID: "c1", Content: "um", PageStart: 1, PageEnd: 1},
		{ChunkID: "c2", Content: "dois", PageStart: 1, PageEnd: 1},
	}}
	// Save writes both files; the metadata intentionally has an extra chunk.
	require.NoError(t, ix.Save(dir, meta))

	loaded, loadedMeta := Load(dir, 2)
	assert.Zero(t, loaded.Len())
	assert.Empty(t, loadedMeta.Chunks)
}
