// Package vindex provides the flat inner-product vector index used for dense
// retrieval, persisted as a binary vector file plus an aligned JSON metadata
// file.
//
// Vectors are L2-normalized before insertion, so the inner product equals
// cosine similarity. The index is read-only on the query path; ingestion is
// the single writer and must not run concurrently with serving.
package vindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/aiyelab/aiye/pkg/types"
)

const (
	// IndexFile and MetadataFile are the two persisted artifacts. They must
	// stay positionally aligned: vector i belongs to metadata chunk i.
	IndexFile    = "index.bin"
	MetadataFile = "metadata.json"

	fileMagic = uint32(0x41495645) // "AIVE"
)

// Hit is one dense search result: a corpus position and its inner-product
// similarity.
type Hit struct {
	Index int
	Score float64
}

// Index is a flat inner-product index over fixed-dimension vectors.
type Index struct {
	dim     int
	vectors [][]float32
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector dimension.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Add appends vectors to the index. Every vector must match the index
// dimension; callers normalize before adding.
func (ix *Index) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(v), ix.dim)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Search returns the k nearest vectors by inner product, descending. Ties
// keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{Index: i, Score: dot(query, v)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Save writes the binary index and the metadata JSON into dir.
func (ix *Index) Save(dir string, meta *types.IndexMetadata) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, IndexFile))
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	header := []uint32{fileMagic, uint32(ix.dim), uint32(len(ix.vectors))}
	for _, h := range header {
		if err := binary.Write(f, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("write index header: %w", err)
		}
	}
	for _, v := range ix.vectors {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write index vectors: %w", err)
		}
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), b, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	log.Info().Str("dir", dir).Int("vectors", ix.Len()).Int("chunks", len(meta.Chunks)).Msg("index saved")
	return nil
}

// Load reads the index and metadata from dir. A missing or corrupt directory
// degrades to an empty valid index with empty metadata, so queries return no
// results instead of failing.
func Load(dir string, dim int) (*Index, *types.IndexMetadata) {
	meta := &types.IndexMetadata{}
	ix := New(dim)

	b, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err == nil {
		if err := json.Unmarshal(b, meta); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("corrupt metadata, starting empty")
			meta = &types.IndexMetadata{}
		}
	}

	loaded, err := readIndexFile(filepath.Join(dir, IndexFile), dim)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("vector index unavailable, starting empty")
		return ix, meta
	}

	if loaded.Len() != len(meta.Chunks) {
		log.Warn().Int("vectors", loaded.Len()).Int("chunks", len(meta.Chunks)).
			Msg("index and metadata misaligned, starting empty")
		return New(dim), &types.IndexMetadata{}
	}

	log.Info().Str("dir", dir).Int("vectors", loaded.Len()).Msg("index loaded")
	return loaded, meta
}

func readIndexFile(path string, dim int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	defer f.Close()

	var magic, fileDim, count uint32
	for _, dst := range []*uint32{&magic, &fileDim, &count} {
		if err := binary.Read(f, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: short header", types.ErrIndexUnavailable)
		}
	}
	if magic != fileMagic {
		return nil, fmt.Errorf("%w: bad magic", types.ErrIndexUnavailable)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("%w: dimension %d, want %d", types.ErrIndexUnavailable, fileDim, dim)
	}

	ix := New(dim)
	ix.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		v := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: truncated vectors", types.ErrIndexUnavailable)
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}

// Normalize returns an L2-normalized copy of v. Zero vectors are returned
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
