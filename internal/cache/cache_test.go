package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiyelab/aiye/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"O que é Exu?", "o que é exu"},
		{"  O que é Exu?!?  ", "o que é exu"},
		{"o   que\té\nexu", "o que é exu"},
		{"O QUE É EXU...", "o que é exu"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestKey_EquivalenceClasses(t *testing.T) {
	assert.Equal(t, Key("O que é Exu?"), Key("o que é exu"))
	assert.Equal(t, Key("O que é Exu?"), Key("  o   que é exu!! "))
	assert.NotEqual(t, Key("O que é Exu?"), Key("O que é Ogum?"))
}

func TestGetSet_HitOnEquivalentPhrasing(t *testing.T) {
	c := New(10)
	contexts := []types.SearchResult{{Content: "Exu é o guardião.", Title: "Livro A"}}
	c.Set("O que é Exu?", "resposta", contexts)

	entry, ok := c.Get("o   que é exu")
	require.True(t, ok)
	assert.Equal(t, "resposta", entry.Answer)
	assert.Equal(t, "O que é Exu?", entry.OriginalQuestion)
	assert.Equal(t, contexts, entry.Contexts)

	_, ok = c.Get("pergunta inédita")
	assert.False(t, ok)
}

func TestSet_Idempotent(t *testing.T) {
	c := New(10)
	c.Set("pergunta", "primeira", nil)
	c.Set("Pergunta?", "segunda", nil)

	entry, ok := c.Get("pergunta")
	require.True(t, ok)
	assert.Equal(t, "segunda", entry.Answer)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestLRU_EvictionAndRecencyProtection(t *testing.T) {
	c := New(3)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("pergunta %d", i), "resposta", nil)
	}

	// Touch the oldest entry so it survives the next eviction.
	_, ok := c.Get("pergunta 0")
	require.True(t, ok)

	c.Set("pergunta 3", "resposta", nil)

	_, ok = c.Get("pergunta 0")
	assert.True(t, ok)
	_, ok = c.Get("pergunta 1")
	assert.False(t, ok)
	assert.Equal(t, 3, c.Stats().Size)
}

func TestClearAndStats(t *testing.T) {
	c := New(4)
	c.Set("a b c", "r", nil)
	c.Set("d e f", "r", nil)

	stats := c.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 4, stats.MaxSize)
	assert.InDelta(t, 50.0, stats.UsagePercent, 1e-9)

	c.Clear()
	assert.Zero(t, c.Stats().Size)
	_, ok := c.Get("a b c")
	assert.False(t, ok)
}

func TestNew_NonPositiveSizeFallsBack(t *testing.T) {
	c := New(0)
	assert.Equal(t, DefaultMaxSize, c.Stats().MaxSize)
}
