package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	cfg := ChunkConfig{TargetChars: 100, MinChars: 30, Overlap: 20}

	t.Run("returns nil for blank input", func(t *testing.T) {
		assert.Nil(t, chunkText("", cfg))
		assert.Nil(t, chunkText("   \n\t  ", cfg))
	})

	t.Run("short text yields a single chunk", func(t *testing.T) {
		chunks := chunkText("a short note", cfg)
		require.Len(t, chunks, 1)
		assert.Equal(t, "a short note", chunks[0])
	})

	t.Run("long text is split near the target size", func(t *testing.T) {
		text := strings.Repeat("lorem ipsum dolor sit amet ", 20)
		chunks := chunkText(text, cfg)
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), cfg.TargetChars)
			assert.NotEmpty(t, c)
		}
	})

	t.Run("prefers whitespace boundaries", func(t *testing.T) {
		text := strings.Repeat("word ", 50)
		chunks := chunkText(text, cfg)
		for _, c := range chunks {
			assert.False(t, strings.HasSuffix(c, "wor"), "chunk cut mid-word: %q", c)
		}
	})

	t.Run("consecutive chunks overlap", func(t *testing.T) {
		text := strings.Repeat("alpha beta gamma delta ", 20)
		chunks := chunkText(text, cfg)
		require.Greater(t, len(chunks), 1)
		// The tail of each chunk must reappear at the head of the next.
		for i := 1; i < len(chunks); i++ {
			prev := []rune(chunks[i-1])
			tail := strings.TrimSpace(string(prev[len(prev)-10:]))
			assert.Contains(t, chunks[i], tail)
		}
	})

	t.Run("unbroken run longer than target still terminates", func(t *testing.T) {
		text := strings.Repeat("x", 500)
		chunks := chunkText(text, cfg)
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), cfg.TargetChars)
		}
		// Each chunk after the first repeats the previous chunk's last
		// Overlap runes. Dropping those must reconstruct the input.
		var joined strings.Builder
		for i, c := range chunks {
			r := []rune(c)
			if i > 0 {
				require.Greater(t, len(r), cfg.Overlap)
				r = r[cfg.Overlap:]
			}
			joined.WriteString(string(r))
		}
		assert.Equal(t, text, joined.String())
	})

	t.Run("multibyte text is cut on rune boundaries", func(t *testing.T) {
		text := strings.Repeat("가나다라마바사 ", 40)
		chunks := chunkText(text, cfg)
		require.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.True(t, strings.HasPrefix(c, "가") || strings.Contains("가나다라마바사", string([]rune(c)[0])))
		}
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("ab"))
	assert.Equal(t, 25, estimateTokens(strings.Repeat("a", 100)))
}
