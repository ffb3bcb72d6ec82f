package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestChunkEmpty(t *testing.T) {
	c := NewSentenceChunker(100, 10)
	chunks, err := c.Chunk(domain.Document{Owner: "alice", Name: "a.pdf", Content: "  \n\t "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkShortDocumentIsOneChunk(t *testing.T) {
	c := NewSentenceChunker(100, 10)
	chunks, err := c.Chunk(domain.Document{Owner: "alice", Name: "a.pdf", Content: "First sentence.\nSecond   one! Trailing words"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "First sentence. Second one! Trailing words", chunks[0].Text)
	assert.Equal(t, "alice/a.pdf", chunks[0].SourceID)
	assert.Equal(t, "alice/a.pdf:0", chunks[0].ChunkID)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkRespectsSizeAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%5))
		b.WriteString(". ")
	}
	c := NewSentenceChunker(120, 40)
	chunks, err := c.Chunk(domain.Document{Owner: "bob", Name: "b.pdf", Content: b.String()})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 5)

	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 120)
		assert.Equal(t, i, ch.Index)
		if i > 0 {
			prev := chunks[i-1].Text
			first := strings.SplitAfter(ch.Text, ".")[0]
			assert.True(t, strings.HasSuffix(prev, first), "chunk %d should start with the tail of chunk %d", i, i-1)
		}
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	doc := domain.Document{Owner: "u", Name: "d.pdf", Content: strings.Repeat("Alpha beta gamma. ", 100)}
	c := NewSentenceChunker(64, 20)
	a, err := c.Chunk(doc)
	require.NoError(t, err)
	b, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkHardWrapsLongSentence(t *testing.T) {
	c := NewSentenceChunker(50, 0)
	chunks, err := c.Chunk(domain.Document{Owner: "u", Name: "d.pdf", Content: strings.Repeat("word ", 60)})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 50)
	}
}
