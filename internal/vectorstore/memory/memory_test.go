package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func ec(source string, idx int, text string, vec ...float32) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{
		Chunk: domain.Chunk{
			SourceID: source,
			ChunkID:  source + ":" + string(rune('0'+idx)),
			Text:     text,
			Index:    idx,
		},
		Vector: vec,
	}
}

func seeded(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddedChunk{
		ec("alice/a.pdf", 0, "a0", 1, 0),
		ec("alice/a.pdf", 1, "a1", 0.8, 0.6),
		ec("alice/b.pdf", 0, "b0", 0, 1),
		ec("bob/c.pdf", 0, "c0", 1, 0),
	}))
	return s
}

func TestSearchOrdersAndThresholds(t *testing.T) {
	s := seeded(t)
	res, err := s.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{TopK: 10, ScoreThreshold: 0.5})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "a0", res[0].Chunk.Text)
	assert.Equal(t, "c0", res[1].Chunk.Text, "equal scores keep insertion order")
	assert.Equal(t, "a1", res[2].Chunk.Text)
	assert.InDelta(t, 0.8, res[2].Score, 1e-6)
}

func TestSearchWithoutThresholdKeepsNegativeScores(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddedChunk{ec("alice/d.pdf", 0, "d0", -1, 0)}))

	res, err := s.Search(ctx, []float32{1, 0}, domain.SearchOptions{TopK: 10, Owner: "alice"})
	require.NoError(t, err)
	for _, r := range res {
		assert.NotEqual(t, "d0", r.Chunk.Text)
	}

	res, err = s.Search(ctx, []float32{1, 0}, domain.SearchOptions{TopK: 10, Owner: "alice", NoThreshold: true})
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, "d0", res[3].Chunk.Text)
	assert.InDelta(t, -1, res[3].Score, 1e-6)
}

func TestSearchOwnerFilterAndTopK(t *testing.T) {
	s := seeded(t)
	res, err := s.Search(context.Background(), []float32{1, 0}, domain.SearchOptions{TopK: 2, Owner: "alice"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "alice/a.pdf", r.Chunk.SourceID)
	}
}

func TestUpsertIsIdempotentAndDeleteBySource(t *testing.T) {
	ctx := context.Background()
	s := seeded(t)
	require.NoError(t, s.Upsert(ctx, []domain.EmbeddedChunk{ec("alice/a.pdf", 0, "a0 v2", 1, 0)}))
	assert.Equal(t, 4, s.Len())

	require.NoError(t, s.DeleteBySource(ctx, "alice/a.pdf"))
	assert.Equal(t, 2, s.Len())

	res, err := s.Search(ctx, []float32{1, 0}, domain.SearchOptions{TopK: 10, Owner: "alice"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b0", res[0].Chunk.Text)
}

func TestDimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.Error(t, s.Upsert(ctx, []domain.EmbeddedChunk{ec("u/x", 0, "x", 1)}), "not initialised")
	require.Error(t, s.Init(ctx, 0))
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Init(ctx, 2))
	require.Error(t, s.Init(ctx, 3))
	require.Error(t, s.Upsert(ctx, []domain.EmbeddedChunk{ec("u/x", 0, "x", 1, 2, 3)}))
	_, err := s.Search(ctx, []float32{1}, domain.SearchOptions{})
	require.Error(t, err)
}
