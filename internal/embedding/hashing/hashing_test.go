package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, 384, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"Revenue grew in the third quarter.", "Revenue grew in the third quarter."})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, vecs[0], vecs[1])
	assert.Len(t, vecs[0], 384)
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[0]), 1e-6)
}

func TestEmbedSimilarTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"quarterly revenue growth and profit margins",
		"what was the revenue growth this quarter",
		"the cat sat on the mat",
	})
	require.NoError(t, err)
	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
}

func TestEmbedEmptyTextIsZero(t *testing.T) {
	vecs, err := NewEmbedder(16).Embed(context.Background(), []string{"the of and"})
	require.NoError(t, err)
	for _, v := range vecs[0] {
		assert.Zero(t, v)
	}
}

func TestEmbedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(16).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
