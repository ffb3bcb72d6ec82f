package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/domain"
)

func hit(source, text string, score float64) domain.SearchResult {
	return domain.SearchResult{Chunk: domain.Chunk{SourceID: source, Text: text}, Score: score}
}

func TestFilterHitsTenantIsolation(t *testing.T) {
	hits := []domain.SearchResult{
		hit("mallory/secret.pdf", "planted", 0.99),
		hit("alice/report.pdf", "a1", 0.8),
		hit("alicia/report.pdf", "prefix clash", 0.7),
		hit("report.pdf", "ownerless", 0.65),
		hit("alice/report.pdf", "a2", 0.6),
	}

	f := FilterHits(hits, "alice", nil)
	assert.Equal(t, []string{"a1", "a2"}, f.Contexts)
	assert.Equal(t, []string{"alice/report.pdf", "alice/report.pdf"}, f.Sources)
	assert.Equal(t, []float64{0.8, 0.6}, f.Scores)
	assert.NotContains(t, f.Sources, "mallory/secret.pdf")
}

func TestFilterHitsEmptyUserOwnsNothing(t *testing.T) {
	f := FilterHits([]domain.SearchResult{hit("report.pdf", "x", 0.9)}, "", nil)
	assert.Equal(t, 0, f.Len())
}

func TestFilterHitsSelectedDocuments(t *testing.T) {
	hits := []domain.SearchResult{
		hit("alice/top.pdf", "best", 0.95),
		hit("alice/a.pdf", "a", 0.7),
		hit("alice/b.pdf", "b", 0.5),
	}

	f := FilterHits(hits, "alice", []string{"a.pdf", "b.pdf"})
	assert.Equal(t, []string{"alice/a.pdf", "alice/b.pdf"}, f.Sources)
	assert.NotContains(t, f.Sources, "alice/top.pdf")

	all := FilterHits(hits, "alice", []string{})
	assert.Equal(t, 3, all.Len())
}

func TestGateBoundary(t *testing.T) {
	gate := Gate{MinChunks: 2, MinScore: 0.4}

	one := Filtered{Contexts: []string{"x"}, Sources: []string{"u/a"}, Scores: []float64{0.9}}
	assert.False(t, gate.Confident(one), "one chunk below the minimum count")

	atThreshold := Filtered{
		Contexts: []string{"x", "y"},
		Sources:  []string{"u/a", "u/a"},
		Scores:   []float64{0.4, 0.3},
	}
	assert.True(t, gate.Confident(atThreshold))

	weak := Filtered{
		Contexts: []string{"x", "y", "z"},
		Sources:  []string{"u/a", "u/a", "u/a"},
		Scores:   []float64{0.39, 0.3, 0.26},
	}
	assert.False(t, gate.Confident(weak))

	assert.False(t, Gate{}.Confident(Filtered{}), "empty never confident")
}

func TestFilteredHeadAndMax(t *testing.T) {
	f := Filtered{
		Contexts: []string{"a", "b", "c"},
		Sources:  []string{"u/1", "u/2", "u/1"},
		Scores:   []float64{0.5, 0.7, 0.2},
	}
	assert.InDelta(t, 0.7, f.MaxScore(), 1e-9)
	assert.Equal(t, 2, f.Head(2).Len())
	assert.Equal(t, 3, f.Head(10).Len())
	assert.Equal(t, []string{"u/1", "u/2"}, UniqueSources(f.Sources))
	assert.Equal(t, 0.0, Filtered{}.MaxScore())
}
