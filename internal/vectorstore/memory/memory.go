package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragchat/internal/domain"
)

type point struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
	seq    int
}

// Storage is an in-memory vector store using brute-force cosine similarity.
// Points are keyed by chunk ID, so re-ingesting a document replaces its chunks.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]*point
	nextSeq   int
}

func NewStorage() *Storage { return &Storage{points: make(map[string]*point)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension {
		return fmt.Errorf("store already initialised with dimension %d", s.dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("store not initialised")
	}
	for _, c := range chunks {
		if len(c.Vector) != s.dimension {
			return fmt.Errorf("vector dimension %d, want %d", len(c.Vector), s.dimension)
		}
	}
	for _, c := range chunks {
		p := &point{chunk: c.Chunk, vector: c.Vector, norm: norm(c.Vector)}
		if old, ok := s.points[c.Chunk.ChunkID]; ok {
			p.seq = old.seq
		} else {
			p.seq = s.nextSeq
			s.nextSeq++
		}
		s.points[c.Chunk.ChunkID] = p
	}
	return nil
}

// Search returns hits scoring at least opts.ScoreThreshold, best first. Ties
// keep insertion order. With opts.NoThreshold every owned point qualifies.
func (s *Storage) Search(_ context.Context, vector []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, want %d", len(vector), s.dimension)
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	qn := norm(vector)
	type scored struct {
		p     *point
		score float64
	}
	var hits []scored
	for _, p := range s.points {
		if opts.Owner != "" {
			if owner, _ := domain.SplitSource(p.chunk.SourceID); owner != opts.Owner {
				continue
			}
		}
		score := cosine(vector, qn, p)
		if !opts.NoThreshold && score < opts.ScoreThreshold {
			continue
		}
		hits = append(hits, scored{p, score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].p.seq < hits[j].p.seq
	})
	if topK > len(hits) {
		topK = len(hits)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, h := range hits[:topK] {
		results = append(results, domain.SearchResult{Chunk: h.p.chunk, Score: h.score})
	}
	return results, nil
}

func (s *Storage) DeleteBySource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if p.chunk.SourceID == source {
			delete(s.points, id)
		}
	}
	return nil
}

// Len reports the number of stored points.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(q []float32, qn float64, p *point) float64 {
	if qn == 0 || p.norm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(p.vector[i])
	}
	return dot / (qn * p.norm)
}
