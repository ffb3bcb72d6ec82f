package rag

import "ragchat/internal/domain"

// Filtered holds the hits that survived ownership and document filtering as
// parallel slices in search order.
type Filtered struct {
	Contexts []string
	Sources  []string
	Scores   []float64
}

func (f Filtered) Len() int { return len(f.Contexts) }

// MaxScore returns the best score among the kept hits, or 0 when empty.
func (f Filtered) MaxScore() float64 {
	if len(f.Scores) == 0 {
		return 0
	}
	best := f.Scores[0]
	for _, s := range f.Scores[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

// Head returns the first n kept hits.
func (f Filtered) Head(n int) Filtered {
	if n < 0 || n >= f.Len() {
		return f
	}
	return Filtered{
		Contexts: f.Contexts[:n],
		Sources:  f.Sources[:n],
		Scores:   f.Scores[:n],
	}
}

// FilterHits keeps a hit only when its source is owned by user and, if
// selected is non-empty, names one of the selected documents. An empty user
// owns nothing.
func FilterHits(hits []domain.SearchResult, user string, selected []string) Filtered {
	var allowed map[string]struct{}
	if len(selected) > 0 {
		allowed = make(map[string]struct{}, len(selected))
		for _, name := range selected {
			allowed[name] = struct{}{}
		}
	}

	out := Filtered{
		Contexts: make([]string, 0, len(hits)),
		Sources:  make([]string, 0, len(hits)),
		Scores:   make([]float64, 0, len(hits)),
	}
	if user == "" {
		return out
	}
	for _, h := range hits {
		owner, name := domain.SplitSource(h.Chunk.SourceID)
		if owner != user {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		out.Contexts = append(out.Contexts, h.Chunk.Text)
		out.Sources = append(out.Sources, h.Chunk.SourceID)
		out.Scores = append(out.Scores, h.Score)
	}
	return out
}

// Gate decides whether filtered hits are strong enough to ground an answer.
type Gate struct {
	MinChunks int
	MinScore  float64
}

// Confident reports whether f is strong enough to answer in document mode.
func (g Gate) Confident(f Filtered) bool {
	return f.Len() > 0 && f.Len() >= g.MinChunks && f.MaxScore() >= g.MinScore
}

// UniqueSources drops repeated sources, keeping first-seen order.
func UniqueSources(sources []string) []string {
	seen := make(map[string]struct{}, len(sources))
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
