// Package hashing is an offline embedder. Terms are hashed into a fixed
// number of buckets, so no corpus preparation is needed and vectors from
// separate uploads stay comparable.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

type Embedder struct {
	dimension int
	stopwords map[string]struct{}
}

// NewEmbedder creates a feature-hashing embedder producing vectors of the given
// dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &Embedder{dimension: dimension, stopwords: defaultStopwords()}
}

func (e *Embedder) Name() string { return "hashing" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one L2-normalized vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

// embed builds a signed, sublinear term-frequency vector over unigrams and
// bigrams, L2 normalized. Text with no usable tokens maps to the zero vector.
func (e *Embedder) embed(text string) []float32 {
	tokens := e.tokenize(text)
	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	acc := make([]float64, e.dimension)
	for term, n := range counts {
		bucket, sign := e.bucket(term)
		w := 1 + math.Log(float64(n))
		if strings.Contains(term, " ") {
			w *= 0.5
		}
		acc[bucket] += sign * w
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *Embedder) bucket(term string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := e.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "so", "such", "into", "about", "than", "too", "very", "can", "will", "just", "should", "what", "which", "who", "how", "does", "do", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
