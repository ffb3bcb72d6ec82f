package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencySummarizer picks the sentences whose content words are most frequent
// across the whole text and returns them in their original order.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		tokens[i] = tokenize(sent)
		for _, tok := range tokens[i] {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
			if freq[tok] > maxF {
				maxF = freq[tok]
			}
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, toks := range tokens {
		var sum float64
		for _, tok := range toks {
			sum += freq[tok]
		}
		if maxF > 0 {
			sum /= maxF
		}
		// Long sentences would otherwise win on volume alone.
		if n := len(toks); n > 0 {
			sum /= math.Sqrt(float64(n))
		}
		scores[i] = ranked{i, sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// splitSentences returns whitespace-collapsed sentences with exact repeats
// removed, which PDF headers and footers tend to produce.
func splitSentences(text string) []string {
	raw := sentencePattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		sent := strings.Join(strings.Fields(r), " ")
		if sent == "" || !tokenPattern.MatchString(sent) {
			continue
		}
		if _, dup := seen[sent]; dup {
			continue
		}
		seen[sent] = struct{}{}
		out = append(out, sent)
	}
	return out
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "we", "you", "they", "he", "she", "i", "our", "their", "has", "have", "had", "not", "no", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
