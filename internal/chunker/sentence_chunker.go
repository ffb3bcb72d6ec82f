package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"ragchat/internal/domain"
)

// SentenceChunker packs whole sentences into chunks of at most chunkSize
// characters. Each chunk after the first starts with the trailing sentences of
// the previous one, up to overlap characters.
type SentenceChunker struct {
	chunkSize int
	overlap   int
	splitter  *regexp.Regexp
}

// NewSentenceChunker creates a chunker that packs whole sentences into chunks of
// at most chunkSize characters, carrying about overlap characters forward.
func NewSentenceChunker(chunkSize, overlap int) *SentenceChunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &SentenceChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		splitter:  regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
	}
}

// Chunk splits document into ordered chunks identified by source and index.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := c.sentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}

	source := document.SourceID()
	var chunks []domain.Chunk
	emit := func(parts []string) {
		idx := len(chunks)
		chunks = append(chunks, domain.Chunk{
			SourceID: source,
			ChunkID:  source + ":" + strconv.Itoa(idx),
			Text:     strings.Join(parts, " "),
			Index:    idx,
		})
	}

	var cur []string
	curLen := 0
	fresh := 0 // sentences in cur not yet emitted
	for _, s := range sentences {
		sl := utf8.RuneCountInString(s)
		if len(cur) > 0 && curLen+1+sl > c.chunkSize {
			if fresh > 0 {
				emit(cur)
			}
			cur, curLen = c.tail(cur)
			fresh = 0
			if len(cur) > 0 && curLen+1+sl > c.chunkSize {
				cur, curLen = nil, 0
			}
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, s)
		curLen += sl
		fresh++
	}
	if fresh > 0 {
		emit(cur)
	}
	return chunks, nil
}

// tail returns the trailing sentences of parts that fit in the overlap budget.
func (c *SentenceChunker) tail(parts []string) ([]string, int) {
	if c.overlap == 0 {
		return nil, 0
	}
	n := 0
	start := len(parts)
	for i := len(parts) - 1; i >= 0; i-- {
		l := utf8.RuneCountInString(parts[i])
		if n > 0 {
			l++
		}
		if n+l > c.overlap {
			break
		}
		n += l
		start = i
	}
	out := append([]string(nil), parts[start:]...)
	return out, n
}

// sentences splits text into trimmed sentences, hard-wrapping any sentence
// longer than the chunk size.
func (c *SentenceChunker) sentences(text string) []string {
	raw := c.splitter.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		for utf8.RuneCountInString(s) > c.chunkSize {
			r := []rune(s)
			out = append(out, strings.TrimSpace(string(r[:c.chunkSize])))
			s = strings.TrimSpace(string(r[c.chunkSize:]))
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
