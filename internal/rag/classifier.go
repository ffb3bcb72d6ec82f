package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Intent is the text-only part of mode selection: what the question asks for
// before any retrieval has happened.
type Intent int

const (
	IntentQuestion Intent = iota
	IntentConversational
	IntentSummary
)

func (i Intent) String() string {
	switch i {
	case IntentConversational:
		return "conversational"
	case IntentSummary:
		return "summary"
	default:
		return "question"
	}
}

// Classifier decides the intent of a question.
type Classifier interface {
	Classify(question string) Intent
}

var (
	defaultConversationalPatterns = []string{
		"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye",
		"how are you", "what can you do", "help", "who are you",
	}
	defaultSummaryPatterns = []string{
		"summarize", "summary", "overview", "topics",
		"what is in this document", "what is in the document",
		"explain this pdf", "explain the pdf", "explain document",
		"what does this document", "what does the document",
		"main points", "key points", "give me a summary",
		"tell me about this document", "tell me about the document",
	}
)

// PatternClassifier matches lowercased patterns against the question.
// Conversational patterns must start at a word boundary but may end inside a
// word: "history" and "hiking" are conversational because they begin with
// "hi", "this" is not. Summary patterns match anywhere, so "subtopics" counts
// as a summary request. Conversational patterns win over summary patterns.
type PatternClassifier struct {
	conversational []string
	summary        []string
}

// NewPatternClassifier creates a classifier with the built-in pattern lists.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{
		conversational: defaultConversationalPatterns,
		summary:        defaultSummaryPatterns,
	}
}

// NewPatternClassifierWith uses custom pattern lists; nil keeps the default.
func NewPatternClassifierWith(conversational, summary []string) *PatternClassifier {
	c := NewPatternClassifier()
	if conversational != nil {
		c.conversational = lowerAll(conversational)
	}
	if summary != nil {
		c.summary = lowerAll(summary)
	}
	return c
}

// Classify returns the intent of question.
func (c *PatternClassifier) Classify(question string) Intent {
	q := strings.ToLower(strings.TrimSpace(question))
	if containsAny(q, c.conversational, containsAtWordStart) {
		return IntentConversational
	}
	if containsAny(q, c.summary, strings.Contains) {
		return IntentSummary
	}
	return IntentQuestion
}

func containsAny(s string, patterns []string, match func(s, p string) bool) bool {
	for _, p := range patterns {
		if p != "" && match(s, p) {
			return true
		}
	}
	return false
}

func containsAtWordStart(s, p string) bool {
	for off := 0; off <= len(s)-len(p); {
		i := strings.Index(s[off:], p)
		if i < 0 {
			return false
		}
		i += off
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		off = i + 1
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
