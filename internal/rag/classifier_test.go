package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatternClassifier(t *testing.T) {
	c := NewPatternClassifier()

	cases := []struct {
		question string
		want     Intent
	}{
		{"Hi there", IntentConversational},
		{"  THANK YOU!  ", IntentConversational},
		{"What can you do?", IntentConversational},
		{"Can you help me summarize?", IntentConversational},
		{"Summarize the report", IntentSummary},
		{"Give me an overview of the report", IntentSummary},
		{"What are the key points?", IntentSummary},
		{"tell me about the document", IntentSummary},
		{"What is the main conclusion?", IntentQuestion},
		{"Explain section 4.2", IntentQuestion},
		{"Explain the pdf", IntentSummary},
		{"", IntentQuestion},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.question), tc.question)
	}
}

func TestPatternClassifierMatchesInsideLongerWords(t *testing.T) {
	c := NewPatternClassifier()

	// Conversational patterns anchor at a word start but may run into the
	// rest of the word.
	assert.Equal(t, IntentConversational, c.Classify("What does the history section say?"))
	assert.Equal(t, IntentConversational, c.Classify("Is it helpful for hiking?"))
	assert.Equal(t, IntentQuestion, c.Classify("What is this chapter about?"))
	assert.Equal(t, IntentSummary, c.Classify("Summarize this"))

	// Summary patterns are plain substrings.
	assert.Equal(t, IntentSummary, c.Classify("list the topics"))
	assert.Equal(t, IntentSummary, c.Classify("list the subtopics"))
	assert.Equal(t, IntentSummary, c.Classify("Give me a quick resummary"))
}

func TestPatternClassifierCustomPatterns(t *testing.T) {
	c := NewPatternClassifierWith([]string{"Yo"}, nil)
	assert.Equal(t, IntentConversational, c.Classify("yo what's up"))
	assert.Equal(t, IntentQuestion, c.Classify("hello"))
	assert.Equal(t, IntentSummary, c.Classify("summary please"))
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "conversational", IntentConversational.String())
	assert.Equal(t, "summary", IntentSummary.String())
	assert.Equal(t, "question", IntentQuestion.String())
}
