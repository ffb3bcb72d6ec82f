package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEmpty(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("   \n ", 3)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestSummarizeShortTextReturnedWhole(t *testing.T) {
	out, err := NewFrequencySummarizer().Summarize("One fact.  Two\nfacts!", 5)
	require.NoError(t, err)
	assert.Equal(t, "One fact. Two facts!", out)
}

func TestSummarizePicksFrequentTopicInOrder(t *testing.T) {
	text := strings.Join([]string{
		"Solar panels convert sunlight into electricity.",
		"The cafeteria serves lunch at noon.",
		"Solar electricity output depends on sunlight hours.",
		"Parking is available behind the building.",
		"Panels with more sunlight produce more solar electricity.",
	}, " ")

	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)

	assert.NotContains(t, out, "cafeteria")
	assert.NotContains(t, out, "Parking")
	assert.Contains(t, out, "Solar")
	parts := strings.SplitAfter(out, ".")
	assert.GreaterOrEqual(t, len(parts), 2)
}

func TestSummarizeDropsRepeatedSentences(t *testing.T) {
	text := "Quarterly report. Revenue grew strongly. Quarterly report. Costs fell. Quarterly report."
	out, err := NewFrequencySummarizer().Summarize(text, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Quarterly report."))
}

func TestSummarizeDefaultsSentenceCount(t *testing.T) {
	var text string
	for i := 0; i < 12; i++ {
		text += "Sentence about topic number " + string(rune('a'+i)) + ". "
	}
	out, err := NewFrequencySummarizer().Summarize(text, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(out, "Sentence about"))
}
