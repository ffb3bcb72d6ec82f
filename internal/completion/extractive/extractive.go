// Package extractive answers without a language model by returning the most
// representative sentences of the grounding context. It lets the service run
// fully offline.
package extractive

import (
	"context"
	"strings"

	"ragchat/internal/domain"
)

const (
	greeting  = "Hello! Upload a PDF and ask me questions about it, or ask for a summary."
	noContext = "This information is not present in the uploaded documents, but generally I can only answer from document content when running offline."
)

type Completer struct {
	summarizer domain.Summarizer
}

var _ domain.Completer = (*Completer)(nil)

// New creates a completer that answers from the prompt context alone.
func New(summarizer domain.Summarizer) *Completer {
	return &Completer{summarizer: summarizer}
}

// Complete condenses req.Context to a sentence budget derived from MaxTokens.
// With no context it returns a fixed reply.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Context) == 0 {
		if req.MaxTokens > 0 && req.MaxTokens <= 150 {
			return greeting, nil
		}
		return noContext, nil
	}
	sentences := req.MaxTokens / 100
	if sentences < 2 {
		sentences = 2
	}
	return c.summarizer.Summarize(strings.Join(req.Context, "\n"), sentences)
}
