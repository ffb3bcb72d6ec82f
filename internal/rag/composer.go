package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// Plan is a resolved mode plus the filtered hits that ground it.
type Plan struct {
	Mode     domain.Mode
	Question string
	Hits     Filtered
}

type ComposerOptions struct {
	// MaxConcurrency bounds in-flight completion calls across all queries.
	MaxConcurrency     int
	Timeout            time.Duration
	DocumentContextCap int
	SummaryContextCap  int
}

// Composer turns a Plan into an answer using the completion service.
type Composer struct {
	completer domain.Completer
	sem       *semaphore.Weighted
	opts      ComposerOptions
	log       *logger.Logger
}

// NewComposer creates a composer over completer. Zero options take the defaults:
// 8 concurrent calls, 8 document contexts and 30 summary contexts.
func NewComposer(completer domain.Completer, opts ComposerOptions, log *logger.Logger) *Composer {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.DocumentContextCap <= 0 {
		opts.DocumentContextCap = 8
	}
	if opts.SummaryContextCap <= 0 {
		opts.SummaryContextCap = 30
	}
	return &Composer{
		completer: completer,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		opts:      opts,
		log:       log.With("service", "ResponseComposer"),
	}
}

// Compose produces the response for plan. Document plans without hits fall back
// to general knowledge; summary plans without hits give the fixed no-docs reply.
func (c *Composer) Compose(ctx context.Context, plan Plan) (domain.QueryResponse, error) {
	switch plan.Mode {
	case domain.ModeConversational:
		return c.conversational(ctx, plan.Question)
	case domain.ModeSummary:
		if plan.Hits.Len() == 0 {
			return SummaryNoDocs(), nil
		}
		return c.summary(ctx, plan.Hits)
	case domain.ModeSummaryNoDocs:
		return SummaryNoDocs(), nil
	case domain.ModeDocument:
		if plan.Hits.Len() == 0 {
			return c.general(ctx, plan.Question)
		}
		return c.document(ctx, plan.Question, plan.Hits)
	case domain.ModeGeneralKnowledge:
		return c.general(ctx, plan.Question)
	default:
		return domain.QueryResponse{}, InvalidError(fmt.Sprintf("unknown mode %q", plan.Mode))
	}
}

// SummaryNoDocs is the fixed answer for a summary request with nothing to
// summarize.
func SummaryNoDocs() domain.QueryResponse {
	return domain.QueryResponse{
		Answer:  SummaryNoDocsAnswer,
		Sources: []string{},
		Mode:    domain.ModeSummaryNoDocs,
	}
}

func (c *Composer) conversational(ctx context.Context, question string) (domain.QueryResponse, error) {
	answer, err := c.complete(ctx, domain.ModeConversational, conversationalSystemPrompt, conversationalUserPrompt(question), nil)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	return domain.QueryResponse{
		Answer:  answer,
		Sources: []string{},
		Mode:    domain.ModeConversational,
	}, nil
}

func (c *Composer) summary(ctx context.Context, hits Filtered) (domain.QueryResponse, error) {
	used := hits.Head(c.opts.SummaryContextCap)
	block := strings.Join(used.Contexts, "\n\n")
	answer, err := c.complete(ctx, domain.ModeSummary, summarySystemPrompt, summaryUserPrompt(block), used.Contexts)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	return domain.QueryResponse{
		Answer:      answer,
		Sources:     UniqueSources(hits.Sources),
		NumContexts: hits.Len(),
		Mode:        domain.ModeSummary,
	}, nil
}

func (c *Composer) document(ctx context.Context, question string, hits Filtered) (domain.QueryResponse, error) {
	used := hits.Head(c.opts.DocumentContextCap)
	block := strings.Join(used.Contexts, "\n\n")
	answer, err := c.complete(ctx, domain.ModeDocument, documentSystemPrompt, documentUserPrompt(block, question), used.Contexts)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	confidence := hits.MaxScore()
	return domain.QueryResponse{
		Answer:      answer,
		Sources:     UniqueSources(used.Sources),
		NumContexts: used.Len(),
		Mode:        domain.ModeDocument,
		Confidence:  &confidence,
	}, nil
}

func (c *Composer) general(ctx context.Context, question string) (domain.QueryResponse, error) {
	answer, err := c.complete(ctx, domain.ModeGeneralKnowledge, generalSystemPrompt, generalUserPrompt(question), nil)
	if err != nil {
		return domain.QueryResponse{}, err
	}
	return domain.QueryResponse{
		Answer:  ensureDisclaimer(answer),
		Sources: []string{},
		Mode:    domain.ModeGeneralKnowledge,
	}, nil
}

// complete runs one bounded, timed completion call. Failures are not retried.
func (c *Composer) complete(ctx context.Context, mode domain.Mode, system, user string, grounding []string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", CompletionError(fmt.Errorf("wait for completion slot: %w", err))
	}
	defer c.sem.Release(1)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	params := ParamsFor(mode)
	start := time.Now()
	raw, err := c.completer.Complete(ctx, domain.CompletionRequest{
		System:      system,
		User:        user,
		Context:     grounding,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		c.log.Warn("completion failed", "mode", mode, "elapsed", time.Since(start), "error", err)
		return "", CompletionError(err)
	}
	answer := NormalizeAnswer(raw)
	if answer == "" {
		return "", CompletionError(errors.New("empty completion"))
	}
	c.log.Debug("completion done", "mode", mode, "elapsed", time.Since(start), "chars", len(answer))
	return answer, nil
}
