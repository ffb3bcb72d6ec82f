package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/rag"
)

type Options struct {
	DefaultTopK       int
	ScoreThreshold    float64
	FallbackThreshold float64
	MinContextChunks  int
	SummarySearchCap  int
	SummaryQueryText  string
	RetrievalTimeout  time.Duration

	UploadsDir          string
	EmbedBatchSize      int
	SummaryMaxSentences int

	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// Deps are the collaborators of RAGService. Loader, Chunker and Summarizer
// are only needed for ingestion.
type Deps struct {
	Classifier rag.Classifier
	Embedder   domain.Embedder
	Store      domain.VectorStore
	Composer   *rag.Composer
	Cache      domain.ResponseCache
	Quota      domain.QuotaStore
	History    domain.HistoryStore
	Documents  domain.DocumentStore
	Loader     domain.Loader
	Chunker    domain.Chunker
	Summarizer domain.Summarizer
}

// RAGService answers questions over a user's uploaded documents and manages
// those documents.
type RAGService struct {
	deps Deps
	opts Options
	gate rag.Gate
	log  *logger.Logger
}

// NewRAGService creates the orchestrator. Zero options take the defaults.
func NewRAGService(deps Deps, opts Options, log *logger.Logger) *RAGService {
	if deps.Classifier == nil {
		deps.Classifier = rag.NewPatternClassifier()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 3
	}
	if opts.SummarySearchCap <= 0 {
		opts.SummarySearchCap = 50
	}
	if opts.SummaryQueryText == "" {
		opts.SummaryQueryText = "document content"
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 32
	}
	if opts.SummaryMaxSentences <= 0 {
		opts.SummaryMaxSentences = 5
	}
	if opts.HistoryDefaultLimit <= 0 {
		opts.HistoryDefaultLimit = 50
	}
	if opts.HistoryMaxLimit < opts.HistoryDefaultLimit {
		opts.HistoryMaxLimit = opts.HistoryDefaultLimit
	}
	return &RAGService{
		deps: deps,
		opts: opts,
		gate: rag.Gate{MinChunks: opts.MinContextChunks, MinScore: opts.FallbackThreshold},
		log:  log.With("service", "RAGService"),
	}
}

// Init prepares the vector store for the embedder's dimension.
func (s *RAGService) Init(ctx context.Context) error {
	return s.deps.Store.Init(ctx, s.deps.Embedder.Dimension())
}

// Query answers req for user. Errors are *rag.QueryError values, or a wrapped
// context error when the caller went away.
func (s *RAGService) Query(ctx context.Context, user string, req domain.QueryRequest) (*domain.QueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if user == "" {
		return nil, rag.InvalidError("Not authenticated")
	}
	if question == "" {
		return nil, rag.InvalidError("Question is required")
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}
	if topK > s.opts.SummarySearchCap {
		topK = s.opts.SummarySearchCap
	}
	selected := req.SelectedDocuments
	log := s.log.With("user", user)

	switch s.deps.Classifier.Classify(question) {
	case rag.IntentConversational:
		resp, err := s.deps.Composer.Compose(ctx, rag.Plan{Mode: domain.ModeConversational, Question: question})
		if err != nil {
			return nil, err
		}
		log.Info("query answered", "mode", resp.Mode)
		return &resp, nil
	case rag.IntentSummary:
		return s.summarize(ctx, log, user, question, selected)
	}

	if cached, ok := s.deps.Cache.Lookup(ctx, question, user, selected); ok {
		log.Info("query answered from cache", "mode", cached.Mode)
		return cached, nil
	}

	quota, err := s.deps.Quota.GetQuota(ctx, user)
	if err != nil {
		return nil, rag.QuotaError(fmt.Errorf("read quota: %w", err))
	}
	if quota <= 0 {
		return nil, rag.QuotaError(errors.New("no queries left"))
	}

	hits, err := s.retrieve(ctx, question, domain.SearchOptions{
		TopK:           topK,
		ScoreThreshold: s.opts.ScoreThreshold,
		Owner:          user,
	})
	if err != nil {
		return nil, err
	}
	filtered := rag.FilterHits(hits, user, selected)

	mode := domain.ModeGeneralKnowledge
	if s.gate.Confident(filtered) {
		mode = domain.ModeDocument
	}
	log.Debug("retrieval done", "hits", len(hits), "kept", filtered.Len(), "best", filtered.MaxScore(), "mode", mode)

	resp, err := s.deps.Composer.Compose(ctx, rag.Plan{Mode: mode, Question: question, Hits: filtered})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query abandoned: %w", err)
	}

	s.record(ctx, log, user, question, selected, resp)
	if ok, err := s.deps.Quota.DecrementQuota(ctx, user); err != nil {
		log.Error("quota decrement failed", "error", err)
	} else if !ok {
		log.Warn("quota already exhausted after answer")
	}
	log.Info("query answered", "mode", resp.Mode, "contexts", resp.NumContexts)
	return &resp, nil
}

// summarize answers a whole-document request. It caches and records the
// result but does not spend quota.
func (s *RAGService) summarize(ctx context.Context, log *logger.Logger, user, question string, selected []string) (*domain.QueryResponse, error) {
	hits, err := s.retrieve(ctx, s.opts.SummaryQueryText, domain.SearchOptions{
		TopK:        s.opts.SummarySearchCap,
		NoThreshold: true,
		Owner:       user,
	})
	if err != nil {
		return nil, err
	}
	filtered := rag.FilterHits(hits, user, selected)
	if filtered.Len() == 0 {
		resp := rag.SummaryNoDocs()
		log.Info("query answered", "mode", resp.Mode)
		return &resp, nil
	}

	resp, err := s.deps.Composer.Compose(ctx, rag.Plan{Mode: domain.ModeSummary, Question: question, Hits: filtered})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query abandoned: %w", err)
	}
	s.record(ctx, log, user, question, selected, resp)
	log.Info("query answered", "mode", resp.Mode, "contexts", resp.NumContexts)
	return &resp, nil
}

func (s *RAGService) retrieve(ctx context.Context, text string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if s.opts.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RetrievalTimeout)
		defer cancel()
	}
	vectors, err := s.deps.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, rag.RetrievalError(fmt.Errorf("embed question: %w", err))
	}
	if len(vectors) != 1 {
		return nil, rag.RetrievalError(fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors)))
	}
	hits, err := s.deps.Store.Search(ctx, vectors[0], opts)
	if err != nil {
		return nil, rag.RetrievalError(fmt.Errorf("vector search: %w", err))
	}
	return hits, nil
}

// record writes the cache entry and the history line for a fresh answer.
// Failures are logged; the answer is still returned.
func (s *RAGService) record(ctx context.Context, log *logger.Logger, user, question string, selected []string, resp domain.QueryResponse) {
	if err := s.deps.Cache.Store(ctx, question, user, selected, resp); err != nil {
		log.Warn("cache write failed", "error", err)
	}
	err := s.deps.History.AppendHistory(ctx, user, domain.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Question:  question,
		Answer:    resp.Answer,
		Sources:   resp.Sources,
	})
	if err != nil {
		log.Warn("history append failed", "error", err)
	}
}

// History returns the user's most recent exchanges, oldest first. limit is
// clamped to the configured bounds.
func (s *RAGService) History(ctx context.Context, user string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = s.opts.HistoryDefaultLimit
	}
	if limit > s.opts.HistoryMaxLimit {
		limit = s.opts.HistoryMaxLimit
	}
	return s.deps.History.ListHistory(ctx, user, limit)
}
