package app

import (
	"time"

	"ragchat/internal/auth"
	"ragchat/internal/cache"
	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/notify"
	"ragchat/internal/rag"
	"ragchat/internal/service"
)

type Services struct {
	Auth     *auth.Service
	RAG      *service.RAGService
	Notifier notify.Notifier
}

func wireServices(cfg *config.AppConfig, log *logger.Logger, clients Clients, repos Repos) Services {
	log.Info("Wiring services...")
	notifier := notify.New(cfg.Email, log)

	accounts := auth.NewService(repos.Users, repos.Documents, clients.KV, notifier, auth.Options{
		JWTSecret:    cfg.Auth.JWTSecret,
		TokenTTL:     time.Duration(cfg.Auth.JWTExpiryHours) * time.Hour,
		ResetTTL:     time.Duration(cfg.Auth.ResetTokenMinutes) * time.Minute,
		DefaultQuota: cfg.Auth.DefaultQueryQuota,
		FrontendURL:  cfg.Auth.FrontendURL,
	}, log)

	r := cfg.Retrieval
	composer := rag.NewComposer(clients.Completer, rag.ComposerOptions{
		MaxConcurrency:     cfg.LLM.MaxConcurrency,
		Timeout:            time.Duration(r.CompletionTimeoutSecs) * time.Second,
		DocumentContextCap: r.DocumentContextCap,
		SummaryContextCap:  r.SummaryContextCap,
	}, log)

	batch := 0
	if cfg.Embedder.OpenAI != nil {
		batch = cfg.Embedder.OpenAI.BatchSize
	}
	ragSvc := service.NewRAGService(service.Deps{
		Classifier: rag.NewPatternClassifier(),
		Embedder:   clients.Embedder,
		Store:      clients.VectorStore,
		Composer:   composer,
		Cache:      cache.New(clients.KV, cfg.CacheTTL(), log),
		Quota:      repos.Users,
		History:    repos.History,
		Documents:  repos.Documents,
		Loader:     clients.Loader,
		Chunker:    clients.Chunker,
		Summarizer: clients.Summarizer,
	}, service.Options{
		DefaultTopK:         r.DefaultTopK,
		ScoreThreshold:      r.ScoreThreshold,
		FallbackThreshold:   r.FallbackThreshold,
		MinContextChunks:    r.MinContextChunks,
		SummarySearchCap:    r.SummarySearchCap,
		SummaryQueryText:    r.SummaryQueryText,
		RetrievalTimeout:    time.Duration(r.RetrievalTimeoutSecs) * time.Second,
		UploadsDir:          cfg.Server.UploadsDir,
		EmbedBatchSize:      batch,
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		HistoryDefaultLimit: cfg.History.DefaultLimit,
		HistoryMaxLimit:     cfg.History.MaxLimit,
	}, log)

	return Services{Auth: accounts, RAG: ragSvc, Notifier: notifier}
}
