package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ragchat/internal/chunker"
	"ragchat/internal/completion/extractive"
	completionopenai "ragchat/internal/completion/openai"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/embedding/hashing"
	embeddingopenai "ragchat/internal/embedding/openai"
	"ragchat/internal/kv"
	kvfile "ragchat/internal/kv/file"
	kvmemory "ragchat/internal/kv/memory"
	kvredis "ragchat/internal/kv/redis"
	"ragchat/internal/loader"
	"ragchat/internal/logger"
	"ragchat/internal/summarizer"
	vsmemory "ragchat/internal/vectorstore/memory"
	"ragchat/internal/vectorstore/qdrant"
)

// Clients are the pluggable backends selected by configuration.
type Clients struct {
	KV          kv.Store
	Embedder    domain.Embedder
	VectorStore domain.VectorStore
	Completer   domain.Completer
	Loader      *loader.FileLoader
	Chunker     domain.Chunker
	Summarizer  domain.Summarizer
	// Sweeper is set when the kv backend only expires entries lazily.
	Sweeper sweeper

	closers []func() error
}

func wireClients(cfg *config.AppConfig, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	store, err := newKV(cfg.Cache, log)
	if err != nil {
		return c, err
	}
	c.KV = store
	switch s := store.(type) {
	case *kvmemory.Store:
		c.Sweeper = s
	case *kvfile.Store:
		c.Sweeper = s
	case *kvredis.Store:
		c.closers = append(c.closers, s.Close)
	}

	if c.Embedder, err = newEmbedder(cfg.Embedder, log); err != nil {
		c.closeAll()
		return c, err
	}
	if c.VectorStore, err = newVectorStore(cfg.VectorStore, log); err != nil {
		c.closeAll()
		return c, err
	}

	c.Summarizer = summarizer.NewFrequencySummarizer()
	if c.Completer, err = newCompleter(cfg.LLM, c.Summarizer, log); err != nil {
		c.closeAll()
		return c, err
	}
	c.Chunker = chunker.NewSentenceChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)

	c.Loader = loader.New(cfg.Loader.PDFToTextPath)
	if err := c.Loader.CheckAvailable(); err != nil {
		log.Warn("pdf extraction unavailable, uploads will fail", "path", cfg.Loader.PDFToTextPath, "error", err)
	}
	return c, nil
}

func (c Clients) closeAll() {
	for _, fn := range c.closers {
		_ = fn()
	}
}

func newKV(cfg config.CacheConfig, log *logger.Logger) (kv.Store, error) {
	switch cfg.Type {
	case "memory":
		return kvmemory.NewStore(), nil
	case "file", "":
		return kvfile.NewStore(cfg.Dir)
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis cache config missing")
		}
		return kvredis.NewStore(log, *cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig, log *logger.Logger) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := embeddingopenai.NewClient(embeddingopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize:         cfg.OpenAI.BatchSize,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		// The vector store needs a size before the first upload.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := client.Embed(ctx, []string{"dimension check"}); err != nil {
			return nil, fmt.Errorf("openai embedder dimension check failed: %w", err)
		}
		log.Info("embedder ready", "name", client.Name(), "dimension", client.Dimension())
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newVectorStore(cfg config.VectorStoreConfig, log *logger.Logger) (domain.VectorStore, error) {
	switch cfg.Type {
	case "memory", "":
		return vsmemory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		return qdrant.NewStorage(log, qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newCompleter(cfg config.LLMConfig, sum domain.Summarizer, log *logger.Logger) (domain.Completer, error) {
	switch cfg.Type {
	case "extractive":
		log.Info("using extractive completer, answers are built from document sentences")
		return extractive.New(sum), nil
	case "openai", "":
		client, err := completionopenai.NewClient(completionopenai.Config{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("llm init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.Type)
	}
}
