package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	UploadsDir  string   `yaml:"uploads_dir"`
	// MaxUploadMB bounds a single multipart upload.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// AuthConfig configures accounts and tokens.
type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	JWTExpiryHours    int    `yaml:"jwt_expiry_hours"`
	ResetTokenMinutes int    `yaml:"reset_token_minutes"`
	DefaultQueryQuota int    `yaml:"default_query_quota"`
	FrontendURL       string `yaml:"frontend_url"`
}

// DatabaseConfig selects the relational store for users, documents and history.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// CacheConfig selects the key/value backend used by the response cache and reset tokens.
type CacheConfig struct {
	Type     string       `yaml:"type"` // memory | file | redis
	Dir      string       `yaml:"dir"`
	TTLHours int          `yaml:"ttl_hours"`
	Redis    *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig contains connection details for Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"` // hashing | openai
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type      string `yaml:"type"`
	ChunkSize int    `yaml:"chunk_size"`
	Overlap   int    `yaml:"overlap"`
}

// LoaderConfig configures text extraction.
type LoaderConfig struct {
	PDFToTextPath string `yaml:"pdftotext_path"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"` // memory | qdrant
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	Type           string `yaml:"type"` // openai | extractive
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// RetrievalConfig holds the decision-engine thresholds.
type RetrievalConfig struct {
	DefaultTopK           int     `yaml:"default_top_k"`
	ScoreThreshold        float64 `yaml:"score_threshold"`
	FallbackThreshold     float64 `yaml:"fallback_threshold"`
	MinContextChunks      int     `yaml:"min_context_chunks"`
	DocumentContextCap    int     `yaml:"document_context_cap"`
	SummarySearchCap      int     `yaml:"summary_search_cap"`
	SummaryContextCap     int     `yaml:"summary_context_cap"`
	SummaryQueryText      string  `yaml:"summary_query_text"`
	RetrievalTimeoutSecs  int     `yaml:"retrieval_timeout_secs"`
	CompletionTimeoutSecs int     `yaml:"completion_timeout_secs"`
}

// HistoryConfig bounds chat history reads.
type HistoryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// EmailConfig configures SMTP delivery. Without credentials messages are only logged.
type EmailConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// LogConfig configures logging.
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Database    DatabaseConfig    `yaml:"database"`
	Cache       CacheConfig       `yaml:"cache"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Loader      LoaderConfig      `yaml:"loader"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	History     HistoryConfig     `yaml:"history"`
	Email       EmailConfig       `yaml:"email"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// CacheTTL returns the response cache lifetime.
func (c *AppConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		cfg = &AppConfig{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports settings that the selected backends cannot run without.
func (c *AppConfig) Validate() error {
	var problems []string
	if len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "auth.jwt_secret (or JWT_SECRET) must be at least 16 characters")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		problems = append(problems, "database.dsn (or DATABASE_DSN) is required for postgres")
	}
	if c.Cache.Type == "redis" && (c.Cache.Redis == nil || c.Cache.Redis.Addr == "") {
		problems = append(problems, "cache.redis.addr (or REDIS_ADDR) is required for the redis cache")
	}
	if c.VectorStore.Type == "qdrant" && (c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "") {
		problems = append(problems, "vector_store.qdrant.url (or QDRANT_URL) is required for qdrant")
	}
	if c.Retrieval.FallbackThreshold < 0 || c.Retrieval.FallbackThreshold > 1 {
		problems = append(problems, "retrieval.fallback_threshold must be within [0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Database:    DatabaseConfig{Driver: "sqlite", DSN: "ragchat.db"},
		Cache:       CacheConfig{Type: "file", Dir: "cache"},
		Embedder:    EmbedderConfig{Type: "hashing"},
		Chunker:     ChunkerConfig{Type: "sentence"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		LLM:         LLMConfig{Type: "openai"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyEnvOverrides(cfg *AppConfig) {
	setString(&cfg.Server.Addr, "SERVER_ADDR")
	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.FrontendURL, "FRONTEND_URL")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		if cfg.Cache.Redis == nil {
			cfg.Cache.Redis = &RedisConfig{}
		}
		cfg.Cache.Redis.Addr = addr
	}
	if url := strings.TrimSpace(os.Getenv("QDRANT_URL")); url != "" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		cfg.VectorStore.Qdrant.URL = url
	}
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Email.Server, "SMTP_SERVER")
	setString(&cfg.Email.From, "SMTP_EMAIL")
	setString(&cfg.Email.Password, "SMTP_PASSWORD")
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Email.Port = port
		}
	}
	setString(&cfg.Log.Mode, "LOG_MODE")
}

func applyConfigDefaults(cfg *AppConfig) {
	setDefault(&cfg.Server.Addr, ":8000")
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	setDefault(&cfg.Server.UploadsDir, "uploads")
	setDefaultInt(&cfg.Server.MaxUploadMB, 50)

	setDefaultInt(&cfg.Auth.JWTExpiryHours, 24)
	setDefaultInt(&cfg.Auth.ResetTokenMinutes, 60)
	setDefaultInt(&cfg.Auth.DefaultQueryQuota, 50)
	setDefault(&cfg.Auth.FrontendURL, "http://localhost:3000")

	setDefault(&cfg.Database.Driver, "sqlite")
	if cfg.Database.Driver == "sqlite" {
		setDefault(&cfg.Database.DSN, "ragchat.db")
	}

	setDefault(&cfg.Cache.Type, "file")
	setDefault(&cfg.Cache.Dir, "cache")
	setDefaultInt(&cfg.Cache.TTLHours, 24)
	if cfg.Cache.Redis != nil {
		setDefault(&cfg.Cache.Redis.Prefix, "ragchat:")
	}

	setDefault(&cfg.Embedder.Type, "hashing")
	setDefaultInt(&cfg.Embedder.Dimension, 384)
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		setDefault(&cfg.Embedder.OpenAI.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Embedder.OpenAI.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&cfg.Embedder.OpenAI.Model, "text-embedding-3-small")
		setDefaultInt(&cfg.Embedder.OpenAI.TimeoutSecs, 30)
		setDefaultInt(&cfg.Embedder.OpenAI.BatchSize, 32)
	}

	setDefault(&cfg.Chunker.Type, "sentence")
	setDefaultInt(&cfg.Chunker.ChunkSize, 512)
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 50
	}
	setDefault(&cfg.Loader.PDFToTextPath, "pdftotext")

	setDefault(&cfg.VectorStore.Type, "memory")
	if cfg.VectorStore.Qdrant != nil {
		setDefault(&cfg.VectorStore.Qdrant.Collection, "docs")
		setDefaultInt(&cfg.VectorStore.Qdrant.TimeoutSecs, 30)
	}

	setDefault(&cfg.LLM.Type, "openai")
	setDefault(&cfg.LLM.BaseURL, "https://api.groq.com/openai/v1")
	setDefault(&cfg.LLM.APIKeyEnv, "GROQ_API_KEY")
	setDefault(&cfg.LLM.Model, "llama-3.3-70b-versatile")
	setDefaultInt(&cfg.LLM.TimeoutSecs, 60)
	setDefaultInt(&cfg.LLM.MaxConcurrency, 8)

	r := &cfg.Retrieval
	setDefaultInt(&r.DefaultTopK, 3)
	if r.ScoreThreshold == 0 {
		r.ScoreThreshold = 0.25
	}
	if r.FallbackThreshold == 0 {
		r.FallbackThreshold = 0.4
	}
	setDefaultInt(&r.MinContextChunks, 2)
	setDefaultInt(&r.DocumentContextCap, 8)
	setDefaultInt(&r.SummarySearchCap, 50)
	setDefaultInt(&r.SummaryContextCap, 30)
	setDefault(&r.SummaryQueryText, "document content")
	setDefaultInt(&r.RetrievalTimeoutSecs, 20)
	setDefaultInt(&r.CompletionTimeoutSecs, 45)

	setDefaultInt(&cfg.History.DefaultLimit, 50)
	setDefaultInt(&cfg.History.MaxLimit, 500)

	setDefault(&cfg.Email.Server, "smtp.gmail.com")
	setDefaultInt(&cfg.Email.Port, 587)

	setDefault(&cfg.Summarizer.Type, "frequency")
	setDefaultInt(&cfg.Summarizer.MaxSentences, 5)

	setDefault(&cfg.Log.Mode, "development")
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func setDefault(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

func setDefaultInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
