package domain

import (
	"context"
	"strings"
	"time"
)

// Document is an uploaded file owned by a single user.
type Document struct {
	Owner   string
	Name    string
	Path    string
	Content string
}

// SourceID returns the composite "owner/name" identifier stored with every chunk.
func (d Document) SourceID() string { return SourceID(d.Owner, d.Name) }

// SourceID joins an owner and a document name into a source identifier.
func SourceID(owner, name string) string { return owner + "/" + name }

// SplitSource splits a source identifier into owner and document name.
// A source without a separator has no owner.
func SplitSource(source string) (owner, name string) {
	if i := strings.Index(source, "/"); i >= 0 {
		return source[:i], source[i+1:]
	}
	return "", source
}

// Chunk is a contiguous span of extracted document text.
type Chunk struct {
	SourceID string
	ChunkID  string
	Text     string
	Index    int
}

// EmbeddedChunk is a chunk together with its vector.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult is a retrieval hit with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// SearchOptions control a similarity search.
type SearchOptions struct {
	TopK           int
	ScoreThreshold float64
	// NoThreshold disables score filtering entirely, including negative
	// scores that a zero ScoreThreshold would drop.
	NoThreshold bool
	// Owner restricts the search to sources owned by this user when set.
	Owner string
}

// Mode is the response strategy chosen for a query.
type Mode string

const (
	ModeConversational   Mode = "conversational"
	ModeSummary          Mode = "full_document_summary"
	ModeSummaryNoDocs    Mode = "summary_no_docs"
	ModeDocument         Mode = "document"
	ModeGeneralKnowledge Mode = "general_knowledge"
)

// QueryRequest is a question asked by an authenticated user.
type QueryRequest struct {
	Question          string   `json:"question"`
	TopK              int      `json:"top_k"`
	SelectedDocuments []string `json:"selected_documents,omitempty"`
}

// QueryResponse is the answer returned to the caller and persisted in the cache.
type QueryResponse struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
	Mode        Mode     `json:"mode"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// HistoryEntry is one question/answer exchange in a user's chat log.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []string  `json:"sources"`
}

// DocumentInfo describes an uploaded document.
type DocumentInfo struct {
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	Chunks     int       `json:"chunks"`
	Summary    string    `json:"summary,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// CompletionRequest is a single system+user prompt sent to a language model.
// Context repeats the grounding passages already embedded in User so offline
// completers can work from them directly.
type CompletionRequest struct {
	System      string
	User        string
	Context     []string
	Temperature float64
	MaxTokens   int
}

// Embedder converts texts into fixed-dimension vectors.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Loader extracts plain text from a file on disk.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// VectorStore persists vectors and supports similarity search.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []EmbeddedChunk) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]SearchResult, error)
	DeleteBySource(ctx context.Context, source string) error
}

// Completer produces text from a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// QuotaStore tracks how many fresh queries a user may still run.
type QuotaStore interface {
	GetQuota(ctx context.Context, username string) (int, error)
	DecrementQuota(ctx context.Context, username string) (bool, error)
}

// HistoryStore is the append-only per-user chat log.
type HistoryStore interface {
	AppendHistory(ctx context.Context, username string, entry HistoryEntry) error
	ListHistory(ctx context.Context, username string, limit int) ([]HistoryEntry, error)
}

// DocumentStore records uploaded documents per user.
type DocumentStore interface {
	SaveDocument(ctx context.Context, owner string, info DocumentInfo) error
	ListDocuments(ctx context.Context, owner string) ([]DocumentInfo, error)
	DeleteDocument(ctx context.Context, owner, name string) (bool, error)
}

// ResponseCache memoizes query responses.
type ResponseCache interface {
	Lookup(ctx context.Context, question, user string, docs []string) (*QueryResponse, bool)
	Store(ctx context.Context, question, user string, docs []string, resp QueryResponse) error
}
