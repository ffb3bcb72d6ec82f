package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ragchat/internal/domain"
)

var (
	ErrEmptyDocument   = errors.New("PDF appears to be empty")
	ErrInvalidFilename = errors.New("Invalid file name")
)

// embedWorkers bounds concurrent embedding batches during ingestion.
const embedWorkers = 4

// IngestResult describes a freshly indexed document.
type IngestResult struct {
	Document domain.DocumentInfo `json:"document"`
	Chunks   int                 `json:"chunks"`
	Summary  string              `json:"summary,omitempty"`
}

// Upload stores r under the user's upload directory and indexes it. The
// upload is staged in a temp file and only replaces an existing file of the
// same name once indexing succeeds.
func (s *RAGService) Upload(ctx context.Context, user, filename string, r io.Reader) (*IngestResult, error) {
	name, err := cleanFilename(filename)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.opts.UploadsDir, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	// The loader picks its extractor by extension, so the temp name keeps it.
	f, err := os.CreateTemp(dir, ".upload-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	res, err := s.IngestDocument(ctx, user, name, tmp)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return res, nil
}

// IngestDocument extracts, chunks, embeds and indexes the file at path as
// user's document name. Re-ingesting a name replaces its previous chunks.
func (s *RAGService) IngestDocument(ctx context.Context, user, name, path string) (*IngestResult, error) {
	name, err := cleanFilename(name)
	if err != nil {
		return nil, err
	}
	log := s.log.With("user", user, "document", name)
	start := time.Now()

	text, err := s.deps.Loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	doc := domain.Document{Owner: user, Name: name, Path: path, Content: text}
	chunks, err := s.deps.Chunker.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", name, err)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	embedded := make([]domain.EmbeddedChunk, len(chunks))
	for i := range chunks {
		embedded[i] = domain.EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}

	if err := s.deps.Store.DeleteBySource(ctx, doc.SourceID()); err != nil {
		return nil, fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := s.deps.Store.Upsert(ctx, embedded); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	summary := ""
	if s.deps.Summarizer != nil {
		summary, err = s.deps.Summarizer.Summarize(text, s.opts.SummaryMaxSentences)
		if err != nil {
			log.Warn("summary preview failed", "error", err)
			summary = ""
		}
	}

	info := domain.DocumentInfo{
		Name:       name,
		Source:     doc.SourceID(),
		Chunks:     len(chunks),
		Summary:    summary,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.deps.Documents.SaveDocument(ctx, user, info); err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}
	log.Info("document indexed", "chunks", len(chunks), "elapsed", time.Since(start))
	return &IngestResult{Document: info, Chunks: len(chunks), Summary: summary}, nil
}

func (s *RAGService) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for start := 0; start < len(chunks); start += s.opts.EmbedBatchSize {
		end := min(start+s.opts.EmbedBatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			out, err := s.deps.Embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// ListDocuments returns the user's indexed documents.
func (s *RAGService) ListDocuments(ctx context.Context, user string) ([]domain.DocumentInfo, error) {
	return s.deps.Documents.ListDocuments(ctx, user)
}

// DeleteDocument removes a document's vectors, record and uploaded file. It
// reports false when the user had no such document.
func (s *RAGService) DeleteDocument(ctx context.Context, user, name string) (bool, error) {
	name, err := cleanFilename(name)
	if err != nil {
		return false, err
	}
	if err := s.deps.Store.DeleteBySource(ctx, domain.SourceID(user, name)); err != nil {
		return false, fmt.Errorf("delete chunks: %w", err)
	}
	removed, err := s.deps.Documents.DeleteDocument(ctx, user, name)
	if err != nil {
		return false, err
	}
	if s.opts.UploadsDir != "" {
		path := filepath.Join(s.opts.UploadsDir, user, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("remove uploaded file failed", "path", path, "error", err)
		}
	}
	if removed {
		s.log.Info("document deleted", "user", user, "document", name)
	}
	return removed, nil
}

func cleanFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", ErrInvalidFilename
	}
	return name, nil
}
