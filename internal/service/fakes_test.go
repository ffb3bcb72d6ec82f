package service

import (
	"context"
	"errors"
	"sync"

	"ragchat/internal/domain"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (e *fakeEmbedder) Name() string   { return "fake" }
func (e *fakeEmbedder) Dimension() int { return 4 }

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.texts = append(e.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

// fakeStore returns its canned hits for every search, ignoring the owner
// filter, so that service-side filtering is what keeps tenants apart.
type fakeStore struct {
	mu       sync.Mutex
	hits     []domain.SearchResult
	err      error
	searches []domain.SearchOptions
}

func (s *fakeStore) Init(context.Context, int) error                      { return nil }
func (s *fakeStore) Upsert(context.Context, []domain.EmbeddedChunk) error { return nil }
func (s *fakeStore) DeleteBySource(context.Context, string) error         { return nil }

func (s *fakeStore) Search(_ context.Context, _ []float32, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, opts)
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.SearchResult(nil), s.hits...), nil
}

func (s *fakeStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

type fakeCompleter struct {
	mu     sync.Mutex
	answer string
	err    error
	hook   func()
	reqs   []domain.CompletionRequest
}

func (c *fakeCompleter) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.answer, nil
}

func (c *fakeCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

type fakeQuota struct {
	mu     sync.Mutex
	quotas map[string]int
	err    error
}

func (q *fakeQuota) GetQuota(_ context.Context, user string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	return q.quotas[user], nil
}

func (q *fakeQuota) DecrementQuota(_ context.Context, user string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.quotas[user] <= 0 {
		return false, nil
	}
	q.quotas[user]--
	return true, nil
}

func (q *fakeQuota) get(user string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quotas[user]
}

type fakeHistory struct {
	mu        sync.Mutex
	entries   map[string][]domain.HistoryEntry
	lastLimit int
}

func (h *fakeHistory) AppendHistory(_ context.Context, user string, e domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries == nil {
		h.entries = make(map[string][]domain.HistoryEntry)
	}
	h.entries[user] = append(h.entries[user], e)
	return nil
}

func (h *fakeHistory) ListHistory(_ context.Context, user string, limit int) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastLimit = limit
	all := h.entries[user]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.HistoryEntry(nil), all...), nil
}

func (h *fakeHistory) count(user string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[user])
}

type fakeDocuments struct {
	mu   sync.Mutex
	docs map[string]map[string]domain.DocumentInfo
}

func (d *fakeDocuments) SaveDocument(_ context.Context, owner string, info domain.DocumentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.docs == nil {
		d.docs = make(map[string]map[string]domain.DocumentInfo)
	}
	if d.docs[owner] == nil {
		d.docs[owner] = make(map[string]domain.DocumentInfo)
	}
	d.docs[owner][info.Name] = info
	return nil
}

func (d *fakeDocuments) ListDocuments(_ context.Context, owner string) ([]domain.DocumentInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DocumentInfo
	for _, info := range d.docs[owner] {
		out = append(out, info)
	}
	return out, nil
}

func (d *fakeDocuments) DeleteDocument(_ context.Context, owner, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.docs[owner][name]; !ok {
		return false, nil
	}
	delete(d.docs[owner], name)
	return true, nil
}

type fakeLoader struct {
	text string
	err  error
}

func (l *fakeLoader) Load(context.Context, string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return l.text, nil
}

var errBoom = errors.New("boom")

func hit(source, text string, score float64) domain.SearchResult {
	return domain.SearchResult{Chunk: domain.Chunk{SourceID: source, Text: text}, Score: score}
}
