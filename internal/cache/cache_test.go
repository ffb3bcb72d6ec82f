package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/kv/memory"
	"ragchat/internal/logger"
)

func TestFingerprintIgnoresDocumentOrder(t *testing.T) {
	a := Fingerprint("q", "alice", []string{"b.pdf", "a.pdf"})
	b := Fingerprint("q", "alice", []string{"a.pdf", "b.pdf"})
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Fingerprint("q", "bob", []string{"a.pdf", "b.pdf"}))
	assert.NotEqual(t, a, Fingerprint("q2", "alice", []string{"a.pdf", "b.pdf"}))
	assert.NotEqual(t, Fingerprint("q", "alice", nil), Fingerprint("q", "alice", []string{""}))
	// Field boundaries are part of the hash.
	assert.NotEqual(t, Fingerprint("ab", "c", nil), Fingerprint("a", "bc", nil))
}

func TestFingerprintDoesNotMutateInput(t *testing.T) {
	docs := []string{"z.pdf", "a.pdf"}
	Fingerprint("q", "u", docs)
	assert.Equal(t, []string{"z.pdf", "a.pdf"}, docs)
}

func newCache(now *time.Time) (*ResponseCache, *memory.Store) {
	store := memory.NewStore()
	c := New(store, 24*time.Hour, logger.Nop()).WithClock(func() time.Time { return *now })
	return c, store
}

func TestLookupHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c, _ := newCache(&now)

	conf := 0.6
	resp := domain.QueryResponse{
		Answer:      "The conclusion is X.",
		Sources:     []string{"alice/report.pdf"},
		NumContexts: 3,
		Mode:        domain.ModeDocument,
		Confidence:  &conf,
	}
	require.NoError(t, c.Store(ctx, "q", "alice", []string{"report.pdf"}, resp))

	now = now.Add(23 * time.Hour)
	got, ok := c.Lookup(ctx, "q", "alice", []string{"report.pdf"})
	require.True(t, ok)
	assert.Equal(t, resp, *got)

	_, ok = c.Lookup(ctx, "q", "bob", []string{"report.pdf"})
	assert.False(t, ok)
}

func TestLookupExpiredIsMiss(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c, store := newCache(&now)

	require.NoError(t, c.Store(ctx, "q", "alice", nil, domain.QueryResponse{Answer: "old"}))

	now = now.Add(24*time.Hour + time.Millisecond)
	_, ok := c.Lookup(ctx, "q", "alice", nil)
	assert.False(t, ok)

	// A fresh store overwrites the stale record.
	require.NoError(t, c.Store(ctx, "q", "alice", nil, domain.QueryResponse{Answer: "new"}))
	got, ok := c.Lookup(ctx, "q", "alice", nil)
	require.True(t, ok)
	assert.Equal(t, "new", got.Answer)
	assert.Equal(t, 1, store.Len())
}

func TestLookupMalformedRecordIsMiss(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	c, store := newCache(&now)

	key := keyPrefix + Fingerprint("q", "alice", nil)
	require.NoError(t, store.Set(ctx, key, []byte("not json"), 0))
	_, ok := c.Lookup(ctx, "q", "alice", nil)
	assert.False(t, ok)

	raw, _ := json.Marshal(map[string]any{"timestamp": "yesterday", "response": map[string]any{}})
	require.NoError(t, store.Set(ctx, key, raw, 0))
	_, ok = c.Lookup(ctx, "q", "alice", nil)
	assert.False(t, ok)
}

func TestStoredRecordLayout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	c, store := newCache(&now)

	require.NoError(t, c.Store(ctx, "q", "alice", nil, domain.QueryResponse{
		Answer:  "a",
		Sources: []string{},
		Mode:    domain.ModeGeneralKnowledge,
	}))

	raw, ok, err := store.Get(ctx, keyPrefix+Fingerprint("q", "alice", nil))
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{
		"timestamp": "2025-05-01T09:00:00Z",
		"response": {"answer": "a", "sources": [], "num_contexts": 0, "mode": "general_knowledge"}
	}`, string(raw))
}
