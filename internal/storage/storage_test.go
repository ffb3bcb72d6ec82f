package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUserRepoCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t), logger.Nop())

	require.NoError(t, repo.Create(ctx, &User{Username: "alice", Email: "alice@example.com", PasswordHash: "h", QueryQuota: 50}))
	err := repo.Create(ctx, &User{Username: "alice", Email: "other@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrConflict)

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	u, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepoDecrementQuotaStopsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t), logger.Nop())
	require.NoError(t, repo.Create(ctx, &User{Username: "bob", Email: "bob@example.com", PasswordHash: "h", QueryQuota: 2}))

	for i := 0; i < 2; i++ {
		ok, err := repo.DecrementQuota(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.DecrementQuota(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	q, err := repo.GetQuota(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, q)

	require.NoError(t, repo.SetQuota(ctx, "bob", 10))
	q, err = repo.GetQuota(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 10, q)

	assert.ErrorIs(t, repo.SetQuota(ctx, "ghost", 1), ErrNotFound)
}

func TestUserRepoRenameMovesOwnedRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	log := logger.Nop()
	users := NewUserRepo(db, log)
	docs := NewDocumentRepo(db, log)
	hist := NewHistoryRepo(db, log)

	require.NoError(t, users.Create(ctx, &User{Username: "carol", Email: "carol@example.com", PasswordHash: "h"}))
	require.NoError(t, users.Create(ctx, &User{Username: "dave", Email: "dave@example.com", PasswordHash: "h"}))
	require.NoError(t, docs.SaveDocument(ctx, "carol", domain.DocumentInfo{Name: "a.pdf", Chunks: 3}))
	require.NoError(t, hist.AppendHistory(ctx, "carol", domain.HistoryEntry{Question: "q", Answer: "a"}))

	assert.ErrorIs(t, users.Rename(ctx, "carol", "dave"), ErrConflict)
	require.NoError(t, users.Rename(ctx, "carol", "caroline"))

	list, err := docs.ListDocuments(ctx, "caroline")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "caroline/a.pdf", list[0].Source)

	entries, err := hist.ListHistory(ctx, "caroline", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.ErrorIs(t, users.Rename(ctx, "carol", "x"), ErrNotFound)
}

func TestDocumentRepoUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepo(newTestDB(t), logger.Nop())

	require.NoError(t, repo.SaveDocument(ctx, "alice", domain.DocumentInfo{Name: "report.pdf", Chunks: 3, Summary: "first"}))
	require.NoError(t, repo.SaveDocument(ctx, "alice", domain.DocumentInfo{Name: "report.pdf", Chunks: 5, Summary: "second"}))
	require.NoError(t, repo.SaveDocument(ctx, "bob", domain.DocumentInfo{Name: "report.pdf", Chunks: 1}))

	list, err := repo.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Chunks)
	assert.Equal(t, "second", list[0].Summary)
	assert.Equal(t, "alice/report.pdf", list[0].Source)

	removed, err := repo.DeleteDocument(ctx, "alice", "report.pdf")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.DeleteDocument(ctx, "alice", "report.pdf")
	require.NoError(t, err)
	assert.False(t, removed)

	list, err = repo.ListDocuments(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestHistoryRepoReturnsNewestInOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepo(newTestDB(t), logger.Nop())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, q := range []string{"one", "two", "three"} {
		require.NoError(t, repo.AppendHistory(ctx, "alice", domain.HistoryEntry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Question:  q,
			Answer:    "answer " + q,
			Sources:   []string{"alice/report.pdf"},
		}))
	}
	require.NoError(t, repo.AppendHistory(ctx, "bob", domain.HistoryEntry{Timestamp: base, Question: "other"}))

	entries, err := repo.ListHistory(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Question)
	assert.Equal(t, "three", entries[1].Question)
	assert.Equal(t, []string{"alice/report.pdf"}, entries[1].Sources)

	entries, err = repo.ListHistory(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
