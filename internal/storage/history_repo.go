package storage

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type HistoryRepo interface {
	domain.HistoryStore
}

type historyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewHistoryRepo creates a gorm-backed HistoryRepo.
func NewHistoryRepo(db *gorm.DB, baseLog *logger.Logger) HistoryRepo {
	return &historyRepo{db: db, log: baseLog.With("repo", "HistoryRepo")}
}

func (r *historyRepo) AppendHistory(ctx context.Context, username string, entry domain.HistoryEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sources := entry.Sources
	if sources == nil {
		sources = []string{}
	}
	return r.db.WithContext(ctx).Create(&ChatHistoryEntry{
		Username:  username,
		Question:  entry.Question,
		Answer:    entry.Answer,
		Sources:   datatypes.JSONSlice[string](sources),
		CreatedAt: ts.UTC(),
	}).Error
}

// ListHistory returns the newest limit entries in chronological order.
func (r *historyRepo) ListHistory(ctx context.Context, username string, limit int) ([]domain.HistoryEntry, error) {
	var rows []ChatHistoryEntry
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.HistoryEntry, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = domain.HistoryEntry{
			Timestamp: row.CreatedAt,
			Question:  row.Question,
			Answer:    row.Answer,
			Sources:   []string(row.Sources),
		}
	}
	return out, nil
}
