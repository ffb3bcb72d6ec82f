package storage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

type DocumentRepo interface {
	domain.DocumentStore
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewDocumentRepo creates a gorm-backed DocumentRepo.
func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

// SaveDocument inserts or replaces the record for (owner, name).
func (r *documentRepo) SaveDocument(ctx context.Context, owner string, info domain.DocumentInfo) error {
	row := Document{
		Owner:   owner,
		Name:    info.Name,
		Source:  domain.SourceID(owner, info.Name),
		Chunks:  info.Chunks,
		Summary: info.Summary,
	}
	if !info.UploadedAt.IsZero() {
		row.CreatedAt = info.UploadedAt
		row.UpdatedAt = info.UploadedAt
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"source", "chunks", "summary", "updated_at"}),
		}).
		Create(&row).Error
}

func (r *documentRepo) ListDocuments(ctx context.Context, owner string) ([]domain.DocumentInfo, error) {
	var rows []Document
	if err := r.db.WithContext(ctx).Where("owner = ?", owner).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.DocumentInfo, len(rows))
	for i, d := range rows {
		out[i] = domain.DocumentInfo{
			Name:       d.Name,
			Source:     d.Source,
			Chunks:     d.Chunks,
			Summary:    d.Summary,
			UploadedAt: d.UpdatedAt,
		}
	}
	return out, nil
}

// DeleteDocument reports whether a record was removed.
func (r *documentRepo) DeleteDocument(ctx context.Context, owner, name string) (bool, error) {
	res := r.db.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).Delete(&Document{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
