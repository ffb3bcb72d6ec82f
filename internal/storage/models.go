package storage

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	QueryQuota   int    `gorm:"not null;default:50"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Document struct {
	ID        uint   `gorm:"primaryKey"`
	Owner     string `gorm:"size:64;uniqueIndex:idx_documents_owner_name;not null"`
	Name      string `gorm:"size:255;uniqueIndex:idx_documents_owner_name;not null"`
	Source    string `gorm:"size:320;index;not null"`
	Chunks    int
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatHistoryEntry struct {
	ID        uint                        `gorm:"primaryKey"`
	Username  string                      `gorm:"size:64;index:idx_history_user_created;not null"`
	Question  string                      `gorm:"not null"`
	Answer    string                      `gorm:"not null"`
	Sources   datatypes.JSONSlice[string] `gorm:"type:json"`
	CreatedAt time.Time                   `gorm:"index:idx_history_user_created"`
}

func (ChatHistoryEntry) TableName() string { return "chat_history" }

// AllModels lists the models to auto-migrate.
func AllModels() []any {
	return []any{&User{}, &Document{}, &ChatHistoryEntry{}}
}
