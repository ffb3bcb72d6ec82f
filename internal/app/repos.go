package app

import (
	"gorm.io/gorm"

	"ragchat/internal/logger"
	"ragchat/internal/storage"
)

type Repos struct {
	Users     storage.UserRepo
	Documents storage.DocumentRepo
	History   storage.HistoryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Users:     storage.NewUserRepo(db, log),
		Documents: storage.NewDocumentRepo(db, log),
		History:   storage.NewHistoryRepo(db, log),
	}
}
