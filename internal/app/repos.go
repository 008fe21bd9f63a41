package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/educhat-backend/internal/data/repos"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type Repos struct {
	Tutor   repos.TutorRepo
	Chat    repos.ChatRepo
	Message repos.MessageRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tutor:   repos.NewTutorRepo(db, log),
		Chat:    repos.NewChatRepo(db, log),
		Message: repos.NewMessageRepo(db, log),
	}
}
