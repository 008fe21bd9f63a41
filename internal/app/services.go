package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/educhat-backend/internal/clients/llm"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/realtime"
	"github.com/yungbote/educhat-backend/internal/realtime/bus"
	"github.com/yungbote/educhat-backend/internal/services"
)

type Services struct {
	Auth  services.AuthService
	Tutor services.TutorService
	Chat  services.ChatService

	LLM llm.Client
	Bus bus.Bus
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, sseHub *realtime.SSEHub) (Services, error) {
	log.Info("Wiring services...")

	authService, err := services.NewAuthService(log, cfg.JWTSecretKey)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	llmClient, err := llm.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init llm client: %w", err)
	}

	// With Redis configured, lifecycle events go through the bus so every
	// instance's hub sees them; otherwise the local hub is enough.
	var (
		sseBus  bus.Bus
		emitter services.SSEEmitter
	)
	if cfg.RedisAddr != "" {
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			return Services{}, fmt.Errorf("init redis bus: %w", err)
		}
		emitter = &services.RedisEmitter{Bus: sseBus}
	} else {
		emitter = &services.HubEmitter{Hub: sseHub}
	}
	notifier := services.NewChatNotifier(emitter)

	tutorService := services.NewTutorService(db, log, reposet.Tutor)
	chatService := services.NewChatService(db, log, reposet.Tutor, reposet.Chat, reposet.Message, llmClient, notifier)

	return Services{
		Auth:  authService,
		Tutor: tutorService,
		Chat:  chatService,
		LLM:   llmClient,
		Bus:   sseBus,
	}, nil
}
