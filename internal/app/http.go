package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/educhat-backend/internal/http"
	httpH "github.com/yungbote/educhat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/educhat-backend/internal/http/middleware"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Tutor    *httpH.TutorHandler
	Chat     *httpH.ChatHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Tutor:    httpH.NewTutorHandler(services.Tutor),
		Chat:     httpH.NewChatHandler(log, services.Chat),
		Realtime: httpH.NewRealtimeHandler(log, sseHub),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		HealthHandler:   handlers.Health,
		AuthMiddleware:  middleware.Auth,
		TutorHandler:    handlers.Tutor,
		ChatHandler:     handlers.Chat,
		RealtimeHandler: handlers.Realtime,
	})
}
