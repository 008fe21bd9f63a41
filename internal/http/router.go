package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/educhat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/educhat-backend/internal/http/middleware"
)

type RouterConfig struct {
	AuthMiddleware  *httpMW.AuthMiddleware
	TutorHandler    *httpH.TutorHandler
	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Tutors
		if cfg.TutorHandler != nil {
			protected.GET("/tutors", cfg.TutorHandler.ListTutors)
			protected.GET("/tutors/:id", cfg.TutorHandler.GetTutor)
			protected.POST("/seed", cfg.TutorHandler.Seed)
		}

		// Chats
		if cfg.ChatHandler != nil {
			protected.POST("/chats", cfg.ChatHandler.CreateChat)
			protected.GET("/chats", cfg.ChatHandler.ListChats)
			protected.GET("/chats/:id", cfg.ChatHandler.GetChat)
			protected.PATCH("/chats/:id", cfg.ChatHandler.RenameChat)
			protected.DELETE("/chats/:id", cfg.ChatHandler.DeleteChat)
			protected.GET("/chats/:id/messages", cfg.ChatHandler.ListMessages)
			protected.POST("/chats/:id/messages", cfg.ChatHandler.SendMessage)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/realtime/sse", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
