package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/realtime"
	"github.com/yungbote/educhat-backend/internal/requestdata"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{Log: log, Hub: hub}
}

// GET /api/realtime/sse
//
// Every connection subscribes to the caller's user channel; chat lifecycle
// events (created/renamed/deleted) arrive as "message" events.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	client := h.Hub.NewSSEClient(rd.UserID)
	h.Hub.AddChannel(client, rd.UserID.String())
	h.Log.Info("SSEStream open", "user_id", rd.UserID.String(), "client_id", client.ID.String())

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.Hub.CloseClient(client)
}
