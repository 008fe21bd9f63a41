package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/http/response"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	chat services.ChatService
}

func NewChatHandler(log *logger.Logger, chat services.ChatService) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat}
}

type createChatReq struct {
	TutorID uuid.UUID `json:"tutor_id"`
	Title   string    `json:"title"`
}

// POST /api/chats
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	chat, err := h.chat.CreateChat(dbc, req.TutorID, req.Title)
	if err != nil {
		response.RespondServiceError(c, "create_chat_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chat": chat})
}

// GET /api/chats?tutor_id=&limit=50
func (h *ChatHandler) ListChats(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var tutorID *uuid.UUID
	if v := strings.TrimSpace(c.Query("tutor_id")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_tutor_id", err)
			return
		}
		tutorID = &id
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	chats, err := h.chat.ListChats(dbc, tutorID, limit)
	if err != nil {
		response.RespondServiceError(c, "list_chats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chats": chats})
}

// GET /api/chats/:id?limit=500
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	limit := 500
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	chat, msgs, err := h.chat.GetChat(dbc, chatID, limit)
	if err != nil {
		response.RespondServiceError(c, "chat_not_found", err)
		return
	}
	response.RespondOK(c, gin.H{"chat": chat, "messages": msgs})
}

type renameChatReq struct {
	Title string `json:"title"`
}

// PATCH /api/chats/:id
func (h *ChatHandler) RenameChat(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	var req renameChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	chat, err := h.chat.RenameChat(dbc, chatID, req.Title)
	if err != nil {
		response.RespondServiceError(c, "rename_chat_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"chat": chat})
}

// DELETE /api/chats/:id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.chat.DeleteChat(dbc, chatID); err != nil {
		response.RespondServiceError(c, "delete_chat_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": chatID})
}

// GET /api/chats/:id/messages?limit=500
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	limit := 500
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.chat.ListMessages(dbc, chatID, limit)
	if err != nil {
		response.RespondServiceError(c, "list_messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	Content      string `json:"content"`
	Rerun        bool   `json:"rerun"`
	RerunFromSeq *int64 `json:"rerun_from_seq"`
}

// POST /api/chats/:id/messages
//
// The response body is the assistant reply as it streams from the model.
// Default framing is plain text; clients that send Accept: text/event-stream
// get data-prefixed JSON events ending with "data: [DONE]". Errors before
// the first delta are plain JSON; after the first delta the body just ends
// (the partial assistant turn is never persisted).
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	eventFraming := strings.Contains(c.GetHeader("Accept"), "text/event-stream")
	flusher, canFlush := c.Writer.(http.Flusher)

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		if eventFraming {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
		} else {
			c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Writer.WriteHeader(http.StatusOK)
	}

	writeEvent := func(payload any) {
		raw, mErr := json.Marshal(payload)
		if mErr != nil {
			h.log.Warn("Failed to marshal stream event", "error", mErr)
			return
		}
		_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", raw)
	}

	onDelta := func(delta string) {
		start()
		if eventFraming {
			writeEvent(gin.H{"type": "text-delta", "delta": delta})
		} else {
			_, _ = c.Writer.WriteString(delta)
		}
		if canFlush {
			flusher.Flush()
		}
	}
	onReasoning := func(delta string) {
		if !eventFraming {
			return
		}
		start()
		writeEvent(gin.H{"type": "reasoning-delta", "delta": delta})
		if canFlush {
			flusher.Flush()
		}
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	result, err := h.chat.Respond(dbc, services.RespondInput{
		ChatID:       chatID,
		Content:      req.Content,
		Rerun:        req.Rerun,
		RerunFromSeq: req.RerunFromSeq,
	}, onDelta, onReasoning)
	if err != nil {
		if !started {
			response.RespondServiceError(c, "send_message_failed", err)
			return
		}
		h.log.Warn("Assistant stream failed mid-flight",
			"chat_id", chatID.String(),
			"error", err.Error(),
		)
		if eventFraming {
			writeEvent(gin.H{"type": "error", "message": "stream failed"})
			if canFlush {
				flusher.Flush()
			}
		}
		return
	}

	start()
	if eventFraming {
		if result.AssistantTurn != nil {
			writeEvent(gin.H{"type": "message", "message": result.AssistantTurn})
		}
		_, _ = fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	}
	if canFlush {
		flusher.Flush()
	}
}
