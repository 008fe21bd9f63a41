package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/realtime"
)

type chatNotifier struct {
	emit SSEEmitter
}

func NewChatNotifier(emit SSEEmitter) ChatNotifier {
	return &chatNotifier{emit: emit}
}

func (n *chatNotifier) ChatCreated(userID uuid.UUID, chat *types.Chat) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventChatCreated,
		Data:    map[string]any{"chat": chat},
	})
}

func (n *chatNotifier) ChatRenamed(userID uuid.UUID, chat *types.Chat) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventChatRenamed,
		Data:    map[string]any{"chat": chat},
	})
}

func (n *chatNotifier) ChatDeleted(userID uuid.UUID, chatID uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: userID.String(),
		Event:   realtime.SSEEventChatDeleted,
		Data:    map[string]any{"chat_id": chatID},
	})
}
