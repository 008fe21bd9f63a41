// Package api is the engine's contract with the chat backend. The engine
// never retries on its own: a failed call surfaces as a typed error and the
// caller decides whether to resubmit.
package api

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Tutor struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
}

type Chat struct {
	ID            uuid.UUID `json:"id"`
	TutorID       uuid.UUID `json:"tutor_id"`
	Title         string    `json:"title"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReplyRequest submits one user turn. Rerun replays from an existing user
// turn instead of appending a new one.
type ReplyRequest struct {
	Content      string `json:"content"`
	Rerun        bool   `json:"rerun,omitempty"`
	RerunFromSeq *int64 `json:"rerun_from_seq,omitempty"`
}

type Client interface {
	ListTutors(ctx context.Context) ([]Tutor, error)
	CreateChat(ctx context.Context, tutorID uuid.UUID, title string) (Chat, error)
	ListChats(ctx context.Context, tutorID *uuid.UUID) ([]Chat, error)
	RenameChat(ctx context.Context, chatID uuid.UUID, title string) (Chat, error)
	DeleteChat(ctx context.Context, chatID uuid.UUID) error
	ListMessages(ctx context.Context, chatID uuid.UUID) ([]Message, error)

	// StreamReply posts the turn and feeds the raw response body to onChunk
	// as it arrives. onChunk returning an error aborts the read. The bytes
	// are whatever the server framed; decoding is the wire package's job.
	StreamReply(ctx context.Context, chatID uuid.UUID, req ReplyRequest, onChunk func(chunk []byte) error) error
}
