package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/educhat-backend/internal/clients/llm"
	"github.com/yungbote/educhat-backend/internal/data/repos"
	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/requestdata"
)

// ChatNotifier fans chat lifecycle events out to realtime subscribers.
type ChatNotifier interface {
	ChatCreated(userID uuid.UUID, chat *types.Chat)
	ChatRenamed(userID uuid.UUID, chat *types.Chat)
	ChatDeleted(userID uuid.UUID, chatID uuid.UUID)
}

// RespondInput drives one assistant turn. A rerun keeps the user turn at
// RerunFromSeq, discards everything after it, and replays; when Content is
// non-blank on a rerun the kept turn is rewritten first (edit-and-rerun).
type RespondInput struct {
	ChatID       uuid.UUID
	Content      string
	Rerun        bool
	RerunFromSeq *int64
}

type RespondResult struct {
	// UserTurn is nil on rerun (the original turn was kept, not re-inserted).
	UserTurn      *types.Message
	AssistantTurn *types.Message
}

type ChatService interface {
	CreateChat(dbc dbctx.Context, tutorID uuid.UUID, title string) (*types.Chat, error)
	ListChats(dbc dbctx.Context, tutorID *uuid.UUID, limit int) ([]*types.Chat, error)
	GetChat(dbc dbctx.Context, chatID uuid.UUID, limit int) (*types.Chat, []*types.Message, error)
	ListMessages(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error)
	RenameChat(dbc dbctx.Context, chatID uuid.UUID, title string) (*types.Chat, error)

	// DeleteChat removes the chat and all of its messages.
	DeleteChat(dbc dbctx.Context, chatID uuid.UUID) error

	// Respond runs one turn end to end: persists the user turn (unless
	// rerun), streams the assistant reply through onDelta/onReasoning, and
	// persists the assistant turn once the stream completes. A stream that
	// fails mid-flight persists nothing for the assistant.
	Respond(dbc dbctx.Context, in RespondInput, onDelta func(delta string), onReasoning func(delta string)) (*RespondResult, error)
}

type chatService struct {
	db  *gorm.DB
	log *logger.Logger

	tutors   repos.TutorRepo
	chats    repos.ChatRepo
	messages repos.MessageRepo

	llm    llm.Client
	notify ChatNotifier
}

func NewChatService(
	db *gorm.DB,
	baseLog *logger.Logger,
	tutorRepo repos.TutorRepo,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	llmClient llm.Client,
	notify ChatNotifier,
) ChatService {
	return &chatService{
		db:       db,
		log:      baseLog.With("service", "ChatService"),
		tutors:   tutorRepo,
		chats:    chatRepo,
		messages: messageRepo,
		llm:      llmClient,
		notify:   notify,
	}
}

func (s *chatService) CreateChat(dbc dbctx.Context, tutorID uuid.UUID, title string) (*types.Chat, error) {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated: %w", pkgerrors.ErrUnauthorized)
	}
	if tutorID == uuid.Nil {
		return nil, fmt.Errorf("missing tutor id: %w", pkgerrors.ErrInvalidArgument)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New chat"
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}

	tutorRows, err := s.tutors.GetByIDs(repoCtx, []uuid.UUID{tutorID})
	if err != nil {
		return nil, err
	}
	if len(tutorRows) == 0 || tutorRows[0] == nil {
		return nil, fmt.Errorf("tutor not found: %w", pkgerrors.ErrNotFound)
	}

	now := time.Now().UTC()
	chat := &types.Chat{
		ID:            uuid.New(),
		UserID:        rd.UserID,
		TutorID:       tutorID,
		Title:         title,
		Metadata:      datatypes.JSON([]byte(`{}`)),
		NextSeq:       0,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.chats.Create(repoCtx, chat); err != nil {
		return nil, err
	}

	if s.notify != nil {
		s.notify.ChatCreated(rd.UserID, chat)
	}
	return chat, nil
}

func (s *chatService) ListChats(dbc dbctx.Context, tutorID *uuid.UUID, limit int) ([]*types.Chat, error) {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated: %w", pkgerrors.ErrUnauthorized)
	}
	return s.chats.ListByUser(dbc, rd.UserID, tutorID, limit)
}

// ownedChat loads the chat and enforces ownership. Foreign chats read as
// not-found, never as forbidden, to avoid leaking existence.
func (s *chatService) ownedChat(dbc dbctx.Context, chatID uuid.UUID) (*types.Chat, error) {
	rd := requestdata.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("not authenticated: %w", pkgerrors.ErrUnauthorized)
	}
	if chatID == uuid.Nil {
		return nil, fmt.Errorf("missing chat id: %w", pkgerrors.ErrInvalidArgument)
	}
	chat, err := s.chats.GetByID(dbc, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != rd.UserID {
		return nil, fmt.Errorf("chat not found: %w", pkgerrors.ErrNotFound)
	}
	return chat, nil
}

func (s *chatService) GetChat(dbc dbctx.Context, chatID uuid.UUID, limit int) (*types.Chat, []*types.Message, error) {
	chat, err := s.ownedChat(dbc, chatID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.messages.ListByChat(dbc, chatID, limit)
	if err != nil {
		return nil, nil, err
	}
	return chat, msgs, nil
}

func (s *chatService) ListMessages(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error) {
	if _, err := s.ownedChat(dbc, chatID); err != nil {
		return nil, err
	}
	return s.messages.ListByChat(dbc, chatID, limit)
}

func (s *chatService) RenameChat(dbc dbctx.Context, chatID uuid.UUID, title string) (*types.Chat, error) {
	chat, err := s.ownedChat(dbc, chatID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("empty title: %w", pkgerrors.ErrInvalidArgument)
	}
	if err := s.chats.UpdateFields(dbc, chatID, map[string]any{"title": title}); err != nil {
		return nil, err
	}
	chat.Title = title

	rd := requestdata.GetRequestData(dbc.Ctx)
	if s.notify != nil && rd != nil {
		s.notify.ChatRenamed(rd.UserID, chat)
	}
	return chat, nil
}

func (s *chatService) DeleteChat(dbc dbctx.Context, chatID uuid.UUID) error {
	if _, err := s.ownedChat(dbc, chatID); err != nil {
		return err
	}
	if err := s.chats.Delete(dbc, chatID); err != nil {
		return err
	}

	rd := requestdata.GetRequestData(dbc.Ctx)
	if s.notify != nil && rd != nil {
		s.notify.ChatDeleted(rd.UserID, chatID)
	}
	return nil
}

func (s *chatService) Respond(dbc dbctx.Context, in RespondInput, onDelta func(delta string), onReasoning func(delta string)) (*RespondResult, error) {
	chat, err := s.ownedChat(dbc, in.ChatID)
	if err != nil {
		return nil, err
	}
	if s.llm == nil {
		return nil, fmt.Errorf("llm client not wired")
	}

	rd := requestdata.GetRequestData(dbc.Ctx)

	content := strings.TrimSpace(in.Content)
	if !in.Rerun && content == "" {
		return nil, fmt.Errorf("empty message: %w", pkgerrors.ErrInvalidArgument)
	}

	tutorRows, err := s.tutors.GetByIDs(dbc, []uuid.UUID{chat.TutorID})
	if err != nil {
		return nil, err
	}
	if len(tutorRows) == 0 || tutorRows[0] == nil {
		return nil, fmt.Errorf("tutor not found: %w", pkgerrors.ErrNotFound)
	}
	tutor := tutorRows[0]

	var userTurn *types.Message
	if in.Rerun {
		if err := s.prepareRerun(dbc, chat.ID, in); err != nil {
			return nil, err
		}
	} else {
		userTurn, err = s.appendUserTurn(dbc, chat.ID, rd.UserID, content)
		if err != nil {
			return nil, err
		}
	}

	// Prompt = system turn + the now-authoritative history (which ends with
	// the user turn being answered).
	history, err := s.messages.ListByChat(dbc, chat.ID, 0)
	if err != nil {
		return nil, err
	}
	prompt := make([]llm.Turn, 0, len(history)+1)
	prompt = append(prompt, llm.Turn{Role: types.RoleSystem, Content: tutor.SystemPrompt})
	for _, m := range history {
		if m.Role == types.RoleSystem {
			continue
		}
		prompt = append(prompt, llm.Turn{Role: m.Role, Content: m.Content})
	}

	completion, err := s.llm.StreamChat(dbc.Ctx, prompt, onDelta, onReasoning)
	if err != nil {
		return nil, err
	}

	assistantTurn, err := s.appendAssistantTurn(dbc, chat.ID, rd.UserID, completion)
	if err != nil {
		return nil, err
	}

	return &RespondResult{UserTurn: userTurn, AssistantTurn: assistantTurn}, nil
}

func (s *chatService) appendUserTurn(dbc dbctx.Context, chatID, userID uuid.UUID, content string) (*types.Message, error) {
	var turn *types.Message
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		seq, err := s.chats.AllocateSeq(txCtx, chatID, 1)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		turn = &types.Message{
			ID:        uuid.New(),
			ChatID:    chatID,
			UserID:    userID,
			Seq:       seq,
			Role:      types.RoleUser,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.messages.Create(txCtx, turn); err != nil {
			return err
		}
		return s.chats.TouchLastMessageAt(txCtx, chatID, now)
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *chatService) appendAssistantTurn(dbc dbctx.Context, chatID, userID uuid.UUID, completion llm.Completion) (*types.Message, error) {
	var turn *types.Message
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		seq, err := s.chats.AllocateSeq(txCtx, chatID, 1)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		turn = &types.Message{
			ID:        uuid.New(),
			ChatID:    chatID,
			UserID:    userID,
			Seq:       seq,
			Role:      types.RoleAssistant,
			Content:   completion.Content,
			Reasoning: completion.Reasoning,
			Model:     completion.Model,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.messages.Create(txCtx, turn); err != nil {
			return err
		}
		return s.chats.TouchLastMessageAt(txCtx, chatID, now)
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

// prepareRerun validates the cut point, optionally rewrites the kept user
// turn (edit-and-rerun), and hard-deletes everything after it so the stored
// log matches what the caller is replaying from.
func (s *chatService) prepareRerun(dbc dbctx.Context, chatID uuid.UUID, in RespondInput) error {
	if in.RerunFromSeq == nil {
		return fmt.Errorf("rerun requires rerun_from_seq: %w", pkgerrors.ErrInvalidArgument)
	}
	cut := *in.RerunFromSeq

	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		history, err := s.messages.ListByChat(txCtx, chatID, 0)
		if err != nil {
			return err
		}
		var kept *types.Message
		for _, m := range history {
			if m.Seq == cut {
				kept = m
				break
			}
		}
		if kept == nil || kept.Role != types.RoleUser {
			return fmt.Errorf("rerun_from_seq is not a user turn: %w", pkgerrors.ErrInvalidArgument)
		}

		if edited := strings.TrimSpace(in.Content); edited != "" && edited != kept.Content {
			if err := tx.WithContext(dbc.Ctx).
				Model(&types.Message{}).
				Where("id = ?", kept.ID).
				Updates(map[string]any{"content": edited, "updated_at": time.Now().UTC()}).Error; err != nil {
				return err
			}
		}

		deleted, err := s.messages.DeleteFromSeq(txCtx, chatID, cut+1)
		if err != nil {
			return err
		}
		s.log.Info("Rerun truncated chat tail",
			"chat_id", chatID.String(),
			"from_seq", cut,
			"deleted", deleted,
		)
		return nil
	})
}
