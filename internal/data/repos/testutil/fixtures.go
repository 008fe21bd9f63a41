package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/educhat-backend/internal/domain"
)

func SeedTutor(tb testing.TB, ctx context.Context, tx *gorm.DB, key string) *types.Tutor {
	tb.Helper()
	tu := &types.Tutor{
		ID:           uuid.New(),
		Key:          key,
		Name:         "Tutor " + key,
		Subject:      "Mathematics",
		SystemPrompt: "You are a tutor.",
	}
	if err := tx.WithContext(ctx).Create(tu).Error; err != nil {
		tb.Fatalf("seed tutor: %v", err)
	}
	return tu
}

func SeedChat(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, tutorID uuid.UUID) *types.Chat {
	tb.Helper()
	c := &types.Chat{
		ID:            uuid.New(),
		UserID:        userID,
		TutorID:       tutorID,
		Title:         "New chat",
		Metadata:      datatypes.JSON([]byte("{}")),
		LastMessageAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chat: %v", err)
	}
	return c
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, chatID, userID uuid.UUID, seq int64, role, content string) *types.Message {
	tb.Helper()
	m := &types.Message{
		ID:      uuid.New(),
		ChatID:  chatID,
		UserID:  userID,
		Seq:     seq,
		Role:    role,
		Content: content,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}
