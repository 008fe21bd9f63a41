package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
)

func TestChatRepoCRUD(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewChatRepo(db, testutil.Logger(t))

	userID := uuid.New()
	tutor := testutil.SeedTutor(t, ctx, tx, "chatrepo_crud")

	c := testutil.SeedChat(t, ctx, tx, userID, tutor.ID)

	got, err := repo.GetByID(dbc, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "New chat" {
		t.Fatalf("GetByID title: %q", got.Title)
	}

	if err := repo.UpdateFields(dbc, c.ID, map[string]any{"title": "Limits and continuity"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, c.ID)
	if err != nil || got.Title != "Limits and continuity" {
		t.Fatalf("rename: err=%v title=%q", err, got.Title)
	}

	if err := repo.UpdateFields(dbc, uuid.New(), map[string]any{"title": "x"}); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("UpdateFields on missing chat: %v", err)
	}

	rows, err := repo.ListByUser(dbc, userID, nil, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}
	rows, err = repo.ListByUser(dbc, userID, &tutor.ID, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser tutor filter: err=%v len=%d", err, len(rows))
	}
	other := uuid.New()
	rows, err = repo.ListByUser(dbc, userID, &other, 10)
	if err != nil || len(rows) != 0 {
		t.Fatalf("ListByUser foreign tutor: err=%v len=%d", err, len(rows))
	}
}

func TestChatRepoAllocateSeq(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewChatRepo(db, testutil.Logger(t))

	tutor := testutil.SeedTutor(t, ctx, tx, "chatrepo_seq")
	c := testutil.SeedChat(t, ctx, tx, uuid.New(), tutor.ID)

	first, err := repo.AllocateSeq(dbc, c.ID, 2)
	if err != nil {
		t.Fatalf("AllocateSeq: %v", err)
	}
	second, err := repo.AllocateSeq(dbc, c.ID, 1)
	if err != nil {
		t.Fatalf("AllocateSeq: %v", err)
	}
	if second != first+2 {
		t.Fatalf("AllocateSeq not contiguous: first=%d second=%d", first, second)
	}

	if _, err := repo.AllocateSeq(dbc, uuid.New(), 1); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("AllocateSeq on missing chat: %v", err)
	}
}

func TestChatRepoDeleteCascades(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	chats := NewChatRepo(db, testutil.Logger(t))
	messages := NewMessageRepo(db, testutil.Logger(t))

	userID := uuid.New()
	tutor := testutil.SeedTutor(t, ctx, tx, "chatrepo_delete")
	c := testutil.SeedChat(t, ctx, tx, userID, tutor.ID)
	testutil.SeedMessage(t, ctx, tx, c.ID, userID, 0, types.RoleUser, "hi")
	testutil.SeedMessage(t, ctx, tx, c.ID, userID, 1, types.RoleAssistant, "hello")

	if err := chats.Delete(dbc, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := chats.GetByID(dbc, c.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("GetByID after delete: %v", err)
	}
	n, err := messages.CountByChat(dbc, c.ID)
	if err != nil || n != 0 {
		t.Fatalf("messages survived chat delete: err=%v n=%d", err, n)
	}

	if err := chats.Delete(dbc, c.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
}
