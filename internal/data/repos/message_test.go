package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/educhat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
)

func TestMessageRepoOrdering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	userID := uuid.New()
	tutor := testutil.SeedTutor(t, ctx, tx, "messagerepo_order")
	c := testutil.SeedChat(t, ctx, tx, userID, tutor.ID)

	// Insert out of order; reads must come back by seq.
	testutil.SeedMessage(t, ctx, tx, c.ID, userID, 2, types.RoleUser, "third")
	testutil.SeedMessage(t, ctx, tx, c.ID, userID, 0, types.RoleUser, "first")
	testutil.SeedMessage(t, ctx, tx, c.ID, userID, 1, types.RoleAssistant, "second")

	rows, err := repo.ListByChat(dbc, c.ID, 0)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ListByChat len=%d", len(rows))
	}
	for i, m := range rows {
		if m.Seq != int64(i) {
			t.Fatalf("ListByChat out of order at %d: seq=%d", i, m.Seq)
		}
	}
}

func TestMessageRepoDeleteFromSeq(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewMessageRepo(db, testutil.Logger(t))

	userID := uuid.New()
	tutor := testutil.SeedTutor(t, ctx, tx, "messagerepo_truncate")
	c := testutil.SeedChat(t, ctx, tx, userID, tutor.ID)
	other := testutil.SeedChat(t, ctx, tx, userID, tutor.ID)

	for i := int64(0); i < 4; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		testutil.SeedMessage(t, ctx, tx, c.ID, userID, i, role, "m")
	}
	testutil.SeedMessage(t, ctx, tx, other.ID, userID, 0, types.RoleUser, "untouched")

	deleted, err := repo.DeleteFromSeq(dbc, c.ID, 2)
	if err != nil {
		t.Fatalf("DeleteFromSeq: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("DeleteFromSeq deleted=%d", deleted)
	}

	rows, err := repo.ListByChat(dbc, c.ID, 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("tail survived truncation: err=%v len=%d", err, len(rows))
	}
	if rows[len(rows)-1].Seq != 1 {
		t.Fatalf("wrong tail after truncation: seq=%d", rows[len(rows)-1].Seq)
	}

	// Truncation is scoped to one chat.
	n, err := repo.CountByChat(dbc, other.ID)
	if err != nil || n != 1 {
		t.Fatalf("other chat affected: err=%v n=%d", err, n)
	}
}
