package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type ChatRepo interface {
	Create(dbc dbctx.Context, row *types.Chat) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chat, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, tutorID *uuid.UUID, limit int) ([]*types.Chat, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]any) error

	// AllocateSeq reserves n consecutive sequence numbers for the chat and
	// returns the first. Must run inside a transaction; the row lock keeps
	// concurrent turns from interleaving.
	AllocateSeq(dbc dbctx.Context, id uuid.UUID, n int64) (int64, error)

	// Delete removes the chat and every message in it. Runs in its own
	// transaction when dbc carries none.
	Delete(dbc dbctx.Context, id uuid.UUID) error

	TouchLastMessageAt(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, log *logger.Logger) ChatRepo {
	return &chatRepo{db: db, log: log.With("repo", "ChatRepo")}
}

func (r *chatRepo) Create(dbc dbctx.Context, row *types.Chat) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *chatRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Chat, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row types.Chat
	if err := txx.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *chatRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, tutorID *uuid.UUID, limit int) ([]*types.Chat, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("user_id = ?", userID)
	if tutorID != nil && *tutorID != uuid.Nil {
		q = q.Where("tutor_id = ?", *tutorID)
	}
	var out []*types.Chat
	if err := q.
		Order("last_message_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	fields["updated_at"] = time.Now().UTC()
	res := txx.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrNotFound
	}
	return nil
}

func (r *chatRepo) AllocateSeq(dbc dbctx.Context, id uuid.UUID, n int64) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row types.Chat
	if err := txx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.ErrNotFound
		}
		return 0, err
	}
	first := row.NextSeq
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Update("next_seq", first+n).Error; err != nil {
		return 0, err
	}
	return first, nil
}

func (r *chatRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	run := func(tx *gorm.DB) error {
		if err := tx.WithContext(dbc.Ctx).
			Where("chat_id = ?", id).
			Delete(&types.Message{}).Error; err != nil {
			return err
		}
		res := tx.WithContext(dbc.Ctx).
			Where("id = ?", id).
			Delete(&types.Chat{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.ErrNotFound
		}
		return nil
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.WithContext(dbc.Ctx).Transaction(run)
}

func (r *chatRepo) TouchLastMessageAt(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}
