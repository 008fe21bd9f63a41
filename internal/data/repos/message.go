package repos

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/educhat-backend/internal/pkg/errors"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, row *types.Message) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error)
	ListByChat(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error)

	// DeleteFromSeq hard-deletes every message in the chat at or after seq.
	// Used by reruns: the truncated tail is replayed, never resurrected.
	DeleteFromSeq(dbc dbctx.Context, chatID uuid.UUID, seq int64) (int64, error)

	CountByChat(dbc dbctx.Context, chatID uuid.UUID) (int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, row *types.Message) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		// Unique violation on (chat_id, seq) means a concurrent writer won
		// the slot; callers retry with a freshly allocated seq.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return pkgerrors.ErrConflict
		}
		return err
	}
	return nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Message, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var row types.Message
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

func (r *messageRepo) ListByChat(dbc dbctx.Context, chatID uuid.UUID, limit int) ([]*types.Message, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Message
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("chat_id = ?", chatID).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) DeleteFromSeq(dbc dbctx.Context, chatID uuid.UUID, seq int64) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Unscoped().
		Where("chat_id = ? AND seq >= ?", chatID, seq).
		Delete(&types.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepo) CountByChat(dbc dbctx.Context, chatID uuid.UUID) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("chat_id = ?", chatID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
