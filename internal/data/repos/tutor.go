package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/educhat-backend/internal/domain"
	"github.com/yungbote/educhat-backend/internal/pkg/dbctx"
	"github.com/yungbote/educhat-backend/internal/platform/logger"
)

type TutorRepo interface {
	// Upsert inserts tutors by seed key, leaving existing rows untouched
	// (personas are immutable after creation).
	Upsert(dbc dbctx.Context, rows []*types.Tutor) error
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Tutor, error)
	List(dbc dbctx.Context, limit int) ([]*types.Tutor, error)
}

type tutorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTutorRepo(db *gorm.DB, log *logger.Logger) TutorRepo {
	return &tutorRepo{db: db, log: log.With("repo", "TutorRepo")}
}

func (r *tutorRepo) Upsert(dbc dbctx.Context, rows []*types.Tutor) error {
	if len(rows) == 0 {
		return nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *tutorRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Tutor, error) {
	if len(ids) == 0 {
		return []*types.Tutor{}, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Tutor
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Tutor{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *tutorRepo) List(dbc dbctx.Context, limit int) ([]*types.Tutor, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.Tutor
	if err := txx.WithContext(dbc.Ctx).
		Model(&types.Tutor{}).
		Order("subject ASC, name ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
