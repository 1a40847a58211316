package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/models"
	"gorm.io/gorm"
)

// drawRoundRepo 轮次仓储实现
type drawRoundRepo struct {
	db *gorm.DB
}

// NewDrawRoundRepository 创建轮次仓储
func NewDrawRoundRepository(db *gorm.DB) DrawRoundRepository {
	return &drawRoundRepo{db: db}
}

// WithTx 使用事务
func (r *drawRoundRepo) WithTx(tx *gorm.DB) DrawRoundRepository {
	return &drawRoundRepo{db: tx}
}

// Ensure 获取轮次，不存在时创建
func (r *drawRoundRepo) Ensure(ctx context.Context, id string) (*models.DrawRound, error) {
	round := models.DrawRound{ID: id, Status: models.RoundStatusOpen}
	err := r.db.WithContext(ctx).
		Where(models.DrawRound{ID: id}).
		FirstOrCreate(&round).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "draw_rounds")
	}
	return &round, nil
}

// Get 获取轮次
func (r *drawRoundRepo) Get(ctx context.Context, id string) (*models.DrawRound, error) {
	var round models.DrawRound
	err := r.db.WithContext(ctx).First(&round, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "round=%s", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return &round, nil
}

// Save 保存轮次
func (r *drawRoundRepo) Save(ctx context.Context, round *models.DrawRound) error {
	if err := r.db.WithContext(ctx).Save(round).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "draw_rounds")
	}
	return nil
}

// ListRecent 最近的轮次，新的在前
func (r *drawRoundRepo) ListRecent(ctx context.Context, limit int) ([]*models.DrawRound, error) {
	var rounds []*models.DrawRound
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(ClampLimit(limit)).
		Find(&rounds).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return rounds, nil
}
