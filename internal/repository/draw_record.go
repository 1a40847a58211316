package repository

import (
	"context"

	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/models"
	"gorm.io/gorm"
)

// drawRecordRepo 抽号日志仓储实现
type drawRecordRepo struct {
	db *gorm.DB
}

// NewDrawRecordRepository 创建抽号日志仓储
func NewDrawRecordRepository(db *gorm.DB) DrawRecordRepository {
	return &drawRecordRepo{db: db}
}

// WithTx 使用事务
func (r *drawRecordRepo) WithTx(tx *gorm.DB) DrawRecordRepository {
	return &drawRecordRepo{db: tx}
}

// Create 写入一条日志
func (r *drawRecordRepo) Create(ctx context.Context, record *models.DrawRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "draw_records")
	}
	return nil
}

// ListRecent 最近的日志，新的在前
func (r *drawRecordRepo) ListRecent(ctx context.Context, limit int) ([]*models.DrawRecord, error) {
	var records []*models.DrawRecord
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(ClampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}

// ListByRound 某一局的全部日志，按发生顺序
func (r *drawRecordRepo) ListByRound(ctx context.Context, roundID string) ([]*models.DrawRecord, error) {
	var records []*models.DrawRecord
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}

// CountByEvent 按事件类型计数
func (r *drawRecordRepo) CountByEvent(ctx context.Context, event models.DrawEventType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DrawRecord{}).
		Where("event = ?", event).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return count, nil
}
