package repository

import (
	"context"

	"github.com/wfunc/lotto-draw/internal/models"
	"gorm.io/gorm"
)

// DefaultListLimit 默认查询条数
const DefaultListLimit = 50

// MaxListLimit 单次查询上限
const MaxListLimit = 500

// ClampLimit 规范化查询条数
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// DrawRecordRepository 抽号日志仓储
type DrawRecordRepository interface {
	Create(ctx context.Context, record *models.DrawRecord) error
	ListRecent(ctx context.Context, limit int) ([]*models.DrawRecord, error)
	ListByRound(ctx context.Context, roundID string) ([]*models.DrawRecord, error)
	CountByEvent(ctx context.Context, event models.DrawEventType) (int64, error)
	WithTx(tx *gorm.DB) DrawRecordRepository
}

// DrawRoundRepository 轮次仓储
type DrawRoundRepository interface {
	Ensure(ctx context.Context, id string) (*models.DrawRound, error)
	Get(ctx context.Context, id string) (*models.DrawRound, error)
	Save(ctx context.Context, round *models.DrawRound) error
	ListRecent(ctx context.Context, limit int) ([]*models.DrawRound, error)
	WithTx(tx *gorm.DB) DrawRoundRepository
}

// BaseRepo 基础仓储实现
type BaseRepo struct {
	db *gorm.DB
}

// NewBaseRepo 创建基础仓储
func NewBaseRepo(db *gorm.DB) *BaseRepo {
	return &BaseRepo{db: db}
}

// GetDB 获取数据库实例
func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// Transaction 执行事务
func (r *BaseRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
