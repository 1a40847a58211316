package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器
type Manager struct {
	db *gorm.DB

	recordOnce sync.Once
	recordRepo DrawRecordRepository

	roundOnce sync.Once
	roundRepo DrawRoundRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// DrawRecord 抽号日志仓储
func (m *Manager) DrawRecord() DrawRecordRepository {
	m.recordOnce.Do(func() {
		m.recordRepo = NewDrawRecordRepository(m.db)
	})
	return m.recordRepo
}

// DrawRound 轮次仓储
func (m *Manager) DrawRound() DrawRoundRepository {
	m.roundOnce.Do(func() {
		m.roundRepo = NewDrawRoundRepository(m.db)
	})
	return m.roundRepo
}

// Transaction 在事务中使用事务版本的仓储
func (m *Manager) Transaction(ctx context.Context, fn func(records DrawRecordRepository, rounds DrawRoundRepository) error) error {
	return NewBaseRepo(m.db).Transaction(ctx, func(tx *gorm.DB) error {
		return fn(m.DrawRecord().WithTx(tx), m.DrawRound().WithTx(tx))
	})
}
