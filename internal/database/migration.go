package database

import (
	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/logger"
	"github.com/wfunc/lotto-draw/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationModels 需要迁移的模型
var migrationModels = []interface{}{
	&models.DrawRound{},
	&models.DrawRecord{},
}

// AutoMigrate 自动迁移抽号日志表
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库未初始化")
	}

	// 文件型 SQLite 加迁移锁，避免多个进程同时迁移
	if dbPath := sqlitePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath)
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return err
		}
		defer releaseMigrationLock(lockFile)
	}

	logger.Info("开始数据库迁移...")
	for _, model := range migrationModels {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败", zap.String("model", tableName(db, model)), zap.Error(err))
			return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "迁移 "+tableName(db, model))
		}
		logger.Debug("迁移成功", zap.String("table", tableName(db, model)))
	}

	createIndexes(db)

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建组合索引
func createIndexes(db *gorm.DB) {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_draw_records_round_occurred ON draw_records(round_id, occurred_at)",
		"CREATE INDEX IF NOT EXISTS idx_draw_rounds_status_created ON draw_rounds(status, created_at)",
	}
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
		}
	}
}

// tableName 获取模型对应的表名
func tableName(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return ""
	}
	return stmt.Schema.Table
}

// DropAllTables 删除抽号日志表（仅用于测试环境）
func DropAllTables(db *gorm.DB) error {
	if db == nil {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库未初始化")
	}

	for i := len(migrationModels) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(migrationModels[i]); err != nil {
			logger.Error("删除表失败", zap.String("table", tableName(db, migrationModels[i])), zap.Error(err))
			return err
		}
	}

	logger.Info("所有表已删除")
	return nil
}
