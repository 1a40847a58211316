package repository

import (
	"github.com/wfunc/lotto-draw/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建迁移好的内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	// 每个连接各有一个内存库，只保留一个连接
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.DrawRound{}, &models.DrawRecord{}); err != nil {
		panic(err)
	}
	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	if db == nil {
		return
	}
	db.Exec("DELETE FROM draw_records")
	db.Exec("DELETE FROM draw_rounds")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
