package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/wfunc/lotto-draw/internal/errors"
	"github.com/wfunc/lotto-draw/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	lockAttempts = 30
	lockWait     = time.Second
	lockStale    = 5 * time.Minute
)

// acquireMigrationLock 获取迁移锁
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	// 尝试创建锁文件（独占模式）
	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			logger.Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件太旧时视为上次异常退出留下的
		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > lockStale {
			logger.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			os.Remove(lockPath)
			continue
		}

		logger.Debug("等待迁移锁...", zap.Int("attempt", i+1))
		time.Sleep(lockWait)
	}

	return nil, apperrors.New(apperrors.ErrTimeout, "无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}

	lockPath := lockFile.Name()
	lockFile.Close()
	os.Remove(lockPath)
	logger.Debug("释放迁移锁", zap.String("lock", lockPath))
}

// sqlitePath 文件型 SQLite 的数据库文件路径，其它驱动或内存库返回空
func sqlitePath(db *gorm.DB) string {
	if db == nil || db.Dialector.Name() != "sqlite" {
		return ""
	}
	sqlDB, err := db.DB()
	if err != nil {
		return ""
	}

	row := sqlDB.QueryRow("PRAGMA database_list")
	var seq int
	var name, file string
	if err := row.Scan(&seq, &name, &file); err != nil {
		return ""
	}
	return file
}

// ensureSQLiteDir 文件型 SQLite 需要先创建所在目录
func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	path := strings.SplitN(strings.TrimPrefix(dsn, "file:"), "?", 2)[0]
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "创建数据目录失败")
	}
	return nil
}

// CleanupStaleLocks 清理过期的迁移锁
func CleanupStaleLocks(dbPath string) {
	lockPath := dbPath + ".migration.lock"
	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > 2*lockStale {
		logger.Info("清理过期锁文件", zap.String("file", lockPath))
		os.Remove(lockPath)
	}
}
