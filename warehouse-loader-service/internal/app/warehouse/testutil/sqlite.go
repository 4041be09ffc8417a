// Package testutil поднимает хранилище SQLite со схемами staging и dw для тестов
package testutil

import (
	"path/filepath"
	"testing"

	"ecommerce-dw/warehouse-loader-service/internal/app/warehouse/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenWarehouse создает чистую базу во временном каталоге теста
func OpenWarehouse(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "dw.db"), gormlogger.Silent)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrateStaging(db))
	require.NoError(t, repository.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// ReplaceStaging заменяет снимок в таблице staging, как это делает выгрузка перед запуском
func ReplaceStaging[T any](t testing.TB, db *gorm.DB, rows []T) {
	t.Helper()

	var model T
	require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model).Error)
	if len(rows) > 0 {
		require.NoError(t, db.Create(&rows).Error)
	}
}
