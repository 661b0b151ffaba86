package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/eioku/eioku-backend/internal/logger"
)

// NewMemoryService opens a private in-memory SQLite store. Tests and
// ephemeral demo runs use it; the name keeps concurrent stores apart.
func NewMemoryService(name string, logg *logger.Logger) (*Service, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	svc := &Service{db: gdb, dialect: DialectSQLite, log: logg.With("service", "MemoryService")}
	if err := svc.AutoMigrateAll(); err != nil {
		return nil, err
	}
	return svc, nil
}
