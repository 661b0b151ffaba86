package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/utils"
)

// NewSQLiteService opens a local SQLite store. Used for single-box
// deployments; tests open their stores through NewMemoryService.
func NewSQLiteService(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")

	path := utils.GetEnv("SQLITE_PATH", "eioku.db", logg)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	logg.Info("Opening SQLite store...", "path", path)
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		logg.Error("Failed to open SQLite store", "error", err)
		return nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}

	// SQLite serializes writers; one connection avoids table-lock errors
	// under the polling workers.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &Service{db: gdb, dialect: DialectSQLite, log: serviceLog}, nil
}
