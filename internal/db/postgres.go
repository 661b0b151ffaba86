package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
	"github.com/eioku/eioku-backend/internal/utils"
)

func NewPostgresService(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")

	logg.Info("Loading environment variables...")
	dsn := utils.GetEnv("DATABASE_URL", "", logg)
	if dsn == "" {
		postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", logg)
		postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", logg)
		postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", logg)
		postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", logg)
		postgresName := utils.GetEnv("POSTGRES_NAME", "eioku", logg)
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser,
			postgresPassword,
			postgresHost,
			postgresPort,
			postgresName,
		)
	}

	// GORM logger: ignore "record not found" spam (critical for polling workers)
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	logg.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		logg.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &Service{db: gdb, dialect: DialectPostgres, log: serviceLog}, nil
}

// AutoMigrateAll creates the three principal tables plus every projection.
func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")

	err := s.db.AutoMigrate(
		&types.Video{},
		&types.Task{},
		&types.Artifact{},
		&types.Run{},
		&types.ArtifactSelection{},

		&types.SceneRange{},
		&types.ObjectLabel{},
		&types.FaceCluster{},
		&types.VideoLocation{},
		&types.TranscriptFTS{},
		&types.OCRFTS{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return s.migrateFTS()
}

// migrateFTS adds the native full-text machinery where the dialect has it.
// SQLite keeps the plain text column and the query layer substring-matches.
func (s *Service) migrateFTS() error {
	if !s.IsPostgres() {
		return nil
	}
	stmts := []string{
		`ALTER TABLE transcript_fts ADD COLUMN IF NOT EXISTS text_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', text)) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_fts_tsv ON transcript_fts USING GIN (text_tsv)`,
		`ALTER TABLE ocr_fts ADD COLUMN IF NOT EXISTS text_tsv tsvector
			GENERATED ALWAYS AS (to_tsvector('english', text)) STORED`,
		`CREATE INDEX IF NOT EXISTS idx_ocr_fts_tsv ON ocr_fts USING GIN (text_tsv)`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Error("FTS migration failed", "error", err)
			return err
		}
	}
	s.log.Info("FTS migration complete")
	return nil
}
