package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/utils"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Service wraps the GORM handle together with the probed dialect. The
// dialect decides which full-text implementation the query layer uses.
type Service struct {
	db      *gorm.DB
	dialect string
	log     *logger.Logger
}

// NewFromEnv selects the backing store from DATABASE_DIALECT.
func NewFromEnv(logg *logger.Logger) (*Service, error) {
	dialect := strings.ToLower(utils.GetEnv("DATABASE_DIALECT", DialectPostgres, logg))
	switch dialect {
	case DialectPostgres:
		return NewPostgresService(logg)
	case DialectSQLite:
		return NewSQLiteService(logg)
	default:
		return nil, fmt.Errorf("unknown DATABASE_DIALECT %q", dialect)
	}
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Dialect() string { return s.dialect }

// IsPostgres reports whether native FTS (tsvector) is available.
func (s *Service) IsPostgres() bool { return s.dialect == DialectPostgres }
