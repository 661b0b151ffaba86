package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

type RunRepo interface {
	Start(ctx context.Context, tx *gorm.DB, run *types.Run) (*types.Run, error)
	GetByID(ctx context.Context, tx *gorm.DB, runID string) (*types.Run, error)
	FindByAsset(ctx context.Context, tx *gorm.DB, assetID string) ([]*types.Run, error)
	Finish(ctx context.Context, tx *gorm.DB, runID string, status string, errMsg *string) error
}

type runRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo {
	return &runRepo{db: db, log: baseLog.With("repo", "RunRepo")}
}

func (r *runRepo) Start(ctx context.Context, tx *gorm.DB, run *types.Run) (*types.Run, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = types.RunStatusRunning
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepo) GetByID(ctx context.Context, tx *gorm.DB, runID string) (*types.Run, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var run types.Run
	err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) FindByAsset(ctx context.Context, tx *gorm.DB, assetID string) ([]*types.Run, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Run
	if err := transaction.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("started_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *runRepo) Finish(ctx context.Context, tx *gorm.DB, runID string, status string, errMsg *string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Run{}).
		Where("run_id = ?", runID).
		Updates(map[string]any{
			"status":      status,
			"finished_at": time.Now().UTC(),
			"error":       errMsg,
		}).Error
}
