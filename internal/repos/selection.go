package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

type SelectionRepo interface {
	Get(ctx context.Context, tx *gorm.DB, assetID string, artifactType string) (*types.ArtifactSelection, error)
	// Set validates mode-specific requirements and upserts the policy.
	Set(ctx context.Context, tx *gorm.DB, policy *types.ArtifactSelection) (*types.ArtifactSelection, error)
	Delete(ctx context.Context, tx *gorm.DB, assetID string, artifactType string) error
}

type selectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSelectionRepo(db *gorm.DB, baseLog *logger.Logger) SelectionRepo {
	return &selectionRepo{db: db, log: baseLog.With("repo", "SelectionRepo")}
}

func (r *selectionRepo) Get(ctx context.Context, tx *gorm.DB, assetID string, artifactType string) (*types.ArtifactSelection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var policy types.ArtifactSelection
	err := transaction.WithContext(ctx).
		Where("asset_id = ? AND artifact_type = ?", assetID, artifactType).
		First(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *selectionRepo) Set(ctx context.Context, tx *gorm.DB, policy *types.ArtifactSelection) (*types.ArtifactSelection, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	switch policy.SelectionMode {
	case types.SelectionModeDefault, types.SelectionModeLatest, types.SelectionModeBestQuality:
	case types.SelectionModePinned:
		if policy.PinnedRunID == nil || *policy.PinnedRunID == "" {
			return nil, apperr.NewValidation("pinned_run_id", "required for pinned selection mode")
		}
	case types.SelectionModeProfile:
		if policy.PreferredProfile == nil || *policy.PreferredProfile == "" {
			return nil, apperr.NewValidation("preferred_profile", "required for profile selection mode")
		}
	default:
		return nil, apperr.NewValidation("selection_mode", "unknown mode "+policy.SelectionMode)
	}

	if err := transaction.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}, {Name: "artifact_type"}},
		UpdateAll: true,
	}).Create(policy).Error; err != nil {
		return nil, err
	}
	return policy, nil
}

func (r *selectionRepo) Delete(ctx context.Context, tx *gorm.DB, assetID string, artifactType string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("asset_id = ? AND artifact_type = ?", assetID, artifactType).
		Delete(&types.ArtifactSelection{}).Error
}
