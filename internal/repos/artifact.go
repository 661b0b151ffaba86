package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/projection"
	"github.com/eioku/eioku-backend/internal/schema"
	"github.com/eioku/eioku-backend/internal/types"
)

// AssetQuery narrows GetByAsset results. Zero values mean "no filter".
type AssetQuery struct {
	ArtifactType   string
	StartMs        *int64
	EndMs          *int64
	RunID          string
	Selection      *types.ArtifactSelection
	PayloadFilters map[string]any
}

type ArtifactRepo interface {
	// Create validates, persists one envelope and synchronizes its
	// projection in a single transaction.
	Create(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error)
	// BatchCreate validates every envelope first (fail fast), then bulk
	// inserts and syncs projections in one transaction. Re-running the
	// same batch is a no-op.
	BatchCreate(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error)
	GetByID(ctx context.Context, tx *gorm.DB, artifactID string) (*types.Artifact, error)
	GetByAsset(ctx context.Context, tx *gorm.DB, assetID string, q AssetQuery) ([]*types.Artifact, error)
	GetBySpan(ctx context.Context, tx *gorm.DB, assetID string, artifactType string, spanStartMs, spanEndMs int64, selection *types.ArtifactSelection) ([]*types.Artifact, error)
	// Delete removes the envelope and cascades to its projection rows.
	Delete(ctx context.Context, tx *gorm.DB, artifactID string) (bool, error)
	CountByRun(ctx context.Context, tx *gorm.DB, runID string) (int64, error)
}

type artifactRepo struct {
	db          *gorm.DB
	registry    *schema.Registry
	projections *projection.Registry
	log         *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, registry *schema.Registry, projections *projection.Registry, baseLog *logger.Logger) ArtifactRepo {
	return &artifactRepo{
		db:          db,
		registry:    registry,
		projections: projections,
		log:         baseLog.With("repo", "ArtifactRepo"),
	}
}

func (r *artifactRepo) validate(artifact *types.Artifact) error {
	if artifact.SpanStartMs < 0 || artifact.SpanEndMs < 0 {
		return apperr.NewValidation("span", "span must be non-negative")
	}
	if artifact.SpanStartMs > artifact.SpanEndMs {
		return apperr.NewValidation("span", "span_start_ms must be <= span_end_ms")
	}
	return r.registry.Validate(artifact.ArtifactType, artifact.SchemaVersion, artifact.PayloadJSON)
}

func (r *artifactRepo) Create(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := r.validate(artifact); err != nil {
		return nil, err
	}

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artifact_id"}},
			DoNothing: true,
		}).Create(artifact).Error; err != nil {
			return err
		}
		return r.projections.Sync(ctx, txx, artifact)
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug("Created artifact", "artifact_id", artifact.ArtifactID, "artifact_type", artifact.ArtifactType, "run_id", artifact.RunID)
	return artifact, nil
}

func (r *artifactRepo) BatchCreate(ctx context.Context, tx *gorm.DB, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(artifacts) == 0 {
		return []*types.Artifact{}, nil
	}

	for _, artifact := range artifacts {
		if err := r.validate(artifact); err != nil {
			return nil, fmt.Errorf("artifact %s: %w", artifact.ArtifactID, err)
		}
	}

	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "artifact_id"}},
			DoNothing: true,
		}).Create(&artifacts).Error; err != nil {
			return err
		}
		for _, artifact := range artifacts {
			if err := r.projections.Sync(ctx, txx, artifact); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Created artifacts in batch", "count", len(artifacts))
	return artifacts, nil
}

func (r *artifactRepo) GetByID(ctx context.Context, tx *gorm.DB, artifactID string) (*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var artifact types.Artifact
	err := transaction.WithContext(ctx).
		Where("artifact_id = ?", artifactID).
		First(&artifact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (r *artifactRepo) GetByAsset(ctx context.Context, tx *gorm.DB, assetID string, q AssetQuery) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Artifact{}).
		Where("asset_id = ?", assetID)
	if q.ArtifactType != "" {
		query = query.Where("artifact_type = ?", q.ArtifactType)
	}
	if q.StartMs != nil {
		query = query.Where("span_start_ms >= ?", *q.StartMs)
	}
	if q.EndMs != nil {
		query = query.Where("span_end_ms <= ?", *q.EndMs)
	}
	if q.RunID != "" {
		query = query.Where("run_id = ?", q.RunID)
	}
	for field, value := range q.PayloadFilters {
		query = query.Where(datatypes.JSONQuery("payload_json").Equals(value, field))
	}

	ordered := false
	if q.Selection != nil {
		var err error
		query, ordered, err = r.applySelection(ctx, transaction, query, assetID, q.ArtifactType, q.Selection)
		if err != nil {
			return nil, err
		}
	}
	if !ordered {
		query = query.Order("span_start_ms ASC")
	}

	var results []*types.Artifact
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *artifactRepo) GetBySpan(ctx context.Context, tx *gorm.DB, assetID string, artifactType string, spanStartMs, spanEndMs int64, selection *types.ArtifactSelection) ([]*types.Artifact, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Artifact{}).
		Where("asset_id = ? AND artifact_type = ?", assetID, artifactType).
		Where("span_start_ms < ? AND span_end_ms > ?", spanEndMs, spanStartMs)

	ordered := false
	if selection != nil {
		var err error
		query, ordered, err = r.applySelection(ctx, transaction, query, assetID, artifactType, selection)
		if err != nil {
			return nil, err
		}
	}
	if !ordered {
		query = query.Order("span_start_ms ASC")
	}

	var results []*types.Artifact
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// applySelection narrows a query per the selection policy. Returns the
// query and whether it installed its own ordering.
func (r *artifactRepo) applySelection(ctx context.Context, transaction *gorm.DB, query *gorm.DB, assetID, artifactType string, policy *types.ArtifactSelection) (*gorm.DB, bool, error) {
	switch policy.SelectionMode {
	case types.SelectionModePinned:
		if policy.PinnedRunID == nil || *policy.PinnedRunID == "" {
			return query, false, nil
		}
		// Pinned runs can vanish; resolution falls back to no restriction.
		var count int64
		if err := transaction.WithContext(ctx).Model(&types.Artifact{}).
			Where("run_id = ?", *policy.PinnedRunID).
			Count(&count).Error; err != nil {
			return nil, false, err
		}
		if count == 0 {
			r.log.Warn("Pinned run has no artifacts, falling back to default", "pinned_run_id", *policy.PinnedRunID)
			return query, false, nil
		}
		return query.Where("run_id = ?", *policy.PinnedRunID), false, nil

	case types.SelectionModeProfile:
		if policy.PreferredProfile == nil || *policy.PreferredProfile == "" {
			return query, false, nil
		}
		return query.Where("model_profile = ?", *policy.PreferredProfile), false, nil

	case types.SelectionModeLatest:
		sub := transaction.Model(&types.Artifact{}).
			Select("run_id").
			Where("asset_id = ? AND artifact_type = ?", assetID, artifactType).
			Order("created_at DESC").
			Limit(1)
		return query.Where("run_id = (?)", sub), false, nil

	case types.SelectionModeBestQuality:
		return query.
			Order("CASE model_profile WHEN 'high_quality' THEN 0 WHEN 'balanced' THEN 1 ELSE 2 END").
			Order("created_at DESC").
			Order("artifact_id ASC"), true, nil

	default:
		return query, false, nil
	}
}

func (r *artifactRepo) Delete(ctx context.Context, tx *gorm.DB, artifactID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	deleted := false
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := r.projections.RemoveAll(ctx, txx, artifactID); err != nil {
			return err
		}
		res := txx.Where("artifact_id = ?", artifactID).Delete(&types.Artifact{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (r *artifactRepo) CountByRun(ctx context.Context, tx *gorm.DB, runID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).Model(&types.Artifact{}).
		Where("run_id = ?", runID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
