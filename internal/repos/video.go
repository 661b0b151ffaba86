package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, video *types.Video) (*types.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, videoID string) (*types.Video, error)
	GetByPath(ctx context.Context, tx *gorm.DB, filePath string) (*types.Video, error)
	FindByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Video, error)
	Save(ctx context.Context, tx *gorm.DB, video *types.Video) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, videoID string, status string) error
	SetFileHash(ctx context.Context, tx *gorm.DB, videoID string, fileHash string) error
	StatusCounts(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	DeleteCascade(ctx context.Context, tx *gorm.DB, videoID string) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, video *types.Video) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(video).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: video with path %s already exists", apperr.ErrConflict, video.FilePath)
		}
		return nil, err
	}
	return video, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, videoID string) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var video types.Video
	err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) GetByPath(ctx context.Context, tx *gorm.DB, filePath string) (*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var video types.Video
	err := transaction.WithContext(ctx).
		Where("file_path = ?", filePath).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) FindByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Video
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *videoRepo) Save(ctx context.Context, tx *gorm.DB, video *types.Video) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(video).Error
}

func (r *videoRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, videoID string, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{"status": status}
	if status == types.VideoStatusCompleted {
		updates["processed_at"] = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Model(&types.Video{}).
		Where("video_id = ?", videoID).
		Updates(updates).Error
}

func (r *videoRepo) SetFileHash(ctx context.Context, tx *gorm.DB, videoID string, fileHash string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Video{}).
		Where("video_id = ?", videoID).
		Update("file_hash", fileHash).Error
}

func (r *videoRepo) StatusCounts(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).Model(&types.Video{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rr := range rows {
		counts[rr.Status] = rr.Count
	}
	return counts, nil
}

// DeleteCascade removes a video and everything it owns: tasks, runs,
// envelopes, selection policies and every projection row. Foreign keys are
// not enforced at the store level (migration disables them), so ownership
// is applied here, in one transaction.
func (r *videoRepo) DeleteCascade(ctx context.Context, tx *gorm.DB, videoID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		for _, del := range []error{
			txx.Where("asset_id = ?", videoID).Delete(&types.SceneRange{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.ObjectLabel{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.FaceCluster{}).Error,
			txx.Where("video_id = ?", videoID).Delete(&types.VideoLocation{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.TranscriptFTS{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.OCRFTS{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.Artifact{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.ArtifactSelection{}).Error,
			txx.Where("asset_id = ?", videoID).Delete(&types.Run{}).Error,
			txx.Where("video_id = ?", videoID).Delete(&types.Task{}).Error,
			txx.Where("video_id = ?", videoID).Delete(&types.Video{}).Error,
		} {
			if del != nil {
				return del
			}
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique failed")
}
