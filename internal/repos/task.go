package repos

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

type TaskRepo interface {
	Create(ctx context.Context, tx *gorm.DB, taskRows []*types.Task) ([]*types.Task, error)
	GetByID(ctx context.Context, tx *gorm.DB, taskID string) (*types.Task, error)
	FindByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Task, error)
	FindByVideo(ctx context.Context, tx *gorm.DB, videoID string) ([]*types.Task, error)
	FindByVideoAndStatus(ctx context.Context, tx *gorm.DB, videoID string, status string) ([]*types.Task, error)
	// ExistsNonFailed reports whether a live task already occupies the
	// (video_id, task_type, language) tuple.
	ExistsNonFailed(ctx context.Context, tx *gorm.DB, videoID string, taskType string, language *string) (bool, error)
	// CompletedTypes returns the set of task types completed for a video.
	CompletedTypes(ctx context.Context, tx *gorm.DB, videoID string) (map[string]bool, error)
	// ClaimNextPending atomically flips the highest-priority oldest
	// pending task of the type to running. Exactly one concurrent caller
	// can win a given task.
	ClaimNextPending(ctx context.Context, tx *gorm.DB, taskType string) (*types.Task, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, taskID string) error
	MarkFailed(ctx context.Context, tx *gorm.DB, taskID string, errMsg string) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, taskID string) error
	// ResetForRetry returns a failed (or stalled running) task to pending.
	ResetForRetry(ctx context.Context, tx *gorm.DB, taskID string) error
	FindRunningLongerThan(ctx context.Context, tx *gorm.DB, threshold time.Duration) ([]*types.Task, error)
	CountByVideo(ctx context.Context, tx *gorm.DB, videoID string) (total, completed, failed int64, err error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(ctx context.Context, tx *gorm.DB, taskRows []*types.Task) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(taskRows) == 0 {
		return []*types.Task{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&taskRows).Error; err != nil {
		return nil, err
	}
	return taskRows, nil
}

func (r *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, taskID string) (*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var task types.Task
	err := transaction.WithContext(ctx).
		Where("task_id = ?", taskID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) FindByStatus(ctx context.Context, tx *gorm.DB, status string) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskRepo) FindByVideo(ctx context.Context, tx *gorm.DB, videoID string) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskRepo) FindByVideoAndStatus(ctx context.Context, tx *gorm.DB, videoID string, status string) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("video_id = ? AND status = ?", videoID, status).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskRepo) ExistsNonFailed(ctx context.Context, tx *gorm.DB, videoID string, taskType string, language *string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(ctx).Model(&types.Task{}).
		Where("video_id = ? AND task_type = ? AND status <> ?", videoID, taskType, types.TaskStatusFailed)
	if language == nil {
		q = q.Where("language IS NULL")
	} else {
		q = q.Where("language = ?", *language)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *taskRepo) CompletedTypes(ctx context.Context, tx *gorm.DB, videoID string) (map[string]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var taskTypes []string
	if err := transaction.WithContext(ctx).Model(&types.Task{}).
		Where("video_id = ? AND status = ?", videoID, types.TaskStatusCompleted).
		Distinct().
		Pluck("task_type", &taskTypes).Error; err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(taskTypes))
	for _, t := range taskTypes {
		completed[t] = true
	}
	return completed, nil
}

func (r *taskRepo) ClaimNextPending(ctx context.Context, tx *gorm.DB, taskType string) (*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var claimed *types.Task
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		q := txx
		// Row locks with SKIP LOCKED keep parallel claimers off the same
		// row on Postgres; SQLite serializes writers so the status CAS
		// below is sufficient there.
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var task types.Task
		qErr := q.
			Where("task_type = ? AND status = ?", taskType, types.TaskStatusPending).
			Order("priority ASC").
			Order("created_at ASC").
			First(&task).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		now := time.Now().UTC()
		res := txx.Model(&types.Task{}).
			Where("task_id = ? AND status = ?", task.TaskID, types.TaskStatusPending).
			Updates(map[string]any{
				"status":     types.TaskStatusRunning,
				"started_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker won the CAS between select and update.
			return nil
		}
		task.Status = types.TaskStatusRunning
		task.StartedAt = &now
		claimed = &task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *taskRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, taskID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       types.TaskStatusCompleted,
			"completed_at": time.Now().UTC(),
		}).Error
}

func (r *taskRepo) MarkFailed(ctx context.Context, tx *gorm.DB, taskID string, errMsg string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       types.TaskStatusFailed,
			"completed_at": time.Now().UTC(),
			"error":        errMsg,
		}).Error
}

func (r *taskRepo) MarkCancelled(ctx context.Context, tx *gorm.DB, taskID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       types.TaskStatusCancelled,
			"completed_at": time.Now().UTC(),
		}).Error
}

func (r *taskRepo) ResetForRetry(ctx context.Context, tx *gorm.DB, taskID string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Model(&types.Task{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":       types.TaskStatusPending,
			"error":        nil,
			"started_at":   nil,
			"completed_at": nil,
		}).Error
}

func (r *taskRepo) FindRunningLongerThan(ctx context.Context, tx *gorm.DB, threshold time.Duration) ([]*types.Task, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var results []*types.Task
	if err := transaction.WithContext(ctx).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", types.TaskStatusRunning, cutoff).
		Order("started_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taskRepo) CountByVideo(ctx context.Context, tx *gorm.DB, videoID string) (int64, int64, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).Model(&types.Task{}).
		Select("status, COUNT(*) as count").
		Where("video_id = ?", videoID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return 0, 0, 0, err
	}
	var total, completed, failed int64
	for _, rr := range rows {
		total += rr.Count
		switch rr.Status {
		case types.TaskStatusCompleted:
			completed += rr.Count
		case types.TaskStatusFailed:
			failed += rr.Count
		}
	}
	return total, completed, failed, nil
}
