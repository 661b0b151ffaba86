package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/services"
	"github.com/eioku/eioku-backend/internal/tasks"
	"github.com/eioku/eioku-backend/internal/types"
	"github.com/eioku/eioku-backend/internal/utils"
)

// maxTransientRetries bounds in-worker retries before a Transient error
// becomes Fatal.
const maxTransientRetries = 5

// HashExecutor computes the content hash that roots the task graph.
type HashExecutor struct {
	log       *logger.Logger
	videoRepo repos.VideoRepo
}

func NewHashExecutor(baseLog *logger.Logger, videoRepo repos.VideoRepo) *HashExecutor {
	return &HashExecutor{
		log:       baseLog.With("executor", "hash"),
		videoRepo: videoRepo,
	}
}

func (e *HashExecutor) Execute(ctx context.Context, task *types.Task) error {
	video, err := e.videoRepo.GetByID(ctx, nil, task.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: video %s", apperr.ErrNotFound, task.VideoID)
	}

	fileHash, err := utils.ComputeInputHash(video.FilePath)
	if err != nil {
		return apperr.Fatal(fmt.Errorf("hash %s: %w", video.FilePath, err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.videoRepo.SetFileHash(ctx, nil, video.VideoID, fileHash)
}

// ProducerExecutor drives one ML-bound task type: invoke the producer,
// record the run, transform the response into envelopes and persist them
// atomically.
type ProducerExecutor struct {
	taskType     tasks.TaskType
	log          *logger.Logger
	client       producer.Client
	videoRepo    repos.VideoRepo
	artifactRepo repos.ArtifactRepo
	runRepo      repos.RunRepo
	profile      *profiles.Profile
}

func NewProducerExecutor(taskType tasks.TaskType, baseLog *logger.Logger, client producer.Client, videoRepo repos.VideoRepo, artifactRepo repos.ArtifactRepo, runRepo repos.RunRepo, profile *profiles.Profile) *ProducerExecutor {
	return &ProducerExecutor{
		taskType:     taskType,
		log:          baseLog.With("executor", string(taskType)),
		client:       client,
		videoRepo:    videoRepo,
		artifactRepo: artifactRepo,
		runRepo:      runRepo,
		profile:      profile,
	}
}

func (e *ProducerExecutor) Execute(ctx context.Context, task *types.Task) error {
	video, err := e.videoRepo.GetByID(ctx, nil, task.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: video %s", apperr.ErrNotFound, task.VideoID)
	}

	req := &producer.Request{
		TaskID:    task.TaskID,
		TaskType:  task.TaskType,
		VideoID:   video.VideoID,
		VideoPath: video.FilePath,
		Config:    e.profile.ProducerConfig(),
	}
	if task.Language != nil {
		req.Config["language"] = *task.Language
	}
	if video.FileHash != nil {
		req.InputHash = *video.FileHash
	}

	resp, err := e.invoke(ctx, req)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	run := &types.Run{
		RunID:           resp.RunID,
		AssetID:         video.VideoID,
		PipelineProfile: e.profile.Name,
		Status:          types.RunStatusRunning,
	}
	if _, err := e.runRepo.Start(ctx, nil, run); err != nil {
		return err
	}

	envelopes, err := services.BuildEnvelopes(task, resp)
	if err != nil {
		e.finishRun(run.RunID, types.RunStatusFailed, err)
		return err
	}
	if err := ctx.Err(); err != nil {
		e.finishRun(run.RunID, types.RunStatusFailed, err)
		return err
	}

	if _, err := e.artifactRepo.BatchCreate(ctx, nil, envelopes); err != nil {
		e.finishRun(run.RunID, types.RunStatusFailed, err)
		return err
	}

	if e.taskType == tasks.TypeMetadataExtraction && resp.Metadata != nil {
		if err := e.applyMetadata(ctx, video, resp.Metadata); err != nil {
			e.finishRun(run.RunID, types.RunStatusFailed, err)
			return err
		}
	}

	e.finishRun(run.RunID, types.RunStatusCompleted, nil)
	e.log.Info("Producer run complete", "task_id", task.TaskID, "run_id", resp.RunID, "envelopes", len(envelopes))
	return nil
}

// invoke calls the producer with bounded exponential backoff on Transient
// errors. Validation and Fatal errors surface immediately.
func (e *ProducerExecutor) invoke(ctx context.Context, req *producer.Request) (*producer.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 1 * time.Second
	policy.MaxInterval = 30 * time.Second

	var resp *producer.Response
	attempts := 0
	operation := func() error {
		attempts++
		var err error
		resp, err = e.client.Process(ctx, req)
		if err == nil {
			return nil
		}
		if apperr.IsTransient(err) {
			if attempts < maxTransientRetries {
				e.log.Warn("Transient producer error, retrying", "task_id", req.TaskID, "attempt", attempts, "error", err)
				return err
			}
			return backoff.Permanent(apperr.Fatal(err))
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return nil, err
	}
	return resp, nil
}

func (e *ProducerExecutor) finishRun(runID string, status string, cause error) {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}
	// Run bookkeeping must survive a cancelled task context.
	if err := e.runRepo.Finish(context.Background(), nil, runID, status, errMsg); err != nil {
		e.log.Error("Failed to finish run", "run_id", runID, "error", err)
	}
}

// applyMetadata copies duration and the EXIF creation date onto the video
// row; file_created_at is the global timeline's primary sort key.
func (e *ProducerExecutor) applyMetadata(ctx context.Context, video *types.Video, meta *producer.Metadata) error {
	changed := false
	if meta.DurationSeconds != nil {
		video.DurationSeconds = meta.DurationSeconds
		changed = true
	}
	if meta.CreateDate != nil {
		if created := services.ParseCreateDate(*meta.CreateDate); created != nil {
			video.FileCreatedAt = created
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return e.videoRepo.Save(ctx, nil, video)
}

// ThumbnailRenderer is the external collaborator that writes thumbnail
// images; the core only chooses timestamps.
type ThumbnailRenderer interface {
	Render(ctx context.Context, videoPath string, timestampMs int64) error
}

type NoopRenderer struct{}

func (NoopRenderer) Render(ctx context.Context, videoPath string, timestampMs int64) error {
	return nil
}

// ThumbnailExecutor serves thumbnail_generation (scene midpoints) and
// thumbnail_extraction (artifact timestamps across every producer).
type ThumbnailExecutor struct {
	taskType  tasks.TaskType
	log       *logger.Logger
	db        *gorm.DB
	videoRepo repos.VideoRepo
	renderer  ThumbnailRenderer
}

func NewThumbnailExecutor(taskType tasks.TaskType, baseLog *logger.Logger, db *gorm.DB, videoRepo repos.VideoRepo, renderer ThumbnailRenderer) *ThumbnailExecutor {
	if renderer == nil {
		renderer = NoopRenderer{}
	}
	return &ThumbnailExecutor{
		taskType:  taskType,
		log:       baseLog.With("executor", string(taskType)),
		db:        db,
		videoRepo: videoRepo,
		renderer:  renderer,
	}
}

func (e *ThumbnailExecutor) Execute(ctx context.Context, task *types.Task) error {
	video, err := e.videoRepo.GetByID(ctx, nil, task.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("%w: video %s", apperr.ErrNotFound, task.VideoID)
	}

	timestamps, err := e.timestamps(ctx, task.VideoID)
	if err != nil {
		return err
	}

	failed := 0
	for _, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.renderer.Render(ctx, video.FilePath, ts); err != nil {
			failed++
			e.log.Warn("Thumbnail render failed", "video_id", video.VideoID, "timestamp_ms", ts, "error", err)
		}
	}
	// Partial success still completes the task; the failures are only
	// noted in the log.
	if failed > 0 {
		e.log.Warn("Thumbnail task completed with failures", "video_id", video.VideoID, "failed", failed, "total", len(timestamps))
	}
	return nil
}

func (e *ThumbnailExecutor) timestamps(ctx context.Context, videoID string) ([]int64, error) {
	if e.taskType == tasks.TypeThumbnailGeneration {
		var scenes []types.SceneRange
		if err := e.db.WithContext(ctx).
			Where("asset_id = ?", videoID).
			Order("scene_index ASC").
			Find(&scenes).Error; err != nil {
			return nil, err
		}
		out := make([]int64, 0, len(scenes))
		for _, s := range scenes {
			out = append(out, (s.StartMs+s.EndMs)/2)
		}
		return out, nil
	}

	var spans []int64
	if err := e.db.WithContext(ctx).Model(&types.Artifact{}).
		Where("asset_id = ?", videoID).
		Order("span_start_ms ASC").
		Limit(64).
		Pluck("span_start_ms", &spans).Error; err != nil {
		return nil, err
	}
	return spans, nil
}
