package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/mljobs"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/tasks"
	"github.com/eioku/eioku-backend/internal/types"
)

// Orchestrator converts video state into the set of tasks that should
// exist, creates the missing ones, and reacts to completions by
// unblocking dependents.
type Orchestrator struct {
	db        *gorm.DB
	log       *logger.Logger
	taskRepo  repos.TaskRepo
	videoRepo repos.VideoRepo
	queue     *mljobs.Queue
	profile   *profiles.Profile
}

func NewOrchestrator(db *gorm.DB, baseLog *logger.Logger, taskRepo repos.TaskRepo, videoRepo repos.VideoRepo, queue *mljobs.Queue, profile *profiles.Profile) *Orchestrator {
	return &Orchestrator{
		db:        db,
		log:       baseLog.With("service", "Orchestrator"),
		taskRepo:  taskRepo,
		videoRepo: videoRepo,
		queue:     queue,
		profile:   profile,
	}
}

// CreateTasksForVideo creates every task the video is ready for and does
// not already have live, then enqueues the ML-bound ones on the job queue.
func (o *Orchestrator) CreateTasksForVideo(ctx context.Context, video *types.Video) ([]*types.Task, error) {
	completed, err := o.taskRepo.CompletedTypes(ctx, nil, video.VideoID)
	if err != nil {
		return nil, err
	}
	existing, err := o.taskRepo.FindByVideo(ctx, nil, video.VideoID)
	if err != nil {
		return nil, err
	}
	byType := make(map[string]*types.Task, len(existing))
	for _, t := range existing {
		byType[t.TaskType] = t
	}

	var created []*types.Task
	for _, taskType := range tasks.All {
		if !tasks.VideoReadyFor(video, taskType) {
			continue
		}
		if !o.dependenciesMet(taskType, completed) {
			continue
		}
		exists, err := o.taskRepo.ExistsNonFailed(ctx, nil, video.VideoID, string(taskType), nil)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		task := &types.Task{
			TaskID:       uuid.NewString(),
			VideoID:      video.VideoID,
			TaskType:     string(taskType),
			Status:       types.TaskStatusPending,
			Priority:     tasks.PriorityFor(taskType),
			Dependencies: dependencyIDs(taskType, byType),
		}
		if _, err := o.taskRepo.Create(ctx, nil, []*types.Task{task}); err != nil {
			return nil, err
		}
		created = append(created, task)
		byType[task.TaskType] = task

		if err := o.enqueueMLJob(ctx, video, task); err != nil {
			o.log.Warn("Failed to enqueue ML job, reconciler will retry", "task_id", task.TaskID, "error", err)
		}

		o.log.Info("Created task", "task_type", taskType, "task_id", task.TaskID, "video_id", video.VideoID)
	}
	return created, nil
}

func (o *Orchestrator) dependenciesMet(taskType tasks.TaskType, completed map[string]bool) bool {
	for _, dep := range tasks.Dependencies[taskType] {
		if !completed[string(dep)] {
			return false
		}
	}
	return true
}

// dependencyIDs resolves the ids of the completed tasks this task waited
// on; the readiness check guarantees they exist.
func dependencyIDs(taskType tasks.TaskType, byType map[string]*types.Task) datatypes.JSON {
	var ids []string
	for _, dep := range tasks.Dependencies[taskType] {
		if t, ok := byType[string(dep)]; ok {
			ids = append(ids, t.TaskID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// enqueueMLJob pushes the deterministic ml_{task_id} job for ML-bound
// task types; queue-less deployments skip it and their worker pools call
// the in-process producer on claim instead.
func (o *Orchestrator) enqueueMLJob(ctx context.Context, video *types.Video, task *types.Task) error {
	if o.queue == nil || !tasks.MLTypes[tasks.TaskType(task.TaskType)] {
		return nil
	}
	req := o.ProducerRequest(video, task)
	needsGPU := false
	if cfg, ok := o.profile.WorkerConfigs[tasks.TaskType(task.TaskType)]; ok {
		needsGPU = cfg.ResourceType == profiles.ResourceGPU
	}
	_, err := o.queue.Enqueue(ctx, &mljobs.Job{
		JobID:    mljobs.JobID(task.TaskID),
		Request:  req,
		NeedsGPU: needsGPU,
	})
	return err
}

// ProducerRequest builds the ML producer contract input for a task.
func (o *Orchestrator) ProducerRequest(video *types.Video, task *types.Task) *producer.Request {
	req := &producer.Request{
		TaskID:    task.TaskID,
		TaskType:  task.TaskType,
		VideoID:   video.VideoID,
		VideoPath: video.FilePath,
		Config:    o.profile.ProducerConfig(),
	}
	if task.Language != nil {
		req.Config["language"] = *task.Language
	}
	if video.FileHash != nil {
		req.InputHash = *video.FileHash
	}
	return req
}

// ProcessDiscoveredVideos sweeps discovered videos and creates their hash
// tasks.
func (o *Orchestrator) ProcessDiscoveredVideos(ctx context.Context) (int, error) {
	videos, err := o.videoRepo.FindByStatus(ctx, nil, types.VideoStatusDiscovered)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, video := range videos {
		created, err := o.CreateTasksForVideo(ctx, video)
		if err != nil {
			o.log.Error("Failed to create tasks for discovered video", "video_id", video.VideoID, "error", err)
			continue
		}
		total += len(created)
	}
	o.log.Info("Processed discovered videos", "videos", len(videos), "tasks_created", total)
	return total, nil
}

// ProcessHashedVideos creates the parallel analysis tasks and promotes
// videos to processing.
func (o *Orchestrator) ProcessHashedVideos(ctx context.Context) (int, error) {
	videos, err := o.videoRepo.FindByStatus(ctx, nil, types.VideoStatusHashed)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, video := range videos {
		created, err := o.CreateTasksForVideo(ctx, video)
		if err != nil {
			o.log.Error("Failed to create tasks for hashed video", "video_id", video.VideoID, "error", err)
			continue
		}
		total += len(created)
		if len(created) > 0 {
			if err := o.videoRepo.UpdateStatus(ctx, nil, video.VideoID, types.VideoStatusProcessing); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// HandleTaskCompletion runs the completion protocol: mark completed,
// promote the video if this was the hash task, create newly-ready
// dependents, and close out the video when everything is done.
func (o *Orchestrator) HandleTaskCompletion(ctx context.Context, task *types.Task) ([]*types.Task, error) {
	if err := o.taskRepo.MarkCompleted(ctx, nil, task.TaskID); err != nil {
		return nil, err
	}

	if task.TaskType == string(tasks.TypeHash) {
		if err := o.videoRepo.UpdateStatus(ctx, nil, task.VideoID, types.VideoStatusHashed); err != nil {
			return nil, err
		}
	}

	video, err := o.videoRepo.GetByID(ctx, nil, task.VideoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		o.log.Warn("Completed task for missing video", "task_id", task.TaskID, "video_id", task.VideoID)
		return nil, nil
	}

	created, err := o.CreateTasksForVideo(ctx, video)
	if err != nil {
		return nil, err
	}
	if video.Status == types.VideoStatusHashed && len(created) > 0 {
		if err := o.videoRepo.UpdateStatus(ctx, nil, video.VideoID, types.VideoStatusProcessing); err != nil {
			return created, err
		}
	}

	if err := o.checkVideoCompletion(ctx, video.VideoID); err != nil {
		return created, err
	}

	o.log.Info("Handled task completion", "task_type", task.TaskType, "video_id", task.VideoID, "new_tasks", len(created))
	return created, nil
}

// HandleTaskFailure records the failure. Hash is the root of the graph:
// its fatal failure sinks the whole video. Every other failure stays
// task-local so siblings keep going.
func (o *Orchestrator) HandleTaskFailure(ctx context.Context, task *types.Task, errMsg string) error {
	if err := o.taskRepo.MarkFailed(ctx, nil, task.TaskID, errMsg); err != nil {
		return err
	}
	if task.TaskType == string(tasks.TypeHash) {
		if err := o.videoRepo.UpdateStatus(ctx, nil, task.VideoID, types.VideoStatusFailed); err != nil {
			return err
		}
	}
	o.log.Error("Task failed", "task_type", task.TaskType, "task_id", task.TaskID, "video_id", task.VideoID, "error", errMsg)
	return nil
}

// checkVideoCompletion marks the video completed once every expected task
// type has a completed row and nothing failed or is still in flight.
func (o *Orchestrator) checkVideoCompletion(ctx context.Context, videoID string) error {
	rows, err := o.taskRepo.FindByVideo(ctx, nil, videoID)
	if err != nil {
		return err
	}
	completedTypes := map[string]bool{}
	for _, t := range rows {
		switch t.Status {
		case types.TaskStatusFailed:
			return nil
		case types.TaskStatusPending, types.TaskStatusRunning:
			return nil
		case types.TaskStatusCompleted:
			completedTypes[t.TaskType] = true
		}
	}
	for _, taskType := range tasks.All {
		if !completedTypes[string(taskType)] {
			return nil
		}
	}
	o.log.Info("All tasks completed for video", "video_id", videoID)
	return o.videoRepo.UpdateStatus(ctx, nil, videoID, types.VideoStatusCompleted)
}

// RetryFailedTasks resets failed tasks to pending and re-enqueues their
// jobs. Empty videoID retries across the library.
func (o *Orchestrator) RetryFailedTasks(ctx context.Context, videoID string) (int, error) {
	var failed []*types.Task
	var err error
	if videoID != "" {
		failed, err = o.taskRepo.FindByVideoAndStatus(ctx, nil, videoID, types.TaskStatusFailed)
	} else {
		failed, err = o.taskRepo.FindByStatus(ctx, nil, types.TaskStatusFailed)
	}
	if err != nil {
		return 0, err
	}

	retried := 0
	for _, task := range failed {
		if err := o.taskRepo.ResetForRetry(ctx, nil, task.TaskID); err != nil {
			return retried, err
		}
		video, err := o.videoRepo.GetByID(ctx, nil, task.VideoID)
		if err != nil {
			return retried, err
		}
		if video != nil {
			if err := o.enqueueMLJob(ctx, video, task); err != nil {
				o.log.Warn("Failed to re-enqueue retried task", "task_id", task.TaskID, "error", err)
			}
		}
		retried++
	}
	o.log.Info("Retried failed tasks", "count", retried, "video_id", videoID)
	return retried, nil
}

// StatusCounts reports the per-status video counts the operator sees.
func (o *Orchestrator) StatusCounts(ctx context.Context) (map[string]int64, error) {
	return o.videoRepo.StatusCounts(ctx, nil)
}

// StartSweeper periodically picks up videos the event-driven path missed
// (process restarts, partial failures).
func (o *Orchestrator) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := o.ProcessDiscoveredVideos(ctx); err != nil {
					o.log.Warn("Discovered-video sweep failed", "error", err)
				}
				if _, err := o.ProcessHashedVideos(ctx); err != nil {
					o.log.Warn("Hashed-video sweep failed", "error", err)
				}
			}
		}
	}()
}
