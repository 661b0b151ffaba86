package mljobs

import (
	"context"
	"time"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/tasks"
	"github.com/eioku/eioku-backend/internal/types"
)

const (
	DefaultReconcileInterval    = 5 * time.Minute
	DefaultLongRunningThreshold = time.Hour
)

// Stats summarizes one reconciliation sweep.
type Stats struct {
	PendingChecked    int `json:"pending_checked"`
	PendingReenqueued int `json:"pending_reenqueued"`
	RunningChecked    int `json:"running_checked"`
	RunningReset      int `json:"running_reset"`
	LongRunningAlerts int `json:"long_running_alerts"`
	Errors            int `json:"errors"`
}

// Reconciler restores consistency between the durable task store and the
// ephemeral job queue. The store is the single source of truth; the queue
// is a cache that this sweep can rebuild.
type Reconciler struct {
	log                  *logger.Logger
	queue                *Queue
	taskRepo             repos.TaskRepo
	videoRepo            repos.VideoRepo
	profile              *profiles.Profile
	interval             time.Duration
	longRunningThreshold time.Duration
}

func NewReconciler(baseLog *logger.Logger, queue *Queue, taskRepo repos.TaskRepo, videoRepo repos.VideoRepo, profile *profiles.Profile, interval, longRunningThreshold time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	if longRunningThreshold <= 0 {
		longRunningThreshold = DefaultLongRunningThreshold
	}
	return &Reconciler{
		log:                  baseLog.With("component", "Reconciler"),
		queue:                queue,
		taskRepo:             taskRepo,
		videoRepo:            videoRepo,
		profile:              profile,
		interval:             interval,
		longRunningThreshold: longRunningThreshold,
	}
}

// Start runs the sweep on its interval until ctx ends.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := r.Run(ctx)
				r.log.Info("Reconciliation complete",
					"pending_checked", stats.PendingChecked,
					"pending_reenqueued", stats.PendingReenqueued,
					"running_checked", stats.RunningChecked,
					"running_reset", stats.RunningReset,
					"long_running_alerts", stats.LongRunningAlerts,
					"errors", stats.Errors,
				)
			}
		}
	}()
}

// Run executes one full sweep.
func (r *Reconciler) Run(ctx context.Context) Stats {
	var stats Stats
	r.syncPending(ctx, &stats)
	r.syncRunning(ctx, &stats)
	r.alertLongRunning(ctx, &stats)
	return stats
}

// syncPending re-enqueues jobs lost from the queue while their tasks are
// still pending (queue data loss). A stale never-claimed pending task is
// the same case: its job vanished, so it gets re-enqueued here.
func (r *Reconciler) syncPending(ctx context.Context, stats *Stats) {
	pending, err := r.taskRepo.FindByStatus(ctx, nil, types.TaskStatusPending)
	if err != nil {
		r.log.Error("Failed to list pending tasks", "error", err)
		stats.Errors++
		return
	}
	for _, task := range pending {
		if !tasks.MLTypes[tasks.TaskType(task.TaskType)] {
			continue
		}
		stats.PendingChecked++

		exists, err := r.queue.Exists(ctx, JobID(task.TaskID))
		if err != nil {
			r.log.Error("Queue probe failed", "task_id", task.TaskID, "error", err)
			stats.Errors++
			continue
		}
		if exists {
			continue
		}

		r.log.Warn("Pending task has no queued job, re-enqueueing", "task_id", task.TaskID, "task_type", task.TaskType)
		if err := r.enqueue(ctx, task); err != nil {
			r.log.Error("Re-enqueue failed", "task_id", task.TaskID, "error", err)
			stats.Errors++
			continue
		}
		stats.PendingReenqueued++
	}
}

// syncRunning resets running tasks whose job vanished (worker crash or
// queue loss) back to pending and re-enqueues them.
func (r *Reconciler) syncRunning(ctx context.Context, stats *Stats) {
	running, err := r.taskRepo.FindByStatus(ctx, nil, types.TaskStatusRunning)
	if err != nil {
		r.log.Error("Failed to list running tasks", "error", err)
		stats.Errors++
		return
	}
	for _, task := range running {
		if !tasks.MLTypes[tasks.TaskType(task.TaskType)] {
			continue
		}
		stats.RunningChecked++

		exists, err := r.queue.Exists(ctx, JobID(task.TaskID))
		if err != nil {
			r.log.Error("Queue probe failed", "task_id", task.TaskID, "error", err)
			stats.Errors++
			continue
		}
		if exists {
			continue
		}

		r.log.Warn("Running task lost its job, resetting to pending", "task_id", task.TaskID, "task_type", task.TaskType)
		if err := r.taskRepo.ResetForRetry(ctx, nil, task.TaskID); err != nil {
			r.log.Error("Reset failed", "task_id", task.TaskID, "error", err)
			stats.Errors++
			continue
		}
		if err := r.enqueue(ctx, task); err != nil {
			r.log.Error("Re-enqueue failed", "task_id", task.TaskID, "error", err)
			stats.Errors++
			continue
		}
		stats.RunningReset++
	}
}

// alertLongRunning logs tasks past the threshold. Alert only: a slow task
// is never auto-killed.
func (r *Reconciler) alertLongRunning(ctx context.Context, stats *Stats) {
	stalled, err := r.taskRepo.FindRunningLongerThan(ctx, nil, r.longRunningThreshold)
	if err != nil {
		r.log.Error("Failed to find long-running tasks", "error", err)
		stats.Errors++
		return
	}
	for _, task := range stalled {
		runningFor := time.Duration(0)
		if task.StartedAt != nil {
			runningFor = time.Since(*task.StartedAt)
		}
		r.log.Warn("ALERT: task running past threshold",
			"task_id", task.TaskID,
			"task_type", task.TaskType,
			"video_id", task.VideoID,
			"running_for", runningFor.String(),
			"threshold", r.longRunningThreshold.String(),
		)
		stats.LongRunningAlerts++
	}
}

func (r *Reconciler) enqueue(ctx context.Context, task *types.Task) error {
	video, err := r.videoRepo.GetByID(ctx, nil, task.VideoID)
	if err != nil {
		return err
	}
	if video == nil {
		r.log.Warn("Task references missing video, skipping enqueue", "task_id", task.TaskID, "video_id", task.VideoID)
		return nil
	}

	req := &producer.Request{
		TaskID:    task.TaskID,
		TaskType:  task.TaskType,
		VideoID:   video.VideoID,
		VideoPath: video.FilePath,
		Config:    r.profile.ProducerConfig(),
	}
	if task.Language != nil {
		req.Config["language"] = *task.Language
	}
	if video.FileHash != nil {
		req.InputHash = *video.FileHash
	}

	needsGPU := false
	if cfg, ok := r.profile.WorkerConfigs[tasks.TaskType(task.TaskType)]; ok {
		needsGPU = cfg.ResourceType == profiles.ResourceGPU
	}
	_, err = r.queue.Enqueue(ctx, &Job{JobID: JobID(task.TaskID), Request: req, NeedsGPU: needsGPU})
	return err
}
