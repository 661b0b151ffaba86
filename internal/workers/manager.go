package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/mljobs"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/services"
	"github.com/eioku/eioku-backend/internal/tasks"
)

// ManagerDeps carries everything executor construction needs.
type ManagerDeps struct {
	DB           *gorm.DB
	TaskRepo     repos.TaskRepo
	VideoRepo    repos.VideoRepo
	ArtifactRepo repos.ArtifactRepo
	RunRepo      repos.RunRepo
	Orchestrator *services.Orchestrator
	Queue        *mljobs.Queue
	// Producer overrides the job-queue client for every ML type; tests
	// and queue-less deployments inject the mock here.
	Producer producer.Client
	Renderer ThumbnailRenderer
}

// Manager owns one pool per configured task type.
type Manager struct {
	log   *logger.Logger
	pools map[tasks.TaskType]*Pool
}

// NewManager builds the per-type pools from a processing profile.
func NewManager(baseLog *logger.Logger, profile *profiles.Profile, deps ManagerDeps) *Manager {
	m := &Manager{
		log:   baseLog.With("component", "WorkerPoolManager"),
		pools: map[tasks.TaskType]*Pool{},
	}

	for taskType, cfg := range profile.WorkerConfigs {
		exec := m.executorFor(taskType, cfg, baseLog, profile, deps)
		if exec == nil {
			m.log.Warn("No executor for task type, pool skipped", "task_type", string(taskType))
			continue
		}
		m.pools[taskType] = NewPool(cfg, baseLog, deps.TaskRepo, deps.Orchestrator, exec)
	}
	return m
}

func (m *Manager) executorFor(taskType tasks.TaskType, cfg profiles.WorkerConfig, baseLog *logger.Logger, profile *profiles.Profile, deps ManagerDeps) Executor {
	switch taskType {
	case tasks.TypeHash:
		return NewHashExecutor(baseLog, deps.VideoRepo)

	case tasks.TypeThumbnailGeneration, tasks.TypeThumbnailExtraction:
		return NewThumbnailExecutor(taskType, baseLog, deps.DB, deps.VideoRepo, deps.Renderer)

	default:
		if !tasks.MLTypes[taskType] {
			return nil
		}
		client := deps.Producer
		if client == nil && deps.Queue != nil {
			needsGPU := cfg.ResourceType == profiles.ResourceGPU
			timeout := time.Duration(cfg.TaskTimeoutSeconds) * time.Second
			if timeout <= 0 {
				timeout = profiles.DefaultTaskTimeoutSeconds * time.Second
			}
			client = mljobs.NewClient(deps.Queue, needsGPU, timeout)
		}
		if client == nil {
			return nil
		}
		return NewProducerExecutor(taskType, baseLog, client, deps.VideoRepo, deps.ArtifactRepo, deps.RunRepo, profile)
	}
}

// StartAll launches every pool; they stop when ctx is cancelled.
func (m *Manager) StartAll(ctx context.Context) {
	for _, pool := range m.pools {
		pool.Start(ctx)
	}
	m.log.Info("Started worker pools", "pool_count", len(m.pools))
}

// WaitAll blocks until every worker has exited.
func (m *Manager) WaitAll() {
	for _, pool := range m.pools {
		pool.Wait()
	}
}

// Status reports pool sizing keyed by task type.
func (m *Manager) Status() map[string]map[string]any {
	out := make(map[string]map[string]any, len(m.pools))
	for taskType, pool := range m.pools {
		out[string(taskType)] = map[string]any{
			"worker_count":         pool.cfg.WorkerCount,
			"resource_type":        pool.cfg.ResourceType,
			"priority":             pool.cfg.Priority,
			"task_timeout_seconds": pool.cfg.TaskTimeoutSeconds,
		}
	}
	return out
}
