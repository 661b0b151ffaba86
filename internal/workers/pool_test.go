package workers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eioku/eioku-backend/internal/db"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/services"
	"github.com/eioku/eioku-backend/internal/tasks"
	"github.com/eioku/eioku-backend/internal/types"
)

type poolFixture struct {
	taskRepo  repos.TaskRepo
	videoRepo repos.VideoRepo
	orch      *services.Orchestrator
	video     *types.Video
}

func newPoolFixture(t *testing.T, name string) *poolFixture {
	t.Helper()
	store, err := db.NewMemoryService(name, logger.NewNop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	log := logger.NewNop()
	taskRepo := repos.NewTaskRepo(store.DB(), log)
	videoRepo := repos.NewVideoRepo(store.DB(), log)

	manager := profiles.NewManager()
	profile, err := manager.Get("balanced")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	orch := services.NewOrchestrator(store.DB(), log, taskRepo, videoRepo, nil, profile)

	hash := "deadbeefdeadbeef"
	video := &types.Video{
		VideoID:      "v-" + name,
		FilePath:     "/library/" + name + ".mp4",
		Filename:     name + ".mp4",
		FileHash:     &hash,
		LastModified: time.Now().UTC(),
		Status:       types.VideoStatusProcessing,
	}
	if _, err := videoRepo.Create(context.Background(), nil, video); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return &poolFixture{taskRepo: taskRepo, videoRepo: videoRepo, orch: orch, video: video}
}

func (f *poolFixture) seedTasks(t *testing.T, taskType string, count int) []string {
	t.Helper()
	rows := make([]*types.Task, 0, count)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		rows = append(rows, &types.Task{
			TaskID:   id,
			VideoID:  f.video.VideoID,
			TaskType: taskType,
			Status:   types.TaskStatusPending,
			Priority: 3,
		})
	}
	if _, err := f.taskRepo.Create(context.Background(), nil, rows); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}
	return ids
}

type recordingExecutor struct {
	mu       sync.Mutex
	executed map[string]int
}

func (e *recordingExecutor) Execute(ctx context.Context, task *types.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.executed == nil {
		e.executed = map[string]int{}
	}
	e.executed[task.TaskID]++
	return nil
}

type sleepyExecutor struct{}

func (sleepyExecutor) Execute(ctx context.Context, task *types.Task) error {
	<-ctx.Done()
	return ctx.Err()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() (bool, error)) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		done, err := cond()
		if err != nil {
			t.Fatalf("waitFor: %v", err)
		}
		if done {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestPoolDrainsQueueExactlyOnce(t *testing.T) {
	f := newPoolFixture(t, "pool_drain")
	exec := &recordingExecutor{}

	cfg := profiles.WorkerConfig{
		TaskType:           tasks.TypeObjectDetection,
		WorkerCount:        4,
		ResourceType:       profiles.ResourceCPU,
		Priority:           3,
		TaskTimeoutSeconds: 30,
	}
	pool := NewPool(cfg, logger.NewNop(), f.taskRepo, f.orch, exec)

	ids := f.seedTasks(t, "object_detection", 20)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitFor(t, 15*time.Second, func() (bool, error) {
		rows, err := f.taskRepo.FindByVideoAndStatus(context.Background(), nil, f.video.VideoID, types.TaskStatusCompleted)
		if err != nil {
			return false, err
		}
		return len(rows) == len(ids), nil
	})
	cancel()
	pool.Wait()

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.executed) != len(ids) {
		t.Fatalf("expected %d distinct executions, got %d", len(ids), len(exec.executed))
	}
	for taskID, count := range exec.executed {
		if count != 1 {
			t.Fatalf("task %s executed %d times", taskID, count)
		}
	}
}

func TestPoolEnforcesTimeout(t *testing.T) {
	f := newPoolFixture(t, "pool_timeout")

	cfg := profiles.WorkerConfig{
		TaskType:           tasks.TypeObjectDetection,
		WorkerCount:        1,
		ResourceType:       profiles.ResourceCPU,
		Priority:           3,
		TaskTimeoutSeconds: 1,
	}
	pool := NewPool(cfg, logger.NewNop(), f.taskRepo, f.orch, sleepyExecutor{})

	ids := f.seedTasks(t, "object_detection", 1)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	waitFor(t, 15*time.Second, func() (bool, error) {
		task, err := f.taskRepo.GetByID(context.Background(), nil, ids[0])
		if err != nil {
			return false, err
		}
		return task != nil && task.Status == types.TaskStatusFailed, nil
	})
	cancel()
	pool.Wait()

	task, err := f.taskRepo.GetByID(context.Background(), nil, ids[0])
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if task.Error == nil || !strings.Contains(*task.Error, "timeout") {
		t.Fatalf("timeout failure must carry a timeout error, got %+v", task.Error)
	}
}
