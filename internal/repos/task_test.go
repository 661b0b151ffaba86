package repos

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eioku/eioku-backend/internal/db"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

func newTestStore(t *testing.T, name string) *db.Service {
	t.Helper()
	store, err := db.NewMemoryService(name, logger.NewNop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return store
}

func seedVideo(t *testing.T, videos VideoRepo, videoID string) *types.Video {
	t.Helper()
	video := &types.Video{
		VideoID:      videoID,
		FilePath:     "/library/" + videoID + ".mp4",
		Filename:     videoID + ".mp4",
		LastModified: time.Now().UTC(),
		Status:       types.VideoStatusDiscovered,
	}
	if _, err := videos.Create(context.Background(), nil, video); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return video
}

func TestClaimNextPendingUnderContention(t *testing.T) {
	store := newTestStore(t, "claim_contention")
	log := logger.NewNop()
	videos := NewVideoRepo(store.DB(), log)
	taskRepo := NewTaskRepo(store.DB(), log)
	ctx := context.Background()

	video := seedVideo(t, videos, "v-contention")

	const taskCount = 100
	rows := make([]*types.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		rows = append(rows, &types.Task{
			TaskID:   uuid.NewString(),
			VideoID:  video.VideoID,
			TaskType: "object_detection",
			Status:   types.TaskStatusPending,
			Priority: 3,
		})
	}
	if _, err := taskRepo.Create(ctx, nil, rows); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}

	const workerCount = 8
	claimed := make(chan string, taskCount+workerCount)
	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := taskRepo.ClaimNextPending(ctx, nil, "object_detection")
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if task == nil {
					return
				}
				if task.StartedAt == nil {
					t.Errorf("claimed task %s has no started_at", task.TaskID)
				}
				claimed <- task.TaskID
			}
		}()
	}
	wg.Wait()
	close(claimed)

	seen := map[string]bool{}
	for taskID := range claimed {
		if seen[taskID] {
			t.Fatalf("task %s claimed twice", taskID)
		}
		seen[taskID] = true
	}
	if len(seen) != taskCount {
		t.Fatalf("expected %d claims, got %d", taskCount, len(seen))
	}

	remaining, err := taskRepo.FindByStatus(ctx, nil, types.TaskStatusPending)
	if err != nil {
		t.Fatalf("FindByStatus: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected drained queue, %d pending left", len(remaining))
	}
}

func TestClaimOrderRespectsPriorityThenAge(t *testing.T) {
	store := newTestStore(t, "claim_order")
	log := logger.NewNop()
	videos := NewVideoRepo(store.DB(), log)
	taskRepo := NewTaskRepo(store.DB(), log)
	ctx := context.Background()

	video := seedVideo(t, videos, "v-order")

	base := time.Now().UTC().Add(-time.Hour)
	mk := func(id string, priority int, age time.Duration) *types.Task {
		return &types.Task{
			TaskID:    id,
			VideoID:   video.VideoID,
			TaskType:  "transcription",
			Status:    types.TaskStatusPending,
			Priority:  priority,
			CreatedAt: base.Add(age),
		}
	}
	if _, err := taskRepo.Create(ctx, nil, []*types.Task{
		mk("low-old", 4, 0),
		mk("high-new", 2, 30*time.Minute),
		mk("high-old", 2, 10*time.Minute),
	}); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}

	var order []string
	for i := 0; i < 3; i++ {
		task, err := taskRepo.ClaimNextPending(ctx, nil, "transcription")
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if task == nil {
			t.Fatalf("expected a task on claim %d", i)
		}
		order = append(order, task.TaskID)
	}
	want := fmt.Sprintf("%v", []string{"high-old", "high-new", "low-old"})
	if got := fmt.Sprintf("%v", order); got != want {
		t.Fatalf("claim order = %s, want %s", got, want)
	}
}

func TestExistsNonFailedRespectsLanguage(t *testing.T) {
	store := newTestStore(t, "exists_nonfailed")
	log := logger.NewNop()
	videos := NewVideoRepo(store.DB(), log)
	taskRepo := NewTaskRepo(store.DB(), log)
	ctx := context.Background()

	video := seedVideo(t, videos, "v-exists")
	en := "en"
	ja := "ja"

	if _, err := taskRepo.Create(ctx, nil, []*types.Task{
		{TaskID: uuid.NewString(), VideoID: video.VideoID, TaskType: "transcription", Status: types.TaskStatusCompleted, Priority: 2, Language: &en},
		{TaskID: "failed-ja", VideoID: video.VideoID, TaskType: "transcription", Status: types.TaskStatusFailed, Priority: 2, Language: &ja},
	}); err != nil {
		t.Fatalf("seed tasks: %v", err)
	}

	exists, err := taskRepo.ExistsNonFailed(ctx, nil, video.VideoID, "transcription", &en)
	if err != nil {
		t.Fatalf("ExistsNonFailed: %v", err)
	}
	if !exists {
		t.Fatalf("completed en transcription should block a duplicate")
	}

	exists, err = taskRepo.ExistsNonFailed(ctx, nil, video.VideoID, "transcription", &ja)
	if err != nil {
		t.Fatalf("ExistsNonFailed: %v", err)
	}
	if exists {
		t.Fatalf("failed ja transcription must not block a retry tuple")
	}

	exists, err = taskRepo.ExistsNonFailed(ctx, nil, video.VideoID, "transcription", nil)
	if err != nil {
		t.Fatalf("ExistsNonFailed: %v", err)
	}
	if exists {
		t.Fatalf("nil-language tuple is distinct from per-language rows")
	}
}

func TestResetForRetryClearsErrorAndTimestamps(t *testing.T) {
	store := newTestStore(t, "reset_retry")
	log := logger.NewNop()
	videos := NewVideoRepo(store.DB(), log)
	taskRepo := NewTaskRepo(store.DB(), log)
	ctx := context.Background()

	video := seedVideo(t, videos, "v-retry")
	if _, err := taskRepo.Create(ctx, nil, []*types.Task{
		{TaskID: "t-fail", VideoID: video.VideoID, TaskType: "ocr", Status: types.TaskStatusPending, Priority: 3},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	claimed, err := taskRepo.ClaimNextPending(ctx, nil, "ocr")
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v", err)
	}
	if err := taskRepo.MarkFailed(ctx, nil, "t-fail", "producer exploded"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if err := taskRepo.ResetForRetry(ctx, nil, "t-fail"); err != nil {
		t.Fatalf("ResetForRetry: %v", err)
	}
	task, err := taskRepo.GetByID(ctx, nil, "t-fail")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if task.Status != types.TaskStatusPending {
		t.Fatalf("status = %s, want pending", task.Status)
	}
	if task.Error != nil || task.StartedAt != nil || task.CompletedAt != nil {
		t.Fatalf("retry must clear error and timestamps: %+v", task)
	}
}
