package workers

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/profiles"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/services"
	"github.com/eioku/eioku-backend/internal/types"
)

const (
	// startupJitterMax staggers worker launch so pools don't poll the
	// store in lockstep.
	startupJitterMax = 5 * time.Second
	// idleSleep is the base wait between polls of an empty queue.
	idleSleep = 30 * time.Second
)

// Executor runs one claimed task to completion. Implementations must
// observe ctx at their suspension points; the pool arms ctx with the
// per-type timeout.
type Executor interface {
	Execute(ctx context.Context, task *types.Task) error
}

// Pool runs a fixed number of workers against the shared per-type queue.
// Each worker claims atomically, executes sequentially, and reports the
// outcome to the orchestrator.
type Pool struct {
	cfg      profiles.WorkerConfig
	log      *logger.Logger
	taskRepo repos.TaskRepo
	orch     *services.Orchestrator
	exec     Executor

	wg      sync.WaitGroup
	started bool
}

func NewPool(cfg profiles.WorkerConfig, baseLog *logger.Logger, taskRepo repos.TaskRepo, orch *services.Orchestrator, exec Executor) *Pool {
	return &Pool{
		cfg:      cfg,
		log:      baseLog.With("component", "WorkerPool", "task_type", string(cfg.TaskType)),
		taskRepo: taskRepo,
		orch:     orch,
		exec:     exec,
	}
}

func (p *Pool) Start(ctx context.Context) {
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		jitter := time.Duration(rand.Int63n(int64(startupJitterMax)))
		go p.workerLoop(ctx, i, jitter)
	}
	p.log.Info("Worker pool started", "worker_count", p.cfg.WorkerCount, "resource_type", p.cfg.ResourceType)
}

// Wait blocks until every worker has exited (after ctx cancellation).
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) timeout() time.Duration {
	seconds := p.cfg.TaskTimeoutSeconds
	if seconds <= 0 {
		seconds = profiles.DefaultTaskTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (p *Pool) workerLoop(ctx context.Context, workerIndex int, jitter time.Duration) {
	defer p.wg.Done()
	workerLog := p.log.With("worker", workerIndex)

	if !sleepCtx(ctx, jitter) {
		return
	}
	workerLog.Info("Worker loop started", "jitter", jitter.String())

	for {
		if ctx.Err() != nil {
			workerLog.Info("Worker loop exiting")
			return
		}

		task, err := p.taskRepo.ClaimNextPending(ctx, nil, string(p.cfg.TaskType))
		if err != nil {
			workerLog.Warn("Claim failed", "error", err)
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}
		if task == nil {
			wait := idleSleep + time.Duration(rand.Int63n(int64(startupJitterMax)))
			if !sleepCtx(ctx, wait) {
				return
			}
			continue
		}

		p.runTask(ctx, workerLog, task)
	}
}

// runTask executes one claimed task under the hard per-type deadline and
// records the outcome.
func (p *Pool) runTask(ctx context.Context, workerLog *logger.Logger, task *types.Task) {
	execCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	err := p.executeRecovered(execCtx, task)
	switch {
	case err == nil:
		if _, err := p.orch.HandleTaskCompletion(ctx, task); err != nil {
			workerLog.Error("Completion handling failed", "task_id", task.TaskID, "error", err)
		} else {
			workerLog.Info("Completed task", "task_id", task.TaskID, "video_id", task.VideoID)
		}

	case ctx.Err() != nil:
		// Pool shutdown or external cancellation, not a deadline.
		if err := p.taskRepo.MarkCancelled(context.Background(), nil, task.TaskID); err != nil {
			workerLog.Error("Failed to mark task cancelled", "task_id", task.TaskID, "error", err)
		} else {
			workerLog.Warn("Task cancelled", "task_id", task.TaskID)
		}

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, apperr.ErrTimeout):
		msg := fmt.Sprintf("task exceeded %s timeout", p.timeout())
		if err := p.orch.HandleTaskFailure(ctx, task, msg); err != nil {
			workerLog.Error("Failure handling failed", "task_id", task.TaskID, "error", err)
		}

	default:
		if err := p.orch.HandleTaskFailure(ctx, task, err.Error()); err != nil {
			workerLog.Error("Failure handling failed", "task_id", task.TaskID, "error", err)
		}
	}
}

// executeRecovered turns an executor panic into a failed task instead of
// a dead worker.
func (p *Pool) executeRecovered(ctx context.Context, task *types.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()
	return p.exec.Execute(ctx, task)
}

// sleepCtx sleeps unless the context ends first; reports whether the
// caller should keep running.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
