package inference

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/mljobs"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/utils"
)

const (
	CapabilityGPU  = "gpu"
	CapabilityCPU  = "cpu"
	CapabilityAuto = "auto"
)

// Engine is the actual model runtime behind the worker. It honors the ML
// producer contract; the deterministic mock stands in where no models are
// installed.
type Engine = producer.Client

// Worker consumes the ml_jobs queue, filters by capability, gates GPU
// entry on a shared semaphore, and publishes results for the backend-side
// client blocked on the result key.
type Worker struct {
	log        *logger.Logger
	queue      *mljobs.Queue
	engine     Engine
	capability string
	gpuSem     *semaphore.Weighted
}

// NewWorker resolves capability (gpu|cpu|auto) and sizes the GPU
// semaphore from GPU_CONCURRENCY.
func NewWorker(baseLog *logger.Logger, queue *mljobs.Queue, engine Engine) *Worker {
	log := baseLog.With("component", "InferenceWorker")

	capability := strings.ToLower(utils.GetEnv("GPU_MODE", CapabilityAuto, baseLog))
	if capability == CapabilityAuto {
		if utils.GetEnvAsBool("GPU_AVAILABLE", false, baseLog) {
			capability = CapabilityGPU
		} else {
			capability = CapabilityCPU
		}
	}

	gpuConcurrency := utils.GetEnvAsInt("GPU_CONCURRENCY", 2, baseLog)
	if gpuConcurrency < 1 {
		gpuConcurrency = 1
	}

	log.Info("Inference worker configured", "capability", capability, "gpu_concurrency", gpuConcurrency)
	return &Worker{
		log:        log,
		queue:      queue,
		engine:     engine,
		capability: capability,
		gpuSem:     semaphore.NewWeighted(int64(gpuConcurrency)),
	}
}

// Run consumes jobs until ctx ends.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Inference worker exiting")
			return
		}

		job, err := w.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("Dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if job.NeedsGPU && w.capability == CapabilityCPU {
			// Not our job; hand it back for a GPU-capable peer.
			if err := w.queue.Requeue(ctx, job); err != nil {
				w.log.Error("Requeue failed", "job_id", job.JobID, "error", err)
			}
			time.Sleep(time.Second)
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *mljobs.Job) {
	result := &mljobs.JobResult{JobID: job.JobID}

	resp, err := w.run(ctx, job)
	if err != nil {
		result.Error = err.Error()
		result.Fatal = isFatal(err)
		w.log.Error("Job failed", "job_id", job.JobID, "fatal", result.Fatal, "error", err)
	} else {
		result.Response = resp
		w.log.Info("Job complete", "job_id", job.JobID, "run_id", resp.RunID)
	}

	if err := w.queue.Finish(ctx, result); err != nil {
		w.log.Error("Failed to publish result", "job_id", job.JobID, "error", err)
	}
}

func (w *Worker) run(ctx context.Context, job *mljobs.Job) (*producer.Response, error) {
	req := job.Request
	if req == nil {
		return nil, &fatalError{msg: "job carries no request"}
	}

	// Verify file drift before spending inference time on it.
	if req.InputHash != "" {
		if _, err := os.Stat(req.VideoPath); err == nil {
			ok, err := utils.VerifyInputHash(req.VideoPath, req.InputHash)
			if err != nil {
				return nil, &fatalError{msg: err.Error()}
			}
			if !ok {
				return nil, &fatalError{msg: fmt.Sprintf("input hash mismatch for %s", req.VideoPath)}
			}
		}
	}

	if job.NeedsGPU {
		if err := w.gpuSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer w.gpuSem.Release(1)
	}

	return w.engine.Process(ctx, req)
}

type fatalError struct{ msg string }

func (e *fatalError) Error() string { return e.msg }

func isFatal(err error) bool {
	_, ok := err.(*fatalError)
	return ok
}
