package mljobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/producer"
)

// Client makes the inference tier look like an in-process producer: it
// enqueues the job (duplicate enqueue from the orchestrator is a no-op)
// and blocks on the result key until the task timeout.
type Client struct {
	queue    *Queue
	needsGPU bool
	timeout  time.Duration
}

func NewClient(queue *Queue, needsGPU bool, timeout time.Duration) *Client {
	return &Client{queue: queue, needsGPU: needsGPU, timeout: timeout}
}

func (c *Client) Process(ctx context.Context, req *producer.Request) (*producer.Response, error) {
	job := &Job{JobID: JobID(req.TaskID), Request: req, NeedsGPU: c.needsGPU}
	if _, err := c.queue.Enqueue(ctx, job); err != nil {
		return nil, apperr.Transient(err)
	}

	result, err := c.queue.WaitResult(ctx, job.JobID, c.timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Transient(err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: no result for job %s within %s", apperr.ErrTimeout, job.JobID, c.timeout)
	}
	if result.Error != "" {
		if result.Fatal {
			return nil, apperr.Fatal(errors.New(result.Error))
		}
		return nil, apperr.Transient(errors.New(result.Error))
	}
	return result.Response, nil
}
