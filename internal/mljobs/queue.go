package mljobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/utils"
)

const (
	// QueueKey is the single named queue the inference tier consumes.
	QueueKey = "ml_jobs"
	// idSetKey tracks enqueued job ids so duplicate enqueues are no-ops
	// and the reconciler can probe for queue data loss.
	idSetKey = "ml_jobs:ids"
	// payloadHashKey maps job id to the serialized job payload.
	payloadHashKey = "ml_jobs:payloads"
	// resultKeyPrefix is where a worker pushes the finished response.
	resultKeyPrefix = "ml_results:"

	resultTTL = 30 * time.Minute
)

// JobID derives the deterministic queue identifier for a task.
func JobID(taskID string) string { return "ml_" + taskID }

func ResultKey(jobID string) string { return resultKeyPrefix + jobID }

// Job is the queue payload consumed by inference workers.
type Job struct {
	JobID   string            `json:"job_id"`
	Request *producer.Request `json:"request"`
	// NeedsGPU routes the job to GPU-capable workers.
	NeedsGPU bool `json:"needs_gpu"`
}

// JobResult is what a worker pushes onto the result key.
type JobResult struct {
	JobID    string             `json:"job_id"`
	Response *producer.Response `json:"response,omitempty"`
	Error    string             `json:"error,omitempty"`
	// Fatal marks errors that must not be retried (hash mismatch,
	// corrupt input, model load failure).
	Fatal bool `json:"fatal,omitempty"`
}

// Queue is the Redis-backed job channel between the orchestrator side and
// the inference tier. The durable task store stays the source of truth;
// this queue is a cache that the reconciler can rebuild.
type Queue struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewQueue(logg *logger.Logger) (*Queue, error) {
	host := utils.GetEnv("REDIS_HOST", "localhost", logg)
	port := utils.GetEnv("REDIS_PORT", "6379", logg)
	dbNum := utils.GetEnvAsInt("REDIS_DB", 0, logg)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        host + ":" + port,
		DB:          dbNum,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Queue{rdb: rdb, log: logg.With("component", "MLJobQueue")}, nil
}

// NewQueueWithClient wires an existing client. Used in tests.
func NewQueueWithClient(rdb *goredis.Client, logg *logger.Logger) *Queue {
	return &Queue{rdb: rdb, log: logg.With("component", "MLJobQueue")}
}

func (q *Queue) Close() error { return q.rdb.Close() }

// Enqueue adds a job under its deterministic id. Returns false when the
// job was already queued (duplicate enqueue is a no-op).
func (q *Queue) Enqueue(ctx context.Context, job *Job) (bool, error) {
	if job.JobID == "" {
		return false, errors.New("job id required")
	}
	added, err := q.rdb.SAdd(ctx, idSetKey, job.JobID).Result()
	if err != nil {
		return false, err
	}
	if added == 0 {
		q.log.Debug("Job already queued, skipping duplicate enqueue", "job_id", job.JobID)
		return false, nil
	}

	raw, err := json.Marshal(job)
	if err != nil {
		_ = q.rdb.SRem(ctx, idSetKey, job.JobID).Err()
		return false, err
	}
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, payloadHashKey, job.JobID, raw)
	pipe.LPush(ctx, QueueKey, job.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		_ = q.rdb.SRem(ctx, idSetKey, job.JobID).Err()
		return false, err
	}
	q.log.Info("Enqueued ML job", "job_id", job.JobID, "task_type", job.Request.TaskType)
	return true, nil
}

// Exists reports whether a job is still tracked by the queue (queued or
// in flight on a worker).
func (q *Queue) Exists(ctx context.Context, jobID string) (bool, error) {
	return q.rdb.SIsMember(ctx, idSetKey, jobID).Result()
}

// Dequeue blocks up to timeout for the next job id and resolves its
// payload. Returns nil when the wait timed out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	vals, err := q.rdb.BRPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	jobID := vals[1]

	raw, err := q.rdb.HGet(ctx, payloadHashKey, jobID).Result()
	if errors.Is(err, goredis.Nil) {
		// Payload lost; drop the orphaned id so the reconciler re-enqueues.
		_ = q.rdb.SRem(ctx, idSetKey, jobID).Err()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Requeue returns a job the worker cannot serve (capability mismatch) to
// the tail of the queue.
func (q *Queue) Requeue(ctx context.Context, job *Job) error {
	return q.rdb.LPush(ctx, QueueKey, job.JobID).Err()
}

// Finish publishes the result and clears the job's queue tracking.
func (q *Queue) Finish(ctx context.Context, result *JobResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	key := ResultKey(result.JobID)
	pipe := q.rdb.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.Expire(ctx, key, resultTTL)
	pipe.HDel(ctx, payloadHashKey, result.JobID)
	pipe.SRem(ctx, idSetKey, result.JobID)
	_, err = pipe.Exec(ctx)
	return err
}

// WaitResult blocks until the job's result arrives or the context's
// deadline fires.
func (q *Queue) WaitResult(ctx context.Context, jobID string, timeout time.Duration) (*JobResult, error) {
	vals, err := q.rdb.BLPop(ctx, timeout, ResultKey(jobID)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result JobResult
	if err := json.Unmarshal([]byte(vals[1]), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
