// Package queue moves receipt deliveries off the callback path. Jobs are
// JSON documents in a Redis list; workers pop them and hand them to a Sender.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"spark/pkg/config"
	"spark/pkg/payment/types"
	"spark/pkg/redis"
)

// JobStatus is the lifecycle of a receipt job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// ReceiptJob is one queued receipt delivery
type ReceiptJob struct {
	ID        string        `json:"id"`
	Receipt   types.Receipt `json:"receipt"`
	Attempts  int           `json:"attempts"`
	CreatedAt time.Time     `json:"created_at"`
}

// Options configures a QueueService
type Options struct {
	Prefix    string
	Timeout   time.Duration // how long job status keys live
	RateLimit int           // pushes per second
	RateBurst int
}

// QueueService is the Redis backed receipt queue
type QueueService struct {
	client      *redis.RedisClient
	prefix      string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

var _ types.Notifier = (*QueueService)(nil)

// NewQueueService creates a queue over client
func NewQueueService(client *redis.RedisClient, opts Options) *QueueService {
	if opts.Prefix == "" {
		opts.Prefix = "spark:queue"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 24 * time.Hour
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = opts.RateLimit
	}

	return &QueueService{
		client:      client,
		prefix:      opts.Prefix,
		timeout:     opts.Timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		metrics:     NewQueueMetrics(),
	}
}

// NewQueueServiceFromConfig creates a queue on the queue Redis instance
func NewQueueServiceFromConfig() *QueueService {
	return NewQueueService(redis.GetRedis(redis.QueueDB), Options{
		Prefix:    config.GetString("redis.queue_prefix", "spark:queue"),
		Timeout:   time.Duration(config.GetInt("redis.queue_timeout", 86400)) * time.Second,
		RateLimit: config.GetInt("queue.rate_limit", 50),
		RateBurst: config.GetInt("queue.rate_burst", 100),
	})
}

// Metrics returns the queue counters
func (q *QueueService) Metrics() *QueueMetrics {
	return q.metrics
}

func (q *QueueService) jobsKey() string {
	return q.prefix + ":receipts"
}

func (q *QueueService) statusKey(id string) string {
	return fmt.Sprintf("%s:status:%s", q.prefix, id)
}

// NotifyReceipt queues a receipt for delivery
func (q *QueueService) NotifyReceipt(ctx context.Context, r *types.Receipt) error {
	return q.Push(ctx, &ReceiptJob{
		ID:        uuid.NewString(),
		Receipt:   *r,
		CreatedAt: time.Now(),
	})
}

// Push appends a job and marks it pending
func (q *QueueService) Push(ctx context.Context, job *ReceiptJob) error {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	data, err := json.Marshal(job)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Client.TxPipeline()
	pipe.LPush(ctx, q.jobsKey(), data)
	pipe.Set(ctx, q.statusKey(job.ID), string(JobPending), q.timeout)
	if _, err := pipe.Exec(ctx); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("failed to push job: %w", err)
	}

	q.metrics.RecordSuccess(OpPush)
	return nil
}

// Pop waits up to wait for a job. It returns nil, nil when none arrived.
func (q *QueueService) Pop(ctx context.Context, wait time.Duration) (*ReceiptJob, error) {
	result, err := q.client.Client.BRPop(ctx, wait, q.jobsKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("invalid result from queue")
	}

	var job ReceiptJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// UpdateStatus records the status of a job
func (q *QueueService) UpdateStatus(ctx context.Context, id string, status JobStatus) error {
	if err := q.client.Client.Set(ctx, q.statusKey(id), string(status), q.timeout).Err(); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// GetStatus returns the status of a job, or "" when it is unknown or expired
func (q *QueueService) GetStatus(ctx context.Context, id string) (JobStatus, error) {
	status, err := q.client.Client.Get(ctx, q.statusKey(id)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return JobStatus(status), nil
}

// Length returns the number of waiting jobs
func (q *QueueService) Length(ctx context.Context) (int64, error) {
	return q.client.Client.LLen(ctx, q.jobsKey()).Result()
}

// Ping checks the queue connection
func (q *QueueService) Ping(_ context.Context) error {
	return q.client.Ping()
}
