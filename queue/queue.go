package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Job is the envelope every queued payload travels in. Attempts counts
// executions so the consumer can apply the retry policy without any
// external bookkeeping.
type Job struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// Handler processes one job. A returned error triggers the queue's
// retry policy; nil acknowledges the job.
type Handler func(ctx context.Context, job *Job) error

// Enqueuer is the producer side of a queue. Handlers that schedule
// follow-up jobs depend on this rather than the concrete queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload interface{}, opts ...Option) error
}

// Option configures a single enqueue.
type Option func(*EnqueueOptions)

// EnqueueOptions is the resolved option set for one enqueue.
type EnqueueOptions struct {
	Delay time.Duration
}

// Apply folds opts into o.
func (o *EnqueueOptions) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithDelay schedules the job to become ready after d.
func WithDelay(d time.Duration) Option {
	return func(o *EnqueueOptions) {
		if d > 0 {
			o.Delay = d
		}
	}
}

// Config tunes a queue's retry policy and consumer cadence.
type Config struct {
	MaxAttempts  int           // executions per job, retries included
	Backoff      time.Duration // first retry delay, doubled per attempt
	PollInterval time.Duration
}

// DefaultConfig mirrors the delivery pipeline's policy: 3 attempts,
// exponential backoff starting at 1s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		Backoff:      time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Queue is a durable Redis-backed job queue. Ready jobs live in a
// list, delayed jobs in a sorted set scored by ready-at time, and
// permanently failed jobs are retained in a failed list for operator
// inspection rather than purged. A claimed job sits in a processing
// list until acknowledged, so a consumer crash mid-handler leaves a
// recoverable copy in Redis.
type Queue struct {
	name   string
	rdb    *redis.Client
	logger *logrus.Logger
	cfg    Config

	clock func() time.Time
}

func New(rdb *redis.Client, name string, logger *logrus.Logger, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Queue{
		name:   name,
		rdb:    rdb,
		logger: logger,
		cfg:    cfg,
		clock:  time.Now,
	}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) readyKey() string      { return "sendloop:queue:" + q.name + ":ready" }
func (q *Queue) delayedKey() string    { return "sendloop:queue:" + q.name + ":delayed" }
func (q *Queue) processingKey() string { return "sendloop:queue:" + q.name + ":processing" }
func (q *Queue) failedKey() string     { return "sendloop:queue:" + q.name + ":failed" }

// Enqueue adds a job carrying payload, optionally delayed.
func (q *Queue) Enqueue(ctx context.Context, payload interface{}, opts ...Option) error {
	var o EnqueueOptions
	o.Apply(opts...)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.New().String(),
		Queue:       q.name,
		Payload:     raw,
		MaxAttempts: q.cfg.MaxAttempts,
		EnqueuedAt:  q.clock(),
	}
	return q.push(ctx, &job, o.Delay)
}

func (q *Queue) push(ctx context.Context, job *Job, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if delay > 0 {
		readyAt := float64(q.clock().Add(delay).UnixMilli())
		if err := q.rdb.ZAdd(ctx, q.delayedKey(), &redis.Z{Score: readyAt, Member: data}).Err(); err != nil {
			return fmt.Errorf("failed to schedule delayed job: %w", err)
		}
	} else {
		if err := q.rdb.LPush(ctx, q.readyKey(), data).Err(); err != nil {
			return fmt.Errorf("failed to enqueue job: %w", err)
		}
	}

	q.logger.WithFields(logrus.Fields{
		"queue":  q.name,
		"job_id": job.ID,
		"delay":  delay.String(),
	}).Debug("Job enqueued")
	return nil
}

// FailedCount reports how many jobs are retained in the failed list.
func (q *Queue) FailedCount(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.failedKey()).Result()
}
