package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Consumer runs a single worker goroutine against one queue. Worker
// concurrency beyond one consumer per queue is a deployment concern.
type Consumer struct {
	queue   *Queue
	handler Handler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewConsumer(q *Queue, handler Handler) *Consumer {
	return &Consumer{
		queue:   q,
		handler: handler,
	}
}

// Start launches the consumer loop. It is a no-op when already running.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.queue.logger.WithField("queue", c.queue.name).Info("Queue consumer started")

	if err := c.requeueOrphans(ctx); err != nil {
		c.queue.logger.WithError(err).WithField("queue", c.queue.name).Error("Orphan recovery failed")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.queue.logger.WithField("queue", c.queue.name).Info("Queue consumer shutting down")
				return
			default:
				if processed, err := c.RunOnce(ctx); err != nil {
					c.queue.logger.WithError(err).WithField("queue", c.queue.name).Error("Queue poll failed")
					time.Sleep(time.Second)
				} else if !processed {
					time.Sleep(c.queue.cfg.PollInterval)
				}
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight job to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

// RunOnce promotes due delayed jobs and processes at most one ready
// job. It reports whether a job was processed. The claim moves the
// job atomically onto the processing list; it is removed from there
// only after its outcome has been written back, so a crash between
// claim and acknowledgement leaves the job recoverable.
func (c *Consumer) RunOnce(ctx context.Context) (bool, error) {
	if err := c.promoteDue(ctx); err != nil {
		return false, err
	}

	data, err := c.queue.rdb.RPopLPush(ctx, c.queue.readyKey(), c.queue.processingKey()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		// Undecodable envelope: retain for inspection, nothing to retry.
		c.queue.rdb.LPush(ctx, c.queue.failedKey(), data)
		c.ack(ctx, data)
		c.queue.logger.WithError(err).WithField("queue", c.queue.name).Error("Discarding undecodable job")
		return true, nil
	}

	c.execute(ctx, &job, data)
	return true, nil
}

// ack removes a claimed job's copy from the processing list.
func (c *Consumer) ack(ctx context.Context, data string) {
	if err := c.queue.rdb.LRem(ctx, c.queue.processingKey(), 1, data).Err(); err != nil {
		c.queue.logger.WithError(err).WithField("queue", c.queue.name).Error("Failed to acknowledge job")
	}
}

// requeueOrphans returns processing entries abandoned by a previous
// run to the ready list. Safe with a single consumer per queue: at
// start nothing else holds claims, so everything in the list is an
// orphan.
func (c *Consumer) requeueOrphans(ctx context.Context) error {
	var moved int
	for {
		_, err := c.queue.rdb.RPopLPush(ctx, c.queue.processingKey(), c.queue.readyKey()).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to requeue orphaned job: %w", err)
		}
		moved++
	}
	if moved > 0 {
		c.queue.logger.WithFields(logrus.Fields{
			"queue": c.queue.name,
			"count": moved,
		}).Warn("Requeued orphaned jobs from previous run")
	}
	return nil
}

func (c *Consumer) execute(ctx context.Context, job *Job, data string) {
	log := c.queue.logger.WithFields(logrus.Fields{
		"queue":   c.queue.name,
		"job_id":  job.ID,
		"attempt": job.Attempts + 1,
	})

	err := c.handler(ctx, job)
	job.Attempts++

	// The outcome is written durably before the processing copy is
	// acknowledged, so a crash in between re-runs the job rather than
	// losing it.
	if err == nil {
		c.ack(ctx, data)
		log.Info("Job completed")
		return
	}

	if job.Attempts >= job.MaxAttempts {
		log.WithError(err).Error("Job failed permanently, retaining in failed list")
		sentry.CaptureException(fmt.Errorf("queue %s job %s failed after %d attempts: %w",
			c.queue.name, job.ID, job.Attempts, err))
		if retained, merr := json.Marshal(job); merr == nil {
			c.queue.rdb.LPush(ctx, c.queue.failedKey(), retained)
		}
		c.ack(ctx, data)
		return
	}

	backoff := c.queue.cfg.Backoff * time.Duration(1<<(job.Attempts-1))
	log.WithError(err).WithField("backoff", backoff.String()).Warn("Job failed, scheduling retry")
	if perr := c.queue.push(ctx, job, backoff); perr != nil {
		log.WithError(perr).Error("Failed to reschedule job")
		return
	}
	c.ack(ctx, data)
}

// promoteDue moves delayed jobs whose ready-at has passed onto the
// ready list. The consumer is the only mover, so the read-then-remove
// pair does not race.
func (c *Consumer) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(c.queue.clock().UnixMilli(), 10)
	due, err := c.queue.rdb.ZRangeByScore(ctx, c.queue.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed jobs: %w", err)
	}

	for _, member := range due {
		if err := c.queue.rdb.ZRem(ctx, c.queue.delayedKey(), member).Err(); err != nil {
			return err
		}
		if err := c.queue.rdb.LPush(ctx, c.queue.readyKey(), member).Err(); err != nil {
			return err
		}
	}
	return nil
}
