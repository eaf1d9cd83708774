package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kreeda/resumatch/internal/domain"
	"github.com/kreeda/resumatch/internal/observability"
)

// Handler processes one decoded job payload. Returning a *domain.FatalJobError
// (or any error when ShouldRetry says no) sends the job straight to the DLQ;
// any other error is retried per retryConfig until attempts are exhausted.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Consumer runs a fixed-size worker pool against one named Redis queue,
// reliably popping with BRPOPLPUSH into a processing list, acking (LREM)
// on success, and requeuing or DLQ'ing on failure.
type Consumer struct {
	name        string
	rdb         *redis.Client
	concurrency int
	popTimeout  time.Duration
	retryConfig domain.RetryConfig
	handler     Handler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewConsumer builds a Consumer for queue name, with concurrency parallel
// workers each blocking up to popTimeout per BRPOPLPUSH call.
func NewConsumer(name string, rdb *redis.Client, concurrency int, popTimeout time.Duration, retryConfig domain.RetryConfig, handler Handler) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	return &Consumer{
		name:        name,
		rdb:         rdb,
		concurrency: concurrency,
		popTimeout:  popTimeout,
		retryConfig: retryConfig,
		handler:     handler,
	}
}

// Start launches the worker pool. It returns immediately; call Close (or
// cancel the parent context) to drain and stop.
func (c *Consumer) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for i := 0; i < c.concurrency; i++ {
		c.wg.Add(1)
		go c.runWorker(runCtx, i)
	}
	slog.Default().Info("queue consumer started", slog.String("queue", c.name), slog.Int("concurrency", c.concurrency))
}

// Close stops accepting new work and blocks until every in-flight worker
// finishes its current job.
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	slog.Default().Info("queue consumer stopped", slog.String("queue", c.name))
	return nil
}

func (c *Consumer) runWorker(ctx context.Context, workerID int) {
	defer c.wg.Done()
	log := slog.Default().With(slog.String("queue", c.name), slog.Int("worker", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := c.rdb.BRPopLPush(ctx, listKey(c.name), processingKey(c.name), c.popTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue // timed out with nothing queued; loop and recheck ctx
			}
			log.Warn("BRPOPLPUSH failed", slog.Any("error", err))
			time.Sleep(time.Second)
			continue
		}

		c.process(ctx, log, raw)
	}
}

func (c *Consumer) process(ctx context.Context, log *slog.Logger, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Error("dropping unparseable queue entry", slog.Any("error", err))
		c.ack(ctx, raw)
		return
	}

	// Scope a per-job logger (and the job id for correlation) into the
	// context so trackers and deeper layers log with the job attached.
	jobLog := log.With(slog.String("job_id", env.ID))
	jobCtx := observability.ContextWithLogger(ctx, jobLog)
	jobCtx = observability.ContextWithRequestID(jobCtx, env.ID)

	observability.StartProcessingJob(c.name)
	handlerErr := c.handler(jobCtx, env.Payload)
	if handlerErr == nil {
		observability.CompleteJob(c.name)
		c.ack(ctx, raw)
		return
	}

	env.Retry.UpdateRetryAttempt(handlerErr)

	var fatal *domain.FatalJobError
	isFatal := errors.As(handlerErr, &fatal)

	if !isFatal && env.Retry.ShouldRetry(handlerErr, c.retryConfig) {
		env.Retry.MarkAsRetrying()
		delay := env.Retry.CalculateNextRetryDelay(c.retryConfig)
		log.Warn("job failed, requeuing", slog.String("job_id", env.ID), slog.Any("error", handlerErr), slog.Duration("delay", delay))
		observability.FailJob(c.name, "retried")
		c.ack(ctx, raw)
		c.requeueAfter(ctx, env, delay)
		return
	}

	observability.FailJob(c.name, "dlq")
	env.Retry.MarkAsExhausted()
	log.Error("job exhausted retries, moving to DLQ", slog.String("job_id", env.ID), slog.Any("error", handlerErr))
	c.ack(ctx, raw)
	c.moveToDLQ(ctx, env, handlerErr)
}

// ack removes the just-processed raw entry from the processing list; exactly
// the first matching occurrence is removed (count=1) since the payload may
// legitimately repeat across in-flight jobs.
func (c *Consumer) ack(ctx context.Context, raw string) {
	if err := c.rdb.LRem(ctx, processingKey(c.name), 1, raw).Err(); err != nil {
		slog.Default().Warn("failed to ack processing entry", slog.String("queue", c.name), slog.Any("error", err))
	}
}

func (c *Consumer) requeueAfter(ctx context.Context, env envelope, delay time.Duration) {
	raw, err := json.Marshal(env)
	if err != nil {
		slog.Default().Error("failed to encode envelope for requeue", slog.Any("error", err))
		return
	}
	if delay <= 0 {
		if err := c.rdb.LPush(ctx, listKey(c.name), raw).Err(); err != nil {
			slog.Default().Error("failed to requeue job", slog.Any("error", err))
		}
		return
	}
	go func() {
		time.Sleep(delay)
		if err := c.rdb.LPush(context.Background(), listKey(c.name), raw).Err(); err != nil {
			slog.Default().Error("failed to requeue delayed job", slog.Any("error", err))
		}
	}()
}

func (c *Consumer) moveToDLQ(ctx context.Context, env envelope, cause error) {
	env.Retry.MarkAsDLQ()
	dlqJob := domain.DLQJob{
		JobID:            env.ID,
		Queue:            c.name,
		OriginalPayload:  env.Payload,
		RetryInfo:        env.Retry,
		FailureReason:    cause.Error(),
		MovedToDLQAt:     time.Now(),
		CanBeReprocessed: true,
	}
	raw, err := json.Marshal(dlqJob)
	if err != nil {
		slog.Default().Error("failed to encode DLQ job", slog.Any("error", err))
		return
	}
	score := float64(dlqJob.MovedToDLQAt.Unix())
	if err := c.rdb.ZAdd(ctx, dlqKey(c.name), redis.Z{Score: score, Member: raw}).Err(); err != nil {
		slog.Default().Error("failed to write DLQ entry", slog.String("queue", c.name), slog.Any("error", err))
	}
}

// QueueDepths returns the current work-queue, in-flight, and DLQ length for
// one queue name.
func QueueDepths(ctx context.Context, rdb *redis.Client, name string) (queued, processing, dlq int64, err error) {
	queued, err = rdb.LLen(ctx, listKey(name)).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=queue.QueueDepths: LLEN %s: %w", name, err)
	}
	processing, err = rdb.LLen(ctx, processingKey(name)).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=queue.QueueDepths: LLEN %s processing: %w", name, err)
	}
	dlq, err = rdb.ZCard(ctx, dlqKey(name)).Result()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("op=queue.QueueDepths: ZCARD %s dlq: %w", name, err)
	}
	return queued, processing, dlq, nil
}

// LogQueueCounts logs one line per named queue with its current depth,
// in-flight count, and DLQ size — called once at worker startup.
func LogQueueCounts(ctx context.Context, rdb *redis.Client, names []string) {
	for _, name := range names {
		queued, processing, dlq, err := QueueDepths(ctx, rdb, name)
		if err != nil {
			slog.Default().Warn("failed to read queue depth", slog.String("queue", name), slog.Any("error", err))
			continue
		}
		slog.Default().Info("queue depth",
			slog.String("queue", name),
			slog.Int64("queued", queued),
			slog.Int64("processing", processing),
			slog.Int64("dlq", dlq))
	}
}
