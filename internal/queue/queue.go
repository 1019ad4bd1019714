// Package queue wraps asynq into a durable job-queue contract:
// deterministic per-trigger job IDs so re-enqueuing the same trigger
// while its job still exists is a no-op, exponential backoff with a
// bounded number of attempts, and a per-job timeout. Completed jobs are
// deleted as soon as they finish; failed jobs go to asynq's archive. No
// count-based retention limit is applied, and queues are weighted by
// priority rather than capped one by one.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/config"
)

// Task type names, one per worker kind named in
const (
	TaskHashUpdate    = "order:hash_update"
	TaskMakerUpdate   = "order:maker_update"
	TaskFillHandler   = "order:fill"
	TaskReorg         = "chain:reorg"

	queueCritical = "critical" // fills, reorg — correctness-affecting
	queueDefault  = "default"  // hash updates
	queueBulk     = "bulk"     // maker-wide rechecks, highest fan-out
)

// Queue enqueues jobs with deterministic IDs so the same logical
// trigger delivered twice collapses into one pending job: enqueuing
// the same job id twice results in exactly one execution.
type Queue struct {
	client *asynq.Client
	cfg    config.QueueConfig
}

// New builds a Queue against the given Redis address.
func New(cfg config.QueueConfig, redisAddr, redisPassword string, redisDB int) *Queue {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &Queue{client: client, cfg: cfg}
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueHashUpdate schedules a single-order recomputation.
// jobID is the order hash: hash-update jobs are naturally deduped per
// order, since only the latest state matters.
func (q *Queue) EnqueueHashUpdate(ctx context.Context, orderHash string) error {
	payload := []byte(orderHash)
	return q.enqueue(ctx, asynq.NewTask(TaskHashUpdate, payload), queueDefault, "hashupdate:"+orderHash)
}

// MakerUpdateTrigger names the bulk recheck the maker-update worker must
// perform.
type MakerUpdateTrigger struct {
	Variant  string // sell-balance | sell-approval | buy-balance | buy-approval
	Maker    string
	Contract string
	TokenID  string // empty for contract/FT-wide triggers
	Operator string // conduit/spender, when the variant needs one
}

// EnqueueMakerUpdate schedules a bulk per-maker recheck. The job ID is
// the trigger's natural key, so the same balance/approval change
// reported twice (e.g. replayed during backfill and again live) collapses
// to one job.
func (q *Queue) EnqueueMakerUpdate(ctx context.Context, t MakerUpdateTrigger) error {
	payload := []byte(fmt.Sprintf("%s|%s|%s|%s|%s", t.Variant, t.Maker, t.Contract, t.TokenID, t.Operator))
	jobID := fmt.Sprintf("makerupdate:%s:%s:%s:%s:%s", t.Variant, t.Maker, t.Contract, t.TokenID, t.Operator)
	return q.enqueue(ctx, asynq.NewTask(TaskMakerUpdate, payload), queueBulk, jobID)
}

// EnqueueFillApplied schedules the fill handler for one match. jobID
// keys on the event's own unique key, matching the general idempotence
// guarantee every event-keyed job relies on.
func (q *Queue) EnqueueFillApplied(ctx context.Context, blockHash, txHash string, logIndex int, payload []byte) error {
	jobID := fmt.Sprintf("fill:%s:%s:%d", blockHash, txHash, logIndex)
	return q.enqueue(ctx, asynq.NewTask(TaskFillHandler, payload), queueCritical, jobID)
}

// EnqueueReorg schedules reorg recovery for a displaced block hash
//. jobID keys on the block hash so repeated fix() signals
// for the same reorg collapse.
func (q *Queue) EnqueueReorg(ctx context.Context, blockHash string) error {
	jobID := "reorg:" + blockHash
	return q.enqueue(ctx, asynq.NewTask(TaskReorg, []byte(blockHash)), queueCritical, jobID)
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, queue, jobID string, extra ...asynq.Option) error {
	opts := append([]asynq.Option{
		asynq.Queue(queue),
		asynq.TaskID(jobID),
		asynq.Timeout(q.cfg.JobTimeout),
		asynq.MaxRetry(q.cfg.MaxAttempts - 1),
	}, extra...)
	_, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			// A task with this id still exists (pending, retrying, in
			// flight, or archived): the queue's dedup guarantee is
			// satisfied by doing nothing, not by erroring.
			return nil
		}
		return fmt.Errorf("queue: enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// RetryDelay implements asynq.RetryDelayFunc: exponential backoff seeded
// by the configured initial delay and multiplied by the factor per retry.
// The number of retries is capped per task in enqueue, so a job runs at
// most MaxAttempts times in all.
func RetryDelay(cfg config.QueueConfig) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		delay := cfg.InitialBackoff
		for i := 0; i < n; i++ {
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		}
		return delay
	}
}
