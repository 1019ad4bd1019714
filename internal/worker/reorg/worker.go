// Package reorg implements reorg recovery: when the event source
// reports a block hash as no longer canonical, delete every event row
// tagged with it and re-enqueue a hash-update for every order those
// events touched, so the projection re-derives itself from whatever
// events remain.
package reorg

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/errs"
)

// Store is the subset of *store.Store this worker depends on.
type Store interface {
	OrderHashesForBlockHash(ctx context.Context, blockHash string) ([]string, error)
	DeleteEventsForBlockHash(ctx context.Context, blockHash string) error
}

// Enqueuer is the subset of *queue.Queue this worker depends on.
type Enqueuer interface {
	EnqueueHashUpdate(ctx context.Context, orderHash string) error
}

// Worker reverses a displaced block's effect on the projection.
type Worker struct {
	store Store
	queue Enqueuer
}

// New constructs a reorg-recovery worker.
func New(store Store, q Enqueuer) *Worker {
	return &Worker{store: store, queue: q}
}

// ProcessTask implements asynq.Handler. The payload is the displaced
// block hash.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	blockHash := string(t.Payload())
	if blockHash == "" {
		return errs.DataInvalid("reorg: empty block hash payload")
	}
	return w.Recover(ctx, blockHash)
}

// Recover discovers every order an event tagged with blockHash touched,
// deletes those events (only the rows with that blockHash, never
// cross-block state), then re-enqueues a hash-update for each affected
// order so it re-derives from whatever events remain
// after the deletion.
func (w *Worker) Recover(ctx context.Context, blockHash string) error {
	hashes, err := w.store.OrderHashesForBlockHash(ctx, blockHash)
	if err != nil {
		return errs.Transient("reorg: discover affected orders", err)
	}

	if err := w.store.DeleteEventsForBlockHash(ctx, blockHash); err != nil {
		return errs.Transient("reorg: delete events for block hash", err)
	}

	for _, hash := range hashes {
		if err := w.queue.EnqueueHashUpdate(ctx, hash); err != nil {
			return errs.Transient("reorg: enqueue hash update", err)
		}
	}
	return nil
}
