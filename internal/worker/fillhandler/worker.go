// Package fillhandler implements the fill-application worker: given an
// OrdersMatched event, apply the fill to both legs' quantity_remaining,
// record fills-history, and enqueue a hash-update for whichever leg
// didn't reach zero so its status gets re-evaluated.
package fillhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/errs"
)

// TaskPayload is the JSON envelope queue.Queue.EnqueueFillApplied carries
// on the wire, since fill application needs both the event and the
// fill amount reported by the match.
type TaskPayload struct {
	Event      domain.OrdersMatchedEvent `json:"event"`
	FillAmount string                    `json:"fill_amount"`
}

// Store is the subset of *store.Store this worker depends on.
type Store interface {
	InsertFill(ctx context.Context, f domain.FillRecord) (bool, error)
	ApplyFill(ctx context.Context, hash string, fillAmount *big.Int) error
	GetOrder(ctx context.Context, hash string) (*domain.Order, error)
}

// Enqueuer is the subset of *queue.Queue this worker depends on.
type Enqueuer interface {
	EnqueueHashUpdate(ctx context.Context, orderHash string) error
}

// Worker applies one fill to both sides of a match.
type Worker struct {
	store Store
	queue Enqueuer
}

// New constructs a fill-handler worker.
func New(store Store, q Enqueuer) *Worker {
	return &Worker{store: store, queue: q}
}

// ProcessTask implements asynq.Handler.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return errs.DataInvalid(fmt.Sprintf("fillhandler: malformed payload: %v", err))
	}
	amount, ok := new(big.Int).SetString(payload.FillAmount, 10)
	if !ok {
		return errs.DataInvalid(fmt.Sprintf("fillhandler: malformed fill amount %q", payload.FillAmount))
	}
	return w.Apply(ctx, payload.Event, amount)
}

// Apply records the fill and updates both legs' remaining quantity.
// A match event never double-applies a fill for the same
// (blockHash, txHash, logIndex).
func (w *Worker) Apply(ctx context.Context, matched domain.OrdersMatchedEvent, fillAmount *big.Int) error {
	inserted, err := w.store.InsertFill(ctx, domain.FillRecord{
		EventKey:   matched.EventKey,
		BuyHash:    matched.BuyHash,
		SellHash:   matched.SellHash,
		Maker:      matched.Maker,
		Taker:      matched.Taker,
		Price:      matched.Price,
		FillAmount: fillAmount,
	})
	if err != nil {
		return errs.Transient("fillhandler: insert fill", err)
	}
	if !inserted {
		// Already applied this exact event; re-delivery must be a no-op
		//.
		return nil
	}

	for _, hash := range []string{matched.BuyHash, matched.SellHash} {
		if err := w.store.ApplyFill(ctx, hash, fillAmount); err != nil {
			return errs.Transient(fmt.Sprintf("fillhandler: apply fill to %s", hash), err)
		}
		order, err := w.store.GetOrder(ctx, hash)
		if err != nil {
			return errs.Transient(fmt.Sprintf("fillhandler: reload %s after fill", hash), err)
		}
		if order != nil && !order.FillabilityStatus.IsTerminal() {
			if err := w.queue.EnqueueHashUpdate(ctx, hash); err != nil {
				return errs.Transient("fillhandler: enqueue hash update", err)
			}
		}
	}
	return nil
}
