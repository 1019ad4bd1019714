// Package makerupdate implements the bulk per-maker recomputation
// worker: given a trigger — a maker's balance or approval change for
// one contract/token — recheck every affected order in a single SQL
// statement and fan out a hash-update job per order actually touched.
package makerupdate

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/errs"
	"github.com/nftindexer/indexer/internal/queue"
)

// Store is the subset of *store.Store this worker depends on.
type Store interface {
	RecheckSellBalance(ctx context.Context, maker, contract string, tokenID *big.Int, balance *big.Int) ([]string, error)
	RecheckSellApproval(ctx context.Context, maker, contract, operator string, approved bool) ([]string, error)
	RecheckBuyBalance(ctx context.Context, maker, contract string, balance *big.Int) ([]string, error)
	RecheckBuyApproval(ctx context.Context, maker, contract, operator string, allowance *big.Int) ([]string, error)
	ConduitsForMakerKind(ctx context.Context, maker string, kind domain.OrderKind) ([]string, error)
	NFTBalance(ctx context.Context, owner, contract string, tokenID *big.Int) (*big.Int, error)
	NFTApproval(ctx context.Context, owner, operator, contract string) (bool, error)
	FTBalance(ctx context.Context, owner, contract string) (*big.Int, error)
	FTAllowance(ctx context.Context, owner, spender, contract string) (*big.Int, error)
}

// Enqueuer is the subset of *queue.Queue this worker depends on.
type Enqueuer interface {
	EnqueueHashUpdate(ctx context.Context, orderHash string) error
}

// Worker recomputes every order of a maker affected by one trigger.
type Worker struct {
	store Store
	queue Enqueuer
}

// New constructs a maker-update worker.
func New(store Store, q Enqueuer) *Worker {
	return &Worker{store: store, queue: q}
}

// ProcessTask implements asynq.Handler, parsing the pipe-delimited
// payload queue.Queue.EnqueueMakerUpdate produces. The payload carries
// only the trigger's identity, never the value to recheck against, so
// the current balance/allowance/approval is always read fresh from the
// projection tables before the bulk recheck runs.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	parts := strings.Split(string(t.Payload()), "|")
	if len(parts) != 5 {
		return errs.DataInvalid(fmt.Sprintf("makerupdate: malformed payload %q", string(t.Payload())))
	}
	trigger := queue.MakerUpdateTrigger{
		Variant:  parts[0],
		Maker:    parts[1],
		Contract: parts[2],
		TokenID:  parts[3],
		Operator: parts[4],
	}

	value, err := w.observedValue(ctx, trigger)
	if err != nil {
		return err
	}
	return w.Process(ctx, trigger, value)
}

// observedValue reads the current projection state the trigger's variant
// needs to recheck against. sell-approval has no natural numeric value,
// so it is encoded as 1/0 the same way Process's approved-bool branch
// expects.
func (w *Worker) observedValue(ctx context.Context, t queue.MakerUpdateTrigger) (*big.Int, error) {
	switch t.Variant {
	case "sell-balance":
		tokenID, ok := new(big.Int).SetString(t.TokenID, 10)
		if !ok {
			return nil, errs.DataInvalid("makerupdate: sell-balance trigger missing token id")
		}
		balance, err := w.store.NFTBalance(ctx, t.Maker, t.Contract, tokenID)
		if err != nil {
			return nil, errs.Transient("makerupdate: read nft balance", err)
		}
		return balance, nil
	case "sell-approval":
		approved, err := w.store.NFTApproval(ctx, t.Maker, t.Operator, t.Contract)
		if err != nil {
			return nil, errs.Transient("makerupdate: read nft approval", err)
		}
		if approved {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	case "buy-balance":
		balance, err := w.store.FTBalance(ctx, t.Maker, t.Contract)
		if err != nil {
			return nil, errs.Transient("makerupdate: read ft balance", err)
		}
		return balance, nil
	case "buy-approval":
		allowance, err := w.store.FTAllowance(ctx, t.Maker, t.Operator, t.Contract)
		if err != nil {
			return nil, errs.Transient("makerupdate: read ft allowance", err)
		}
		return allowance, nil
	default:
		return nil, errs.Programmer(fmt.Sprintf("makerupdate: unknown trigger variant %q", t.Variant))
	}
}

// Process applies one trigger and enqueues a hash-update for every order
// the bulk recheck actually touched. value carries the observed state to
// recheck against (for sell-approval, any positive value means approved);
// ProcessTask reads it from the projection tables.
func (w *Worker) Process(ctx context.Context, t queue.MakerUpdateTrigger, value *big.Int) error {
	var (
		hashes []string
		err    error
	)

	switch t.Variant {
	case "sell-balance":
		tokenID, ok := new(big.Int).SetString(t.TokenID, 10)
		if !ok {
			return errs.DataInvalid("makerupdate: sell-balance trigger missing token id")
		}
		hashes, err = w.store.RecheckSellBalance(ctx, t.Maker, t.Contract, tokenID, value)
	case "sell-approval":
		approved := value != nil && value.Sign() > 0
		hashes, err = w.store.RecheckSellApproval(ctx, t.Maker, t.Contract, t.Operator, approved)
	case "buy-balance":
		hashes, err = w.store.RecheckBuyBalance(ctx, t.Maker, t.Contract, value)
	case "buy-approval":
		hashes, err = w.store.RecheckBuyApproval(ctx, t.Maker, t.Contract, t.Operator, value)
	default:
		return errs.Programmer(fmt.Sprintf("makerupdate: unknown trigger variant %q", t.Variant))
	}
	if err != nil {
		return errs.Transient("makerupdate: recheck", err)
	}

	for _, hash := range hashes {
		if err := w.queue.EnqueueHashUpdate(ctx, hash); err != nil {
			return errs.Transient("makerupdate: enqueue hash update", err)
		}
	}
	return nil
}

// ProcessBuyApprovalForKind fans a buy-approval recheck out across every
// conduit the maker has used for orders of kind, for a trigger that names
// an order kind rather than a single conduit. Nothing in the ingest or
// queue path calls it: an ERC20 Transfer enqueues only buy-balance
// rechecks, and no buy-approval job keyed by order kind is produced.
func (w *Worker) ProcessBuyApprovalForKind(ctx context.Context, maker, contract string, kind domain.OrderKind, allowance *big.Int) error {
	conduits, err := w.store.ConduitsForMakerKind(ctx, maker, kind)
	if err != nil {
		return errs.Transient("makerupdate: list conduits", err)
	}
	for _, conduit := range conduits {
		if err := w.Process(ctx, queue.MakerUpdateTrigger{
			Variant:  "buy-approval",
			Maker:    maker,
			Contract: contract,
			Operator: conduit,
		}, allowance); err != nil {
			return err
		}
	}
	return nil
}
