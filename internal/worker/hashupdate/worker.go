// Package hashupdate implements the single-order recomputation worker:
// given an order hash, re-derive fillability and approval from scratch
// by reading the order's current token set and balances, then writing
// the result through the idempotent store update.
package hashupdate

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/errs"
)

// Store is the subset of *store.Store this worker depends on.
type Store interface {
	GetOrder(ctx context.Context, hash string) (*domain.Order, error)
	GetTokenSet(ctx context.Context, id string) (*domain.TokenSet, error)
	NFTBalance(ctx context.Context, owner, contract string, tokenID *big.Int) (*big.Int, error)
	FTBalance(ctx context.Context, owner, contract string) (*big.Int, error)
	NFTApproval(ctx context.Context, owner, operator, contract string) (bool, error)
	FTAllowance(ctx context.Context, owner, spender, contract string) (*big.Int, error)
	SetDerivedFields(ctx context.Context, hash string, fillability domain.FillabilityStatus, approval domain.ApprovalStatus, value *big.Int, expiration time.Time) error
	IsOrderCancelled(ctx context.Context, hash string) (bool, error)
	MarkCancelled(ctx context.Context, hash string) error
}

// Worker recomputes the fillability and approval status of one order.
type Worker struct {
	store Store
}

// New constructs a hash-update worker.
func New(store Store) *Worker {
	return &Worker{store: store}
}

// ProcessTask implements asynq.Handler.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	hash := string(t.Payload())
	if hash == "" {
		return errs.DataInvalid("hashupdate: empty order hash payload")
	}
	return w.Recompute(ctx, hash)
}

// Recompute re-derives and writes the fillability/approval status of a
// single order. It is exported directly so tests can invoke it without a
// task envelope.
func (w *Worker) Recompute(ctx context.Context, hash string) error {
	order, err := w.store.GetOrder(ctx, hash)
	if err != nil {
		return errs.Transient("hashupdate: load order", err)
	}
	if order == nil {
		// Order was never saved (e.g. hash-update raced an as-yet-unsaved
		// intake), nothing to do.
		return nil
	}
	if order.FillabilityStatus.IsTerminal() {
		return nil
	}

	cancelled, err := w.store.IsOrderCancelled(ctx, hash)
	if err != nil {
		return errs.Transient("hashupdate: check cancel log", err)
	}
	if cancelled {
		return w.store.MarkCancelled(ctx, hash)
	}

	now := time.Now()
	if !order.IsWithinValidWindow(now) {
		return w.store.SetDerivedFields(ctx, hash, domain.Expired, order.ApprovalStatus, order.Value, now)
	}

	var ts *domain.TokenSet
	if !order.Kind.IsEscrowed() {
		ts, err = w.store.GetTokenSet(ctx, order.TokenSetID)
		if err != nil {
			return errs.Transient("hashupdate: load token set", err)
		}
		if ts == nil {
			return errs.DataInvalid(fmt.Sprintf("hashupdate: order %s references unknown token set %s", order.Hash, order.TokenSetID))
		}
	}

	fillability, err := w.fillability(ctx, order, ts)
	if err != nil {
		return err
	}
	approval, err := w.approval(ctx, order, ts)
	if err != nil {
		return err
	}

	// X2Y2 orders do not degrade to no-balance/no-approval: losing either
	// one means the listing itself is gone, not merely stale.
	if order.Kind.IsX2Y2() && (fillability == domain.NoBalance || approval == domain.NoApproval) {
		return w.store.MarkCancelled(ctx, hash)
	}

	expiration := order.Expiration
	if fillability != domain.Fillable {
		expiration = now
	} else {
		expiration = order.ValidUntil
	}

	return w.store.SetDerivedFields(ctx, hash, fillability, approval, order.Value, expiration)
}

func (w *Worker) fillability(ctx context.Context, order *domain.Order, ts *domain.TokenSet) (domain.FillabilityStatus, error) {
	if !strategyFor(order.Kind).RequiresBalanceCheck() {
		return domain.Fillable, nil
	}
	if order.Side == domain.Sell {
		return w.sellFillability(ctx, order, ts)
	}
	return w.buyFillability(ctx, order)
}

func (w *Worker) sellFillability(ctx context.Context, order *domain.Order, ts *domain.TokenSet) (domain.FillabilityStatus, error) {
	switch ts.Kind {
	case domain.TokenSetSingle:
		balance, err := w.store.NFTBalance(ctx, order.Maker, ts.Contract, ts.TokenID)
		if err != nil {
			return "", errs.Transient("hashupdate: read nft balance", err)
		}
		if balance.Cmp(order.QuantityRemaining) >= 0 {
			return domain.Fillable, nil
		}
		return domain.NoBalance, nil
	default:
		// Range/contract/attribute sell orders are fillable against any
		// token the maker currently holds within the set; without an
		// explicit per-token enumeration here we defer to the maker-update
		// worker's balance-triggered recheck, so a standalone hash-update
		// leaves fillability unchanged pending that trigger.
		return order.FillabilityStatus, nil
	}
}

func (w *Worker) buyFillability(ctx context.Context, order *domain.Order) (domain.FillabilityStatus, error) {
	balance, err := w.store.FTBalance(ctx, order.Maker, order.Conduit)
	if err != nil {
		return "", errs.Transient("hashupdate: read ft balance", err)
	}
	if balance.Cmp(order.Price) >= 0 {
		return domain.Fillable, nil
	}
	return domain.NoBalance, nil
}

// approval checks whether order.Conduit is authorized to move the
// relevant asset on the maker's behalf: for sells, ApprovalForAll on the
// token set's NFT contract; for buys, sufficient ERC20 allowance on the
// payment token (modeled here as order.Conduit's own contract, since buy
// orders carry no separate payment-token field in this projection).
func (w *Worker) approval(ctx context.Context, order *domain.Order, ts *domain.TokenSet) (domain.ApprovalStatus, error) {
	if order.Side == domain.Sell {
		if !strategyFor(order.Kind).RequiresBalanceCheck() {
			return domain.Approved, nil
		}
		approved, err := w.store.NFTApproval(ctx, order.Maker, order.Conduit, ts.Contract)
		if err != nil {
			return "", errs.Transient("hashupdate: read nft approval", err)
		}
		if approved {
			return domain.Approved, nil
		}
		return domain.NoApproval, nil
	}

	allowance, err := w.store.FTAllowance(ctx, order.Maker, order.Conduit, order.Conduit)
	if err != nil {
		return "", errs.Transient("hashupdate: read ft allowance", err)
	}
	required := new(big.Int).Div(new(big.Int).Mul(order.Price, big.NewInt(int64(order.FeeBPS))), big.NewInt(10000))
	if allowance.Cmp(required) >= 0 {
		return domain.Approved, nil
	}
	return domain.NoApproval, nil
}
