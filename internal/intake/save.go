package intake

import (
	"context"
	"math/big"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/errs"
	"github.com/nftindexer/indexer/internal/store"
	"github.com/nftindexer/indexer/internal/tokenset"
)

// FeeRecipient is one attribution entry of an order's fee table.
type FeeRecipient struct {
	Address string
	BPS     int
}

// Store is the subset of *store.Store the save path depends on.
type Store interface {
	UpsertTokenSet(ctx context.Context, ts *domain.TokenSet, members []store.TokenSetMember) error
	UpsertOrder(ctx context.Context, o *domain.Order) error
}

// Enqueuer is the subset of *queue.Queue the save path depends on.
type Enqueuer interface {
	EnqueueHashUpdate(ctx context.Context, orderHash string) error
}

// Saver resolves a valid submission's token set and fee attribution, then
// writes it through the store's idempotent upsert.
type Saver struct {
	resolver *tokenset.Resolver
	store    Store
	queue    Enqueuer
}

// NewSaver constructs an intake saver.
func NewSaver(resolver *tokenset.Resolver, s Store, q Enqueuer) *Saver {
	return &Saver{resolver: resolver, store: s, queue: q}
}

// Save derives the order's token set, value, and fee attribution, then
// idempotently upserts it and schedules a hash-update so fillability is
// derived from current chain state immediately rather than waiting for
// the next trigger.
func (s *Saver) Save(ctx context.Context, sub *RawOrderSubmission) error {
	o := sub.Order

	ts, members, err := s.resolver.Resolve(tokenset.ResolveInput{
		Kind:       o.Kind,
		Contract:   sub.Contract,
		TokenID:    sub.TokenID,
		RangeLo:    sub.RangeLo,
		RangeHi:    sub.RangeHi,
		MerkleRoot: sub.MerkleRoot,
		Attribute:  sub.Attribute,
	})
	if err != nil {
		return errs.DataInvalid(err.Error())
	}

	storeMembers := make([]store.TokenSetMember, len(members))
	for i, m := range members {
		storeMembers[i] = store.TokenSetMember{Contract: m.Contract, TokenID: m.TokenID}
	}
	if err := s.store.UpsertTokenSet(ctx, ts, storeMembers); err != nil {
		return errs.Transient("intake: upsert token set", err)
	}
	o.TokenSetID = ts.ID

	o.Value = computeValue(o)
	o.RawData = sub.RawData
	o.FillabilityStatus = domain.Fillable
	o.ApprovalStatus = domain.NoApproval
	if o.QuantityRemaining == nil {
		o.QuantityRemaining = big.NewInt(1)
	}

	if err := s.store.UpsertOrder(ctx, o); err != nil {
		return errs.Transient("intake: upsert order", err)
	}

	if err := s.queue.EnqueueHashUpdate(ctx, o.Hash); err != nil {
		return errs.Transient("intake: enqueue hash update", err)
	}
	return nil
}

// FeeAttribution computes the per-recipient fee split for an order:
// OpenSea's well-known fee recipient always attributes a fixed 250bps
// regardless of the order's own declared source fee, every other source
// address gets its declared SourceBPS, and any remainder up to FeeBPS
// goes to royalty recipients in RoyaltyInfo order.
func FeeAttribution(o *domain.Order) []FeeRecipient {
	var attributions []FeeRecipient
	remaining := o.FeeBPS

	if o.SourceID == domain.OpenSeaFeeRecipient {
		attributions = append(attributions, FeeRecipient{Address: domain.OpenSeaFeeRecipient, BPS: 250})
		remaining -= 250
	} else if o.SourceID != "" && o.SourceBPS > 0 {
		bps := o.SourceBPS
		if bps > remaining {
			bps = remaining
		}
		attributions = append(attributions, FeeRecipient{Address: o.SourceID, BPS: bps})
		remaining -= bps
	}

	for _, r := range o.RoyaltyInfo {
		if remaining <= 0 {
			break
		}
		bps := r.BPS
		if bps > remaining {
			bps = remaining
		}
		attributions = append(attributions, FeeRecipient{Address: r.Recipient, BPS: bps})
		remaining -= bps
	}

	return attributions
}

// computeValue derives the order's net value: price net of the taker's
// own fee for buys (maker and taker fees can differ, so this uses
// TakerFeeBPS rather than the maker-bound FeeBPS), price as-is for sells.
func computeValue(o *domain.Order) *big.Int {
	if o.Side == domain.Sell {
		return new(big.Int).Set(o.Price)
	}
	feeAmount := new(big.Int).Div(new(big.Int).Mul(o.Price, big.NewInt(int64(o.TakerFeeBPS))), big.NewInt(10000))
	return new(big.Int).Sub(o.Price, feeAmount)
}
