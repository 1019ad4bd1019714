package intake

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/store"
	"github.com/nftindexer/indexer/internal/tokenset"
)

type fakeSaveStore struct {
	upsertedOrder *domain.Order
	upsertedTS    *domain.TokenSet
}

func (f *fakeSaveStore) UpsertTokenSet(ctx context.Context, ts *domain.TokenSet, members []store.TokenSetMember) error {
	f.upsertedTS = ts
	return nil
}
func (f *fakeSaveStore) UpsertOrder(ctx context.Context, o *domain.Order) error {
	f.upsertedOrder = o
	return nil
}

type fakeSaveEnqueuer struct{ enqueued []string }

func (f *fakeSaveEnqueuer) EnqueueHashUpdate(ctx context.Context, orderHash string) error {
	f.enqueued = append(f.enqueued, orderHash)
	return nil
}

type noMemberSource struct{}

func (noMemberSource) TokensForAttribute(attr domain.Attribute) ([]tokenset.Membership, error) {
	return nil, nil
}

func TestSave_SingleTokenSellOrder_ValueEqualsPrice(t *testing.T) {
	st := &fakeSaveStore{}
	eq := &fakeSaveEnqueuer{}
	resolver := tokenset.NewResolver(noMemberSource{})
	saver := NewSaver(resolver, st, eq)

	sub := &RawOrderSubmission{
		Order: &domain.Order{
			Hash:       "0xhash",
			Kind:       domain.KindWyvernV2SingleToken,
			Side:       domain.Sell,
			Maker:      "0xmaker",
			Price:      big.NewInt(1000),
			FeeBPS:     250,
			ValidFrom:  time.Now().Add(-time.Hour),
			ValidUntil: time.Now().Add(time.Hour),
		},
		Contract: "0xcontract",
		TokenID:  big.NewInt(42),
	}

	err := saver.Save(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, st.upsertedOrder)
	assert.Equal(t, big.NewInt(1000), st.upsertedOrder.Value)
	assert.Equal(t, "token:0xcontract:42", st.upsertedOrder.TokenSetID)
	assert.Equal(t, domain.Fillable, st.upsertedOrder.FillabilityStatus)
	assert.Equal(t, []string{"0xhash"}, eq.enqueued)
}

func TestSave_BuyOrder_ValueNetOfFees(t *testing.T) {
	st := &fakeSaveStore{}
	eq := &fakeSaveEnqueuer{}
	resolver := tokenset.NewResolver(noMemberSource{})
	saver := NewSaver(resolver, st, eq)

	sub := &RawOrderSubmission{
		Order: &domain.Order{
			Hash:        "0xhash",
			Kind:        domain.KindWyvernV2SingleToken,
			Side:        domain.Buy,
			Maker:       "0xmaker",
			Price:       big.NewInt(10000),
			FeeBPS:      250, // 2.5%, the maker-bound approval cap
			TakerFeeBPS: 250, // what the taker actually pays, used for value
			ValidFrom:   time.Now().Add(-time.Hour),
			ValidUntil:  time.Now().Add(time.Hour),
		},
		Contract: "0xcontract",
		TokenID:  big.NewInt(7),
	}

	err := saver.Save(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9750), st.upsertedOrder.Value)
}

func TestSave_TokenListOrder_NoMatchingMembersErrors(t *testing.T) {
	st := &fakeSaveStore{}
	eq := &fakeSaveEnqueuer{}
	resolver := tokenset.NewResolver(noMemberSource{})
	saver := NewSaver(resolver, st, eq)

	sub := &RawOrderSubmission{
		Order: &domain.Order{
			Hash:       "0xhash",
			Kind:       domain.KindWyvernV2TokenList,
			Side:       domain.Buy,
			Maker:      "0xmaker",
			Price:      big.NewInt(100),
			ValidFrom:  time.Now().Add(-time.Hour),
			ValidUntil: time.Now().Add(time.Hour),
		},
		Contract:   "0xcontract",
		MerkleRoot: "0xroot",
		Attribute:  &domain.Attribute{Collection: "0xcontract", Key: "trait", Value: "gold"},
	}

	err := saver.Save(context.Background(), sub)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching token set")
	assert.Nil(t, st.upsertedOrder)
	assert.Empty(t, eq.enqueued)
}

func TestFeeAttribution_OpenSeaGetsFixed250BPS(t *testing.T) {
	o := &domain.Order{
		FeeBPS:   500,
		SourceID: domain.OpenSeaFeeRecipient,
		RoyaltyInfo: []domain.RoyaltyEntry{
			{Recipient: "0xcreator", BPS: 250},
		},
	}
	attrs := FeeAttribution(o)
	require.Len(t, attrs, 2)
	assert.Equal(t, FeeRecipient{Address: domain.OpenSeaFeeRecipient, BPS: 250}, attrs[0])
	assert.Equal(t, FeeRecipient{Address: "0xcreator", BPS: 250}, attrs[1])
}

func TestFeeAttribution_RoyaltyCappedByRemainingFee(t *testing.T) {
	o := &domain.Order{
		FeeBPS:   200,
		SourceID: "0xsource",
		RoyaltyInfo: []domain.RoyaltyEntry{
			{Recipient: "0xcreator", BPS: 500},
		},
	}
	o.SourceBPS = 150
	attrs := FeeAttribution(o)
	require.Len(t, attrs, 2)
	assert.Equal(t, 150, attrs[0].BPS)
	assert.Equal(t, 50, attrs[1].BPS, "royalty is capped by whatever fee bps remains")
}
