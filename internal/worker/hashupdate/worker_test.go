package hashupdate

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
)

type fakeStore struct {
	order     *domain.Order
	tokenSet  *domain.TokenSet
	nftBal    *big.Int
	ftBal     *big.Int
	nftAppr   bool
	ftAllow   *big.Int
	cancelled bool

	lastFillability domain.FillabilityStatus
	lastApproval    domain.ApprovalStatus
	setCalls        int
	markCancelled   int
}

func (f *fakeStore) GetOrder(ctx context.Context, hash string) (*domain.Order, error) { return f.order, nil }
func (f *fakeStore) GetTokenSet(ctx context.Context, id string) (*domain.TokenSet, error) {
	return f.tokenSet, nil
}
func (f *fakeStore) NFTBalance(ctx context.Context, owner, contract string, tokenID *big.Int) (*big.Int, error) {
	return f.nftBal, nil
}
func (f *fakeStore) FTBalance(ctx context.Context, owner, contract string) (*big.Int, error) {
	return f.ftBal, nil
}
func (f *fakeStore) NFTApproval(ctx context.Context, owner, operator, contract string) (bool, error) {
	return f.nftAppr, nil
}
func (f *fakeStore) FTAllowance(ctx context.Context, owner, spender, contract string) (*big.Int, error) {
	return f.ftAllow, nil
}
func (f *fakeStore) SetDerivedFields(ctx context.Context, hash string, fillability domain.FillabilityStatus, approval domain.ApprovalStatus, value *big.Int, expiration time.Time) error {
	f.lastFillability = fillability
	f.lastApproval = approval
	f.setCalls++
	return nil
}
func (f *fakeStore) IsOrderCancelled(ctx context.Context, hash string) (bool, error) {
	return f.cancelled, nil
}
func (f *fakeStore) MarkCancelled(ctx context.Context, hash string) error {
	f.markCancelled++
	f.lastFillability = domain.Cancelled
	return nil
}

func baseOrder() *domain.Order {
	return &domain.Order{
		Hash:              "0xhash",
		Kind:              domain.KindWyvernV2SingleToken,
		Side:              domain.Sell,
		Maker:             "0xmaker",
		Price:             big.NewInt(100),
		Value:             big.NewInt(100),
		TokenSetID:        "token:0xnft:1",
		ValidFrom:         time.Now().Add(-time.Hour),
		ValidUntil:        time.Now().Add(time.Hour),
		Conduit:           "0xconduit",
		FeeBPS:            250,
		QuantityRemaining: big.NewInt(1),
		FillabilityStatus: domain.NoBalance,
		ApprovalStatus:    domain.NoApproval,
	}
}

func TestRecompute_SellBecomesFillableWhenBalanceAndApprovalPresent(t *testing.T) {
	fs := &fakeStore{
		order:    baseOrder(),
		tokenSet: &domain.TokenSet{ID: "token:0xnft:1", Kind: domain.TokenSetSingle, Contract: "0xnft", TokenID: big.NewInt(1)},
		nftBal:   big.NewInt(1),
		nftAppr:  true,
	}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, domain.Fillable, fs.lastFillability)
	assert.Equal(t, domain.Approved, fs.lastApproval)
	assert.Equal(t, 1, fs.setCalls)
}

func TestRecompute_SellStaysNoBalanceWithoutTokens(t *testing.T) {
	fs := &fakeStore{
		order:    baseOrder(),
		tokenSet: &domain.TokenSet{ID: "token:0xnft:1", Kind: domain.TokenSetSingle, Contract: "0xnft", TokenID: big.NewInt(1)},
		nftBal:   big.NewInt(0),
		nftAppr:  true,
	}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, domain.NoBalance, fs.lastFillability)
}

func TestRecompute_TerminalOrderSkipped(t *testing.T) {
	order := baseOrder()
	order.FillabilityStatus = domain.Cancelled
	fs := &fakeStore{order: order}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, 0, fs.setCalls, "a cancelled order must never be recomputed back to fillable")
}

func TestRecompute_ExpiredWindowMarksExpired(t *testing.T) {
	order := baseOrder()
	order.ValidUntil = time.Now().Add(-time.Minute)
	fs := &fakeStore{order: order}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, domain.Expired, fs.lastFillability)
}

func TestRecompute_MissingOrderIsNoop(t *testing.T) {
	fs := &fakeStore{order: nil}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xmissing")
	require.NoError(t, err)
	assert.Equal(t, 0, fs.setCalls)
}

func TestRecompute_CancelLogHitMarksCancelledWithoutRecomputing(t *testing.T) {
	fs := &fakeStore{order: baseOrder(), cancelled: true}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.markCancelled)
	assert.Equal(t, 0, fs.setCalls)
	assert.Equal(t, domain.Cancelled, fs.lastFillability)
}

func TestRecompute_SellFillableRequiresBalanceCoverQuantityRemaining(t *testing.T) {
	order := baseOrder()
	order.QuantityRemaining = big.NewInt(3)
	fs := &fakeStore{
		order:    order,
		tokenSet: &domain.TokenSet{ID: "token:0xnft:1", Kind: domain.TokenSetSingle, Contract: "0xnft", TokenID: big.NewInt(1)},
		nftBal:   big.NewInt(2),
		nftAppr:  true,
	}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, domain.NoBalance, fs.lastFillability, "balance of 2 does not cover 3 units remaining")
}

func TestRecompute_X2Y2LosingBalancePromotesToCancelled(t *testing.T) {
	order := baseOrder()
	order.Kind = domain.KindX2Y2SingleToken
	fs := &fakeStore{
		order:    order,
		tokenSet: &domain.TokenSet{ID: "token:0xnft:1", Kind: domain.TokenSetSingle, Contract: "0xnft", TokenID: big.NewInt(1)},
		nftBal:   big.NewInt(0),
		nftAppr:  true,
	}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.markCancelled)
	assert.Equal(t, 0, fs.setCalls)
}

func TestRecompute_X2Y2LosingApprovalPromotesToCancelled(t *testing.T) {
	order := baseOrder()
	order.Kind = domain.KindX2Y2SingleToken
	fs := &fakeStore{
		order:    order,
		tokenSet: &domain.TokenSet{ID: "token:0xnft:1", Kind: domain.TokenSetSingle, Contract: "0xnft", TokenID: big.NewInt(1)},
		nftBal:   big.NewInt(1),
		nftAppr:  false,
	}
	w := New(fs)

	err := w.Recompute(context.Background(), "0xhash")
	require.NoError(t, err)
	assert.Equal(t, 1, fs.markCancelled)
	assert.Equal(t, 0, fs.setCalls)
}
