package tokenset

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
)

func TestCanonicalID_Determinism(t *testing.T) {
	id1, err := CanonicalID(domain.TokenSetSingle, "0xaaa", big.NewInt(7), nil, nil)
	require.NoError(t, err)
	id2, err := CanonicalID(domain.TokenSetSingle, "0xaaa", big.NewInt(7), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, "token:0xaaa:7", id1)
}

func TestCanonicalID_RangeAndContract(t *testing.T) {
	rangeID, err := CanonicalID(domain.TokenSetCollectionRange, "0xaaa", nil, big.NewInt(1), big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "range:0xaaa:1:100", rangeID)

	contractID, err := CanonicalID(domain.TokenSetCollectionContract, "0xaaa", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "contract:0xaaa", contractID)
}

func TestOrderKindTokenSetKind_Table(t *testing.T) {
	cases := map[domain.OrderKind]domain.TokenSetKind{
		domain.KindWyvernV2SingleToken:   domain.TokenSetSingle,
		domain.KindWyvernV2SingleTokenV2: domain.TokenSetSingle,
		domain.KindWyvernV23TokenRange:   domain.TokenSetCollectionRange,
		domain.KindWyvernV2ContractWide:  domain.TokenSetCollectionContract,
		domain.KindWyvernV23TokenList:    domain.TokenSetAttribute,
	}
	for kind, want := range cases {
		got, err := OrderKindTokenSetKind(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got, "kind %s", kind)
	}
}

func TestBuildMerkleTree_OrderIndependent(t *testing.T) {
	members := []Membership{
		{Contract: "0xaaa", TokenID: big.NewInt(1)},
		{Contract: "0xaaa", TokenID: big.NewInt(2)},
		{Contract: "0xaaa", TokenID: big.NewInt(3)},
	}
	reversed := []Membership{members[2], members[1], members[0]}

	root1 := BuildMerkleTree(members)
	root2 := BuildMerkleTree(reversed)
	assert.Equal(t, root1, root2, "merkle root must not depend on input order")
	assert.NotEqual(t, domain.HashZero, root1)
}

func TestBuildMerkleTree_OddCount(t *testing.T) {
	members := []Membership{
		{Contract: "0xaaa", TokenID: big.NewInt(1)},
		{Contract: "0xaaa", TokenID: big.NewInt(2)},
		{Contract: "0xaaa", TokenID: big.NewInt(3)},
	}
	root := BuildMerkleTree(members)
	assert.NotEmpty(t, root)
}

type fakeMembershipSource struct {
	members []Membership
	err     error
}

func (f *fakeMembershipSource) TokensForAttribute(attr domain.Attribute) ([]Membership, error) {
	return f.members, f.err
}

func TestResolver_AttributeOrder_AcceptsMatchingRoot(t *testing.T) {
	members := []Membership{
		{Contract: "0xaaa", TokenID: big.NewInt(1)},
		{Contract: "0xaaa", TokenID: big.NewInt(2)},
	}
	root := BuildMerkleTree(members)
	r := NewResolver(&fakeMembershipSource{members: members})

	ts, got, err := r.Resolve(ResolveInput{
		Kind:       domain.KindWyvernV2TokenList,
		MerkleRoot: root,
		Attribute:  &domain.Attribute{Collection: "punks", Key: "hat", Value: "blue"},
	})
	require.NoError(t, err)
	assert.Equal(t, MerkleRootID(root), ts.ID)
	assert.Len(t, got, 2)
}

func TestResolver_AttributeOrder_RejectsMismatchedRoot(t *testing.T) {
	members := []Membership{{Contract: "0xaaa", TokenID: big.NewInt(1)}}
	r := NewResolver(&fakeMembershipSource{members: members})

	_, _, err := r.Resolve(ResolveInput{
		Kind:       domain.KindWyvernV2TokenList,
		MerkleRoot: "0xdeadbeef",
		Attribute:  &domain.Attribute{Collection: "punks", Key: "hat", Value: "blue"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching token set")
}

func TestResolver_SingleToken(t *testing.T) {
	r := NewResolver(nil)
	ts, members, err := r.Resolve(ResolveInput{
		Kind:     domain.KindWyvernV2SingleToken,
		Contract: "0xaaa",
		TokenID:  big.NewInt(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "token:0xaaa:7", ts.ID)
	require.Len(t, members, 1)
	assert.Equal(t, big.NewInt(7), members[0].TokenID)
}
