package sdkadapter

import (
	"fmt"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/tokenset"
)

// UnindexedMemberships is the default tokenset.MembershipSource: it has
// no collection-metadata index to query, so every attribute lookup
// fails closed rather than silently resolving to zero members. Token-
// list orders only become usable once a deployment wires a real
// collection-metadata index here (collection traits are an off-chain
// indexing concern outside the order-lifecycle engine this repository
// implements).
type UnindexedMemberships struct{}

// NewUnindexedMemberships constructs the fail-closed default.
func NewUnindexedMemberships() *UnindexedMemberships {
	return &UnindexedMemberships{}
}

// TokensForAttribute always errors: see UnindexedMemberships's doc comment.
func (UnindexedMemberships) TokensForAttribute(attr domain.Attribute) ([]tokenset.Membership, error) {
	return nil, fmt.Errorf("sdkadapter: no collection-metadata index wired for %s/%s=%s", attr.Collection, attr.Key, attr.Value)
}
