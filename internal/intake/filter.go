// Package intake implements the order intake filter and save path:
// validate an off-chain signed order submission, derive its token set
// and fee attribution, and save it idempotently.
package intake

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/nftindexer/indexer/internal/domain"
)

// Signer verifies a signed order's hash and signature, the one piece of
// trusted-SDK logic the filter needs: order hashing and signature
// verification are assumed as a trusted library this package doesn't
// implement.
type Signer interface {
	VerifySignature(order *domain.Order, signature []byte) (bool, error)
	HashOrder(order *domain.Order) (string, error)
}

// ContractRegistry answers whether a contract is indexed, backing the
// "target contract is indexed" filter check.
type ContractRegistry interface {
	IsIndexedContract(ctx context.Context, address string) (bool, error)
}

// RawOrderSubmission is the off-chain payload a maker posts: an
// unsigned order plus its signature and the raw bytes to persist
// opaquely for the SDK.
type RawOrderSubmission struct {
	Order     *domain.Order
	Signature []byte
	RawData   []byte
	Contract  string // token contract the order's token set targets, for the indexed-contract check

	// Token-set selector fields: domain.Order carries no selector data of
	// its own (it only ever points at a resolved TokenSetID), so the raw
	// submission is what carries whichever of these the order's kind
	// needs — single/range/contract orders use TokenID/RangeLo/RangeHi,
	// list orders use MerkleRoot+Attribute.
	TokenID    *big.Int
	RangeLo    *big.Int
	RangeHi    *big.Int
	MerkleRoot string
	Attribute  *domain.Attribute
}

// InvalidOrder pairs a rejected submission with why it was rejected
//.
type InvalidOrder struct {
	Order  *RawOrderSubmission
	Reason string
}

// FilterResult separates a batch of submissions into what passed and
// what didn't.
type FilterResult struct {
	Valid   []*RawOrderSubmission
	Invalid []InvalidOrder
}

// Filter applies guard clauses to a batch of submissions:
// signature, kind, time window, side, fee, and indexed-contract checks.
type Filter struct {
	signer     Signer
	contracts  ContractRegistry
	maxFeeBPS  int
	acceptNew  bool // mirrors "acceptOrders" master switch
}

// NewFilter constructs an intake filter.
func NewFilter(signer Signer, contracts ContractRegistry, maxFeeBPS int, acceptNew bool) *Filter {
	return &Filter{signer: signer, contracts: contracts, maxFeeBPS: maxFeeBPS, acceptNew: acceptNew}
}

// Apply validates every submission in the batch independently; one bad
// order never blocks the rest.
func (f *Filter) Apply(ctx context.Context, submissions []*RawOrderSubmission) FilterResult {
	var result FilterResult
	if !f.acceptNew {
		for _, s := range submissions {
			result.Invalid = append(result.Invalid, InvalidOrder{Order: s, Reason: "order intake is currently disabled"})
		}
		return result
	}

	for _, s := range submissions {
		if reason := f.check(ctx, s); reason != "" {
			result.Invalid = append(result.Invalid, InvalidOrder{Order: s, Reason: reason})
			continue
		}
		result.Valid = append(result.Valid, s)
	}
	return result
}

func (f *Filter) check(ctx context.Context, s *RawOrderSubmission) string {
	o := s.Order
	if o == nil {
		return "missing order body"
	}

	switch o.Kind {
	case domain.KindWyvernV2SingleToken, domain.KindWyvernV2SingleTokenV2, domain.KindWyvernV2TokenRange,
		domain.KindWyvernV2ContractWide, domain.KindWyvernV2TokenList, domain.KindWyvernV23SingleToken,
		domain.KindWyvernV23SingleTokenV2, domain.KindWyvernV23TokenRange, domain.KindWyvernV23ContractWide,
		domain.KindWyvernV23TokenList, domain.KindX2Y2SingleToken, domain.KindFoundationSingleToken,
		domain.KindCryptoPunksSingleToken:
		// known kind
	default:
		return fmt.Sprintf("unknown order kind %q", o.Kind)
	}

	if o.Side != domain.Buy && o.Side != domain.Sell {
		return fmt.Sprintf("unknown order side %q", o.Side)
	}

	now := time.Now()
	if !o.ValidUntil.After(now) {
		return "order has already expired"
	}
	if o.ValidFrom.After(now) {
		return "order is not yet within its valid window"
	}

	if o.FeeBPS < 0 || o.FeeBPS > f.maxFeeBPS {
		return fmt.Sprintf("fee %d bps exceeds policy maximum %d bps", o.FeeBPS, f.maxFeeBPS)
	}

	if indexed, err := f.contracts.IsIndexedContract(ctx, s.Contract); err != nil {
		return fmt.Sprintf("could not verify target contract: %v", err)
	} else if !indexed {
		return fmt.Sprintf("contract %s is not indexed", s.Contract)
	}

	hash, err := f.signer.HashOrder(o)
	if err != nil {
		return fmt.Sprintf("could not hash order: %v", err)
	}
	o.Hash = hash

	ok, err := f.signer.VerifySignature(o, s.Signature)
	if err != nil {
		return fmt.Sprintf("could not verify signature: %v", err)
	}
	if !ok {
		return "invalid signature"
	}

	return ""
}
