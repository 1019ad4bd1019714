// Package tokenset resolves an order's token set: it derives the
// canonical id for each of the four token-set kinds and verifies Merkle
// roots for attribute (token-list) orders. It keeps no membership cache:
// memberships come from the injected MembershipSource on each call.
//
// The resolver is deliberately pure where possible (CanonicalID,
// BuildMerkleTree) so token-set determinism and Merkle-root consistency
// can be tested without a database.
package tokenset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nftindexer/indexer/internal/domain"
)

// Membership is a (contract, tokenId) pair belonging to a token set.
type Membership struct {
	Contract string
	TokenID  *big.Int
}

// MembershipSource resolves the concrete tokens backing an attribute
// (token-list) selector. In production this queries the collection's
// indexed metadata; here it is an injected interface so the resolver
// stays free of store/database concerns.
type MembershipSource interface {
	TokensForAttribute(attr domain.Attribute) ([]Membership, error)
}

// CanonicalID computes the deterministic token-set id for the three
// non-list kinds. List-kind ids use MerkleRootID instead,
// since they are keyed by the verified root, not by raw selector fields.
func CanonicalID(kind domain.TokenSetKind, contract string, tokenID *big.Int, lo, hi *big.Int) (string, error) {
	switch kind {
	case domain.TokenSetSingle:
		if tokenID == nil {
			return "", fmt.Errorf("tokenset: single kind requires tokenID")
		}
		return fmt.Sprintf("token:%s:%s", contract, tokenID.String()), nil
	case domain.TokenSetCollectionRange:
		if lo == nil || hi == nil {
			return "", fmt.Errorf("tokenset: range kind requires lo and hi")
		}
		return fmt.Sprintf("range:%s:%s:%s", contract, lo.String(), hi.String()), nil
	case domain.TokenSetCollectionContract:
		return fmt.Sprintf("contract:%s", contract), nil
	default:
		return "", fmt.Errorf("tokenset: CanonicalID does not handle kind %q", kind)
	}
}

// MerkleRootID computes the canonical id for a list-kind token set.
func MerkleRootID(root string) string {
	return fmt.Sprintf("list:%s", root)
}

// LabelHash returns the sha-256 of the stable-stringified label, or
// domain.HashZero for the three non-list kinds.
func LabelHash(kind domain.TokenSetKind, label map[string]any) (string, error) {
	if kind != domain.TokenSetAttribute {
		return domain.HashZero, nil
	}
	keys := make([]string, 0, len(label))
	for k := range label {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	stable := make(map[string]any, len(label))
	for _, k := range keys {
		stable[k] = label[k]
	}
	data, err := json.Marshal(stable)
	if err != nil {
		return "", fmt.Errorf("tokenset: marshal label: %w", err)
	}
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// OrderKindTokenSetKind maps an order kind suffix to its token-set kind.
func OrderKindTokenSetKind(kind domain.OrderKind) (domain.TokenSetKind, error) {
	switch kind {
	case domain.KindWyvernV2SingleToken, domain.KindWyvernV2SingleTokenV2,
		domain.KindWyvernV23SingleToken, domain.KindWyvernV23SingleTokenV2,
		domain.KindX2Y2SingleToken, domain.KindFoundationSingleToken,
		domain.KindCryptoPunksSingleToken:
		return domain.TokenSetSingle, nil
	case domain.KindWyvernV2TokenRange, domain.KindWyvernV23TokenRange:
		return domain.TokenSetCollectionRange, nil
	case domain.KindWyvernV2ContractWide, domain.KindWyvernV23ContractWide:
		return domain.TokenSetCollectionContract, nil
	case domain.KindWyvernV2TokenList, domain.KindWyvernV23TokenList:
		return domain.TokenSetAttribute, nil
	default:
		return "", fmt.Errorf("tokenset: unrecognized order kind %q", kind)
	}
}

// Resolver derives and verifies token sets for the intake save path.
type Resolver struct {
	members MembershipSource
}

// NewResolver creates a resolver backed by the given membership source.
func NewResolver(members MembershipSource) *Resolver {
	return &Resolver{members: members}
}

// ResolveInput is everything the resolver needs to derive one order's
// token set.
type ResolveInput struct {
	Kind       domain.OrderKind
	Contract   string
	TokenID    *big.Int
	RangeLo    *big.Int
	RangeHi    *big.Int
	MerkleRoot string // declared root, required for token-list kinds
	Attribute  *domain.Attribute
}

// Resolve derives the TokenSet and (for list orders) its verified
// membership. Returns errs.DataInvalid-flavored errors via the caller's
// filter layer when the declared root does not match.
func (r *Resolver) Resolve(in ResolveInput) (*domain.TokenSet, []Membership, error) {
	kind, err := OrderKindTokenSetKind(in.Kind)
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case domain.TokenSetSingle:
		id, err := CanonicalID(kind, in.Contract, in.TokenID, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		return &domain.TokenSet{
			ID: id, Kind: kind, Contract: in.Contract, TokenID: in.TokenID,
			LabelHash: domain.HashZero,
		}, []Membership{{Contract: in.Contract, TokenID: in.TokenID}}, nil

	case domain.TokenSetCollectionRange:
		id, err := CanonicalID(kind, in.Contract, nil, in.RangeLo, in.RangeHi)
		if err != nil {
			return nil, nil, err
		}
		return &domain.TokenSet{
			ID: id, Kind: kind, Contract: in.Contract, RangeLo: in.RangeLo, RangeHi: in.RangeHi,
			LabelHash: domain.HashZero,
		}, nil, nil

	case domain.TokenSetCollectionContract:
		id, err := CanonicalID(kind, in.Contract, nil, nil, nil)
		if err != nil {
			return nil, nil, err
		}
		return &domain.TokenSet{
			ID: id, Kind: kind, Contract: in.Contract, LabelHash: domain.HashZero,
		}, nil, nil

	case domain.TokenSetAttribute:
		if in.Attribute == nil {
			return nil, nil, fmt.Errorf("tokenset: token-list order requires an attribute descriptor")
		}
		if r.members == nil {
			return nil, nil, fmt.Errorf("tokenset: no membership source configured")
		}
		members, err := r.members.TokensForAttribute(*in.Attribute)
		if err != nil {
			return nil, nil, fmt.Errorf("tokenset: resolve attribute members: %w", err)
		}
		if len(members) == 0 {
			return nil, nil, fmt.Errorf("Order has no matching token set")
		}
		contract := members[0].Contract
		for _, m := range members {
			if m.Contract != contract {
				return nil, nil, fmt.Errorf("tokenset: attribute members span multiple contracts")
			}
		}
		root := BuildMerkleTree(members)
		if root != in.MerkleRoot {
			return nil, nil, fmt.Errorf("Order has no matching token set")
		}
		label := map[string]any{
			"kind":       "attribute",
			"collection": in.Attribute.Collection,
			"key":        in.Attribute.Key,
			"value":      in.Attribute.Value,
		}
		labelHash, err := LabelHash(kind, label)
		if err != nil {
			return nil, nil, err
		}
		return &domain.TokenSet{
			ID: MerkleRootID(root), Kind: kind, Contract: contract,
			MerkleRoot: root, LabelHash: labelHash,
		}, members, nil
	}

	return nil, nil, fmt.Errorf("tokenset: unhandled token-set kind %q", kind)
}

// BuildMerkleTree computes the root of a Merkle tree whose leaves are
// keccak256(contract || tokenID) for each membership, sorted so the root
// is independent of input ordering.
//
// An odd layer duplicates its last node, the common convention for
// Solidity-facing Merkle proofs.
func BuildMerkleTree(members []Membership) string {
	if len(members) == 0 {
		return domain.HashZero
	}

	leaves := make([][]byte, len(members))
	for i, m := range members {
		leaves[i] = leafHash(m)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return lessBytes(leaves[i], leaves[j])
	})

	layer := leaves
	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 < len(layer) {
				next = append(next, parentHash(layer[i], layer[i+1]))
			} else {
				next = append(next, parentHash(layer[i], layer[i]))
			}
		}
		layer = next
	}
	return "0x" + hex.EncodeToString(layer[0])
}

func leafHash(m Membership) []byte {
	tokenID := m.TokenID
	if tokenID == nil {
		tokenID = big.NewInt(0)
	}
	buf := make([]byte, 0, len(m.Contract)+32)
	buf = append(buf, []byte(m.Contract)...)
	buf = append(buf, leftPad32(tokenID.Bytes())...)
	sum := crypto.Keccak256(buf)
	return sum
}

func parentHash(a, b []byte) []byte {
	if lessBytes(b, a) {
		a, b = b, a
	}
	return crypto.Keccak256(append(append([]byte{}, a...), b...))
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
