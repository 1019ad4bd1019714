// Package domain defines the shared vocabulary used across every layer of
// the indexer — orders, token sets, chain events, and the statuses derived
// from them. It has no dependencies on other internal packages, so it can
// be imported by any layer.
package domain

import (
	"math/big"
	"time"
)

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: buy or sell.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderKind enumerates the supported Wyvern-style order families, encoded
// as "<family>-<token-set-kind>" so the save path can derive the token-set
// kind directly from the order's kind suffix.
type OrderKind string

const (
	KindWyvernV2SingleToken     OrderKind = "wyvern-v2-single-token"
	KindWyvernV2SingleTokenV2   OrderKind = "wyvern-v2-single-token-v2"
	KindWyvernV2TokenRange      OrderKind = "wyvern-v2-token-range"
	KindWyvernV2ContractWide    OrderKind = "wyvern-v2-contract-wide"
	KindWyvernV2TokenList       OrderKind = "wyvern-v2-token-list"
	KindWyvernV23SingleToken    OrderKind = "wyvern-v2.3-single-token"
	KindWyvernV23SingleTokenV2  OrderKind = "wyvern-v2.3-single-token-v2"
	KindWyvernV23TokenRange     OrderKind = "wyvern-v2.3-token-range"
	KindWyvernV23ContractWide   OrderKind = "wyvern-v2.3-contract-wide"
	KindWyvernV23TokenList      OrderKind = "wyvern-v2.3-token-list"
	KindX2Y2SingleToken         OrderKind = "x2y2-single-token"
	KindFoundationSingleToken   OrderKind = "foundation-single-token"
	KindCryptoPunksSingleToken  OrderKind = "cryptopunks-single-token"
)

// IsV23 reports whether the order kind carries a nonce subject to bulk
// cancellation.
func (k OrderKind) IsV23() bool {
	switch k {
	case KindWyvernV23SingleToken, KindWyvernV23SingleTokenV2, KindWyvernV23TokenRange,
		KindWyvernV23ContractWide, KindWyvernV23TokenList:
		return true
	}
	return false
}

// IsEscrowed reports whether the listed token is already held by the
// exchange contract, so a balance recheck is meaningless.
func (k OrderKind) IsEscrowed() bool {
	return k == KindFoundationSingleToken || k == KindCryptoPunksSingleToken
}

// IsX2Y2 reports whether this is an X2Y2 order, the one non-escrowed kind
// that loses its listing outright (rather than going no-balance/
// no-approval) once the maker's balance or approval drops.
func (k OrderKind) IsX2Y2() bool {
	return k == KindX2Y2SingleToken
}

// TokenSetKind enumerates the four shapes a token set may take.
type TokenSetKind string

const (
	TokenSetSingle             TokenSetKind = "token"
	TokenSetCollectionRange    TokenSetKind = "collection-range"
	TokenSetCollectionContract TokenSetKind = "collection-contract"
	TokenSetAttribute          TokenSetKind = "attribute"
)

// FillabilityStatus is the derived lifecycle state of an order.
type FillabilityStatus string

const (
	Fillable   FillabilityStatus = "fillable"
	NoBalance  FillabilityStatus = "no-balance"
	Cancelled  FillabilityStatus = "cancelled"
	Filled     FillabilityStatus = "filled"
	Expired    FillabilityStatus = "expired"
)

// IsTerminal reports whether a status can never transition again once
// set. Orders are never deleted; terminal states are kept for history.
func (s FillabilityStatus) IsTerminal() bool {
	return s == Cancelled || s == Filled
}

// ApprovalStatus is the derived approval lifecycle state of an order.
type ApprovalStatus string

const (
	Approved   ApprovalStatus = "approved"
	NoApproval ApprovalStatus = "no-approval"
)

// ContractKind classifies an indexed contract for the intake filter
//.
type ContractKind string

const (
	ContractERC721  ContractKind = "erc721"
	ContractERC1155 ContractKind = "erc1155"
	ContractERC20   ContractKind = "erc20"
)

// ————————————————————————————————————————————————————————————————————————
// Addressing
// ————————————————————————————————————————————————————————————————————————

// OpenSeaFeeRecipient is the well-known OpenSea fee-recipient address that
// triggers the fixed 250bps OpenSea attribution rule.
const OpenSeaFeeRecipient = "0x5b3256965e7c3cf26e11fcaf296dfc8807c01073"

// ZeroAddress is the mint/burn sentinel address (0x0): a Transfer with
// this as From is a mint, as To is a burn. Neither is a maker any
// recheck trigger needs to fire for.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// HashZero is the canonical zero hash used as label_hash for the three
// non-list token-set kinds.
const HashZero = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ————————————————————————————————————————————————————————————————————————
// Token set
// ————————————————————————————————————————————————————————————————————————

// TokenSet is a set of tokens an order may be filled against.
type TokenSet struct {
	ID         string       // canonical id, see CanonicalID
	Kind       TokenSetKind
	Contract   string
	TokenID    *big.Int // set for Kind == TokenSetSingle
	RangeLo    *big.Int // set for Kind == TokenSetCollectionRange
	RangeHi    *big.Int
	MerkleRoot string // set for Kind == TokenSetAttribute
	Label      string // stable-stringified JSON description
	LabelHash  string // sha-256 of Label; HashZero for non-list kinds
}

// Attribute describes the (collection, key, value) selector that backs a
// token-list order.
type Attribute struct {
	Collection string
	Key        string
	Value      string
}

// ————————————————————————————————————————————————————————————————————————
// Order
// ————————————————————————————————————————————————————————————————————————

// RoyaltyEntry attributes a royalty share to a recipient.
type RoyaltyEntry struct {
	Recipient string
	BPS       int
}

// Order is the core entity of the indexer: a signed limit order and its
// derived lifecycle state.
type Order struct {
	Hash              string // 32-byte content hash of the signed order, hex-encoded
	Kind              OrderKind
	Side              Side
	Maker             string
	Price             *big.Int // wei, 256-bit unsigned
	Value             *big.Int // price net of fees for buys, == Price for sells
	TokenSetID        string
	ValidFrom         time.Time
	ValidUntil        time.Time // half-open: [ValidFrom, ValidUntil)
	Nonce             *big.Int  // v2.3 only
	FeeBPS            int       // max(makerRelayerFee, takerRelayerFee): the approval/allowance bound
	TakerFeeBPS       int       // takerRelayerFee alone: what a taker actually pays on a buy order
	SourceID          string // marketplace attribution address
	SourceBPS         int
	RoyaltyInfo       []RoyaltyEntry
	Conduit           string // operator contract authorized to transfer for Maker
	QuantityRemaining *big.Int
	RawData           []byte // opaque payload for the SDK

	FillabilityStatus FillabilityStatus
	ApprovalStatus    ApprovalStatus

	CreatedAt  time.Time
	UpdatedAt  time.Time
	Expiration time.Time // cache of the moment the order stopped being fillable/no-balance
}

// IsWithinValidWindow reports whether valid_between.upper > now(),
// the window check required for fillable/no-balance orders.
func (o *Order) IsWithinValidWindow(now time.Time) bool {
	return o.ValidUntil.After(now)
}

// ————————————————————————————————————————————————————————————————————————
// Orderbook entry points the query API needs
// ————————————————————————————————————————————————————————————————————————

// BestPrice is the top-of-book view for a token set on one side.
type BestPrice struct {
	TokenSetID string
	Side       Side
	Value      *big.Int
	OrderHash  string
}
