package domain

import "math/big"

// EventKey is the unique key every event row carries:
// (blockHash, txHash, logIndex) is unique; re-delivery is a no-op.
type EventKey struct {
	BlockHash string
	TxHash    string
	LogIndex  int
	Block     uint64
}

// RawLog is the event-source tuple described in a decoded chain
// log plus its block metadata. The event source hands these to the
// ingestor in ordered batches.
type RawLog struct {
	Address string
	Topics  []string
	Data    []byte
	EventKey
}

// OrderCancelledEvent corresponds to OrderCancelled(hash).
type OrderCancelledEvent struct {
	EventKey
	OrderHash string
}

// OrdersMatchedEvent corresponds to OrdersMatched(buyHash, sellHash, maker, taker, price).
type OrdersMatchedEvent struct {
	EventKey
	BuyHash  string
	SellHash string
	Maker    string
	Taker    string
	Price    *big.Int
}

// NonceIncrementedEvent corresponds to NonceIncremented(maker, newNonce); it
// cancels every v2.3 order of that maker with nonce < newNonce.
type NonceIncrementedEvent struct {
	EventKey
	Maker    string
	NewNonce *big.Int
}

// NFTTransferEvent covers ERC721 Transfer and ERC1155 TransferSingle;
// ERC1155 TransferBatch is not decoded into it.
type NFTTransferEvent struct {
	EventKey
	Contract string
	From     string
	To       string
	TokenID  *big.Int
	Amount   *big.Int // 1 for ERC721
}

// NFTApprovalEvent covers ERC721/1155 ApprovalForAll(owner, operator, approved).
type NFTApprovalEvent struct {
	EventKey
	Contract string
	Owner    string
	Operator string
	Approved bool
}

// FTTransferEvent covers ERC20 Transfer(from, to, amount).
type FTTransferEvent struct {
	EventKey
	Contract string
	From     string
	To       string
	Amount   *big.Int
}

// FTApprovalEvent covers ERC20 Approval(owner, spender, amount).
type FTApprovalEvent struct {
	EventKey
	Contract string
	Owner    string
	Spender  string
	Amount   *big.Int
}

// FillRecord is one row of the fills-history table.
type FillRecord struct {
	EventKey
	BuyHash    string
	SellHash   string
	Maker      string
	Taker      string
	Price      *big.Int
	FillAmount *big.Int
}
