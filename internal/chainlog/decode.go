// Package chainlog decodes raw chain logs into the typed domain events the
// ingestor appends to the event log. Topic matching and ABI
// unpacking follow the pattern of a single parsed ABI keyed by event name,
// the same shape a marketplace chain scanner uses to dispatch on
// log.Topics[0].
package chainlog

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/errs"
)

// exchangeABI is the minimal ABI surface the decoder needs from the
// Wyvern-style exchange contract: event signatures only, no methods.
const exchangeABI = `[
	{"type":"event","name":"OrderCancelled","anonymous":false,"inputs":[
		{"indexed":true,"name":"hash","type":"bytes32"}
	]},
	{"type":"event","name":"OrdersMatched","anonymous":false,"inputs":[
		{"indexed":true,"name":"buyHash","type":"bytes32"},
		{"indexed":true,"name":"sellHash","type":"bytes32"},
		{"indexed":false,"name":"maker","type":"address"},
		{"indexed":false,"name":"taker","type":"address"},
		{"indexed":false,"name":"price","type":"uint256"}
	]},
	{"type":"event","name":"NonceIncremented","anonymous":false,"inputs":[
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":false,"name":"newNonce","type":"uint256"}
	]}
]`

// tokenABI covers the ERC20/721/1155 transfer and approval events shared
// by every indexed contract.
const tokenABI = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"type":"event","name":"TransferSingle","anonymous":false,"inputs":[
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"id","type":"uint256"},
		{"indexed":false,"name":"value","type":"uint256"}
	]},
	{"type":"event","name":"ApprovalForAll","anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":false,"name":"approved","type":"bool"}
	]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"spender","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	]}
]`

// Decoder holds the parsed ABIs used to recognize and unpack eight event
// kinds: OrderCancelled, OrdersMatched, NonceIncremented, ERC721 and
// ERC20 Transfer, ERC1155 TransferSingle, ApprovalForAll and ERC20
// Approval. ERC1155 TransferBatch is not recognized; Decode returns nil,
// nil for it as for any other untracked topic.
type Decoder struct {
	exchange abi.ABI
	token    abi.ABI

	sigOrderCancelled   common.Hash
	sigOrdersMatched    common.Hash
	sigNonceIncremented common.Hash
	// sigTransfer is shared by ERC20 Transfer(address,address,uint256) and
	// ERC721 Transfer(address,address,uint256): indexed-ness of the third
	// argument doesn't change the topic0 hash, only the topic count (3 vs
	// 4), so the two are told apart by len(lg.Topics) at dispatch time.
	sigTransfer       common.Hash
	sigTransferSingle common.Hash
	sigApprovalForAll common.Hash
	sigApproval       common.Hash
}

// NewDecoder parses both ABIs once; callers should build one Decoder and
// reuse it for the lifetime of the ingestor.
func NewDecoder() (*Decoder, error) {
	exchangeParsed, err := abi.JSON(strings.NewReader(exchangeABI))
	if err != nil {
		return nil, fmt.Errorf("chainlog: parse exchange abi: %w", err)
	}
	tokenParsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		return nil, fmt.Errorf("chainlog: parse token abi: %w", err)
	}
	return &Decoder{
		exchange:            exchangeParsed,
		token:               tokenParsed,
		sigOrderCancelled:   exchangeParsed.Events["OrderCancelled"].ID,
		sigOrdersMatched:    exchangeParsed.Events["OrdersMatched"].ID,
		sigNonceIncremented: exchangeParsed.Events["NonceIncremented"].ID,
		sigTransfer:         tokenParsed.Events["Transfer"].ID,
		sigTransferSingle:   tokenParsed.Events["TransferSingle"].ID,
		sigApprovalForAll:   tokenParsed.Events["ApprovalForAll"].ID,
		sigApproval:         tokenParsed.Events["Approval"].ID,
	}, nil
}

// Decoded is a tagged union of every event kind the decoder can produce.
// Exactly one field is set, selected by Kind.
type Decoded struct {
	Kind             string
	OrderCancelled   *domain.OrderCancelledEvent
	OrdersMatched    *domain.OrdersMatchedEvent
	NonceIncremented *domain.NonceIncrementedEvent
	NFTTransfer      *domain.NFTTransferEvent
	NFTApproval      *domain.NFTApprovalEvent
	FTTransfer       *domain.FTTransferEvent
	FTApproval       *domain.FTApprovalEvent
}

// Decode dispatches a raw log on its first topic (the event signature),
// the same switch-on-Topics[0] shape a marketplace scanner's handleLog
// uses. Returns nil, nil for event kinds the indexer doesn't track
// (mirrors "logs for topics it doesn't recognize are
// ignored").
func (d *Decoder) Decode(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) == 0 {
		return nil, nil
	}
	sig := common.HexToHash(lg.Topics[0])

	switch sig {
	case d.sigOrderCancelled:
		return d.decodeOrderCancelled(lg)
	case d.sigOrdersMatched:
		return d.decodeOrdersMatched(lg)
	case d.sigNonceIncremented:
		return d.decodeNonceIncremented(lg)
	case d.sigTransfer:
		// ERC721's Transfer(address,address,uint256) hashes identically to
		// ERC20's: the tokenId argument being indexed only changes whether
		// it rides in topics (4 total) or data (3 total), so topic count is
		// the only reliable discriminator.
		if len(lg.Topics) >= 4 {
			return d.decodeNFTTransfer(lg)
		}
		return d.decodeFTTransfer(lg)
	case d.sigTransferSingle:
		return d.decodeTransferSingle(lg)
	case d.sigApprovalForAll:
		return d.decodeApprovalForAll(lg)
	case d.sigApproval:
		return d.decodeFTApproval(lg)
	default:
		return nil, nil
	}
}

func (d *Decoder) decodeOrderCancelled(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 2 {
		return nil, errs.Decode("chainlog: OrderCancelled missing hash topic", nil)
	}
	return &Decoded{Kind: "order_cancelled", OrderCancelled: &domain.OrderCancelledEvent{
		EventKey:  lg.EventKey,
		OrderHash: lg.Topics[1],
	}}, nil
}

func (d *Decoder) decodeOrdersMatched(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 3 {
		return nil, errs.Decode("chainlog: OrdersMatched missing hash topics", nil)
	}
	var data struct {
		Maker common.Address
		Taker common.Address
		Price *big.Int
	}
	if err := d.exchange.UnpackIntoInterface(&data, "OrdersMatched", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack OrdersMatched", err)
	}
	return &Decoded{Kind: "orders_matched", OrdersMatched: &domain.OrdersMatchedEvent{
		EventKey: lg.EventKey,
		BuyHash:  lg.Topics[1],
		SellHash: lg.Topics[2],
		Maker:    data.Maker.Hex(),
		Taker:    data.Taker.Hex(),
		Price:    data.Price,
	}}, nil
}

func (d *Decoder) decodeNonceIncremented(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 2 {
		return nil, errs.Decode("chainlog: NonceIncremented missing maker topic", nil)
	}
	var data struct {
		NewNonce *big.Int
	}
	if err := d.exchange.UnpackIntoInterface(&data, "NonceIncremented", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack NonceIncremented", err)
	}
	return &Decoded{Kind: "nonce_incremented", NonceIncremented: &domain.NonceIncrementedEvent{
		EventKey: lg.EventKey,
		Maker:    common.HexToAddress(lg.Topics[1]).Hex(),
		NewNonce: data.NewNonce,
	}}, nil
}

func (d *Decoder) decodeNFTTransfer(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 4 {
		return nil, errs.Decode("chainlog: ERC721 Transfer missing topics", nil)
	}
	return &Decoded{Kind: "nft_transfer", NFTTransfer: &domain.NFTTransferEvent{
		EventKey: lg.EventKey,
		Contract: lg.Address,
		From:     common.HexToAddress(lg.Topics[1]).Hex(),
		To:       common.HexToAddress(lg.Topics[2]).Hex(),
		TokenID:  common.HexToHash(lg.Topics[3]).Big(),
		Amount:   big.NewInt(1),
	}}, nil
}

func (d *Decoder) decodeTransferSingle(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 4 {
		return nil, errs.Decode("chainlog: TransferSingle missing topics", nil)
	}
	var data struct {
		ID    *big.Int
		Value *big.Int
	}
	if err := d.token.UnpackIntoInterface(&data, "TransferSingle", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack TransferSingle", err)
	}
	return &Decoded{Kind: "nft_transfer", NFTTransfer: &domain.NFTTransferEvent{
		EventKey: lg.EventKey,
		Contract: lg.Address,
		From:     common.HexToAddress(lg.Topics[2]).Hex(),
		To:       common.HexToAddress(lg.Topics[3]).Hex(),
		TokenID:  data.ID,
		Amount:   data.Value,
	}}, nil
}

func (d *Decoder) decodeApprovalForAll(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 3 {
		return nil, errs.Decode("chainlog: ApprovalForAll missing topics", nil)
	}
	var data struct {
		Approved bool
	}
	if err := d.token.UnpackIntoInterface(&data, "ApprovalForAll", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack ApprovalForAll", err)
	}
	return &Decoded{Kind: "nft_approval", NFTApproval: &domain.NFTApprovalEvent{
		EventKey: lg.EventKey,
		Contract: lg.Address,
		Owner:    common.HexToAddress(lg.Topics[1]).Hex(),
		Operator: common.HexToAddress(lg.Topics[2]).Hex(),
		Approved: data.Approved,
	}}, nil
}

func (d *Decoder) decodeFTTransfer(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 3 {
		return nil, errs.Decode("chainlog: ERC20 Transfer missing topics", nil)
	}
	var data struct {
		Value *big.Int
	}
	if err := d.token.UnpackIntoInterface(&data, "Transfer", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack Transfer", err)
	}
	return &Decoded{Kind: "ft_transfer", FTTransfer: &domain.FTTransferEvent{
		EventKey: lg.EventKey,
		Contract: lg.Address,
		From:     common.HexToAddress(lg.Topics[1]).Hex(),
		To:       common.HexToAddress(lg.Topics[2]).Hex(),
		Amount:   data.Value,
	}}, nil
}

func (d *Decoder) decodeFTApproval(lg domain.RawLog) (*Decoded, error) {
	if len(lg.Topics) < 3 {
		return nil, errs.Decode("chainlog: ERC20 Approval missing topics", nil)
	}
	var data struct {
		Value *big.Int
	}
	if err := d.token.UnpackIntoInterface(&data, "Approval", lg.Data); err != nil {
		return nil, errs.Decode("chainlog: unpack Approval", err)
	}
	return &Decoded{Kind: "ft_approval", FTApproval: &domain.FTApprovalEvent{
		EventKey: lg.EventKey,
		Contract: lg.Address,
		Owner:    common.HexToAddress(lg.Topics[1]).Hex(),
		Spender:  common.HexToAddress(lg.Topics[2]).Hex(),
		Amount:   data.Value,
	}}, nil
}
