package chainlog

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
)

func packUint256(t *testing.T, v *big.Int) []byte {
	t.Helper()
	uint256Ty, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	args := abi.Arguments{{Type: uint256Ty}}
	data, err := args.Pack(v)
	require.NoError(t, err)
	return data
}

func TestDecode_OrderCancelled(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	lg := domain.RawLog{
		Address: "0xexchange",
		Topics:  []string{d.sigOrderCancelled.Hex(), "0xaaaa"},
		EventKey: domain.EventKey{BlockHash: "0xb", TxHash: "0xt", LogIndex: 1, Block: 5},
	}
	decoded, err := d.Decode(lg)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, "order_cancelled", decoded.Kind)
	assert.Equal(t, "0xaaaa", decoded.OrderCancelled.OrderHash)
}

func TestDecode_ERC20TransferVsERC721Transfer_ByTopicCount(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	from := common.HexToHash("0x000000000000000000000000000000000000000000000000000000000000aa")
	to := common.HexToHash("0x000000000000000000000000000000000000000000000000000000000000bb")

	ftLog := domain.RawLog{
		Address:  "0xtoken",
		Topics:   []string{d.sigTransfer.Hex(), from.Hex(), to.Hex()},
		Data:     packUint256(t, big.NewInt(1000)),
		EventKey: domain.EventKey{BlockHash: "0xb", TxHash: "0xt", LogIndex: 0, Block: 1},
	}
	decoded, err := d.Decode(ftLog)
	require.NoError(t, err)
	require.NotNil(t, decoded.FTTransfer)
	assert.Equal(t, "1000", decoded.FTTransfer.Amount.String())

	tokenIDTopic := common.BigToHash(big.NewInt(42))
	nftLog := domain.RawLog{
		Address:  "0xnft",
		Topics:   []string{d.sigTransfer.Hex(), from.Hex(), to.Hex(), tokenIDTopic.Hex()},
		EventKey: domain.EventKey{BlockHash: "0xb", TxHash: "0xt2", LogIndex: 0, Block: 1},
	}
	decoded, err = d.Decode(nftLog)
	require.NoError(t, err)
	require.NotNil(t, decoded.NFTTransfer)
	assert.Equal(t, "42", decoded.NFTTransfer.TokenID.String())
	assert.Equal(t, "1", decoded.NFTTransfer.Amount.String())
}

func TestDecode_UnknownTopic_ReturnsNil(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	lg := domain.RawLog{Topics: []string{common.HexToHash("0xdeadbeef").Hex()}}
	decoded, err := d.Decode(lg)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecode_NoTopics_ReturnsNil(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	decoded, err := d.Decode(domain.RawLog{})
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
