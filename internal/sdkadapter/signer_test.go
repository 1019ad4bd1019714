package sdkadapter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftindexer/indexer/internal/domain"
)

// signHash signs the 32-byte digest the given order hash hex string
// represents, the same bytes VerifySignature recovers against.
func signHash(t *testing.T, hash string) ([]byte, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(common.HexToHash(hash).Bytes(), key)
	require.NoError(t, err)

	return sig, crypto.PubkeyToAddress(key.PublicKey).Hex()
}

func TestECDSASigner_VerifySignature_ValidSignatureMatchesMaker(t *testing.T) {
	order := &domain.Order{Hash: crypto.Keccak256Hash([]byte("order-1")).Hex()}
	sig, maker := signHash(t, order.Hash)
	order.Maker = maker

	ok, err := ECDSASigner{}.VerifySignature(order, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestECDSASigner_VerifySignature_WrongMakerFails(t *testing.T) {
	order := &domain.Order{Hash: crypto.Keccak256Hash([]byte("order-2")).Hex()}
	sig, _ := signHash(t, order.Hash)
	order.Maker = "0x000000000000000000000000000000deadbeef"

	ok, err := ECDSASigner{}.VerifySignature(order, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestECDSASigner_VerifySignature_RejectsWrongLengthSignature(t *testing.T) {
	order := &domain.Order{Hash: crypto.Keccak256Hash([]byte("order-3")).Hex(), Maker: "0xabc"}

	_, err := ECDSASigner{}.VerifySignature(order, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestECDSASigner_HashOrder_ReturnsAttachedHash(t *testing.T) {
	order := &domain.Order{Hash: "0xdeadbeef"}

	got, err := ECDSASigner{}.HashOrder(order)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", got)
}

func TestECDSASigner_HashOrder_ErrorsWithoutHash(t *testing.T) {
	order := &domain.Order{}

	_, err := ECDSASigner{}.HashOrder(order)
	assert.Error(t, err)
}
