// Package sdkadapter is the integration seam between the intake
// filter's trusted Signer dependency — order hashing and signature
// verification, assumed as a trusted library — and a concrete
// implementation. Order hash computation itself — the Wyvern-specific
// EIP-712 typed-data encoding of an order's fields — belongs to the
// marketplace SDK this repository does not carry; this adapter trusts
// the hash the caller already attached to the order and verifies only
// that the signature recovers to the order's maker address, using
// go-ethereum's secp256k1 implementation.
package sdkadapter

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nftindexer/indexer/internal/domain"
)

// ECDSASigner verifies order signatures via ECDSA public-key recovery.
type ECDSASigner struct{}

// NewECDSASigner constructs a signer.
func NewECDSASigner() *ECDSASigner {
	return &ECDSASigner{}
}

// VerifySignature recovers the signer from a 65-byte (r||s||v) signature
// over order.Hash and checks it matches order.Maker.
func (ECDSASigner) VerifySignature(order *domain.Order, signature []byte) (bool, error) {
	if len(signature) != 65 {
		return false, fmt.Errorf("sdkadapter: signature must be 65 bytes, got %d", len(signature))
	}
	hash := common.HexToHash(order.Hash)

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false, fmt.Errorf("sdkadapter: recover public key: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	return recovered == common.HexToAddress(order.Maker), nil
}

// HashOrder returns the hash the caller already computed and attached
// to the order. Recomputing a Wyvern order's EIP-712 typed-data hash
// from its raw fields is the marketplace SDK's job, not
// this adapter's.
func (ECDSASigner) HashOrder(order *domain.Order) (string, error) {
	if order.Hash == "" {
		return "", fmt.Errorf("sdkadapter: order has no hash to verify against")
	}
	return order.Hash, nil
}
