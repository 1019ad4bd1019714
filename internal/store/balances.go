package store

import (
	"context"
	"fmt"
	"math/big"
)

// UpsertNFTBalance projects the latest ERC721/1155 balance for
// (owner, contract, tokenId), derived by the ingestor from Transfer,
// TransferSingle, and TransferBatch events. Returns whether the stored
// value actually changed, so callers can skip the recheck fan-out when it
// didn't.
func (s *Store) UpsertNFTBalance(ctx context.Context, owner, contract string, tokenID *big.Int, amount *big.Int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO nft_balances (owner, contract, token_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner, contract, token_id) DO UPDATE
		SET amount = EXCLUDED.amount
		WHERE nft_balances.amount != EXCLUDED.amount
	`, owner, contract, tokenID.String(), amount.String())
	if err != nil {
		return false, fmt.Errorf("store: upsert nft_balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// NFTBalance reads the current balance for (owner, contract, tokenId).
func (s *Store) NFTBalance(ctx context.Context, owner, contract string, tokenID *big.Int) (*big.Int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT amount FROM nft_balances WHERE owner = $1 AND contract = $2 AND token_id = $3
	`, owner, contract, tokenID.String())
	var amount string
	if err := row.Scan(&amount); err != nil {
		if isNoRows(err) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("store: read nft_balance: %w", err)
	}
	v, _ := new(big.Int).SetString(amount, 10)
	return v, nil
}

// UpsertFTBalance projects the latest ERC20 balance for (owner, contract),
// used by buy-side balance rechecks.
func (s *Store) UpsertFTBalance(ctx context.Context, owner, contract string, amount *big.Int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO ft_balances (owner, contract, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, contract) DO UPDATE
		SET amount = EXCLUDED.amount
		WHERE ft_balances.amount != EXCLUDED.amount
	`, owner, contract, amount.String())
	if err != nil {
		return false, fmt.Errorf("store: upsert ft_balance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FTBalance reads the current ERC20 balance for (owner, contract).
func (s *Store) FTBalance(ctx context.Context, owner, contract string) (*big.Int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT amount FROM ft_balances WHERE owner = $1 AND contract = $2
	`, owner, contract)
	var amount string
	if err := row.Scan(&amount); err != nil {
		if isNoRows(err) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("store: read ft_balance: %w", err)
	}
	v, _ := new(big.Int).SetString(amount, 10)
	return v, nil
}

// NFTApproval reads the current ApprovalForAll flag projected by
// InsertNFTApproval.
func (s *Store) NFTApproval(ctx context.Context, owner, operator, contract string) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT approved FROM nft_approvals WHERE owner = $1 AND operator = $2 AND contract = $3
	`, owner, operator, contract)
	var approved bool
	if err := row.Scan(&approved); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: read nft_approval: %w", err)
	}
	return approved, nil
}

// FTAllowance reads the current ERC20 allowance projected by
// InsertFTApproval.
func (s *Store) FTAllowance(ctx context.Context, owner, spender, contract string) (*big.Int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT amount FROM ft_allowances WHERE owner = $1 AND spender = $2 AND contract = $3
	`, owner, spender, contract)
	var amount string
	if err := row.Scan(&amount); err != nil {
		if isNoRows(err) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("store: read ft_allowance: %w", err)
	}
	v, _ := new(big.Int).SetString(amount, 10)
	return v, nil
}

// RegisterProxy caches a maker's registered conduit/proxy contract, which
// ProxyFor reads back without an RPC round trip.
func (s *Store) RegisterProxy(ctx context.Context, owner, proxy string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO proxy_registrations (owner, proxy)
		VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET proxy = EXCLUDED.proxy
		WHERE proxy_registrations.proxy != EXCLUDED.proxy
	`, owner, proxy)
	if err != nil {
		return fmt.Errorf("store: register proxy: %w", err)
	}
	return nil
}

// ProxyFor reads a maker's cached proxy/conduit contract, empty string if
// none registered.
func (s *Store) ProxyFor(ctx context.Context, owner string) (string, error) {
	row := s.db.QueryRow(ctx, `SELECT proxy FROM proxy_registrations WHERE owner = $1`, owner)
	var proxy string
	if err := row.Scan(&proxy); err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("store: read proxy: %w", err)
	}
	return proxy, nil
}
