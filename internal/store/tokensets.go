package store

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nftindexer/indexer/internal/domain"
)

// TokenSetMember is a single (contract, tokenId) pair belonging to a
// token set, mirroring tokenset.Membership without importing that
// package (store stays a leaf dependency).
type TokenSetMember struct {
	Contract string
	TokenID  *big.Int
}

// UpsertTokenSet writes a token set and its membership rows. Token sets
// are write-once by canonical id — a token set's membership never
// changes once created, a different membership gets a different id —
// so the INSERT is a plain DO NOTHING: if the id already exists its
// membership is assumed identical.
func (s *Store) UpsertTokenSet(ctx context.Context, ts *domain.TokenSet, members []TokenSetMember) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO token_sets (id, kind, contract, token_id, range_lo, range_hi, merkle_root, label, label_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, ts.ID, string(ts.Kind), ts.Contract, optionalBig(ts.TokenID), optionalBig(ts.RangeLo), optionalBig(ts.RangeHi),
		ts.MerkleRoot, ts.Label, ts.LabelHash)
	if err != nil {
		return fmt.Errorf("store: upsert token_set %s: %w", ts.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// already exists; membership is immutable for this id, nothing to do.
		return nil
	}
	for _, m := range members {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO token_sets_tokens (token_set_id, contract, token_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, ts.ID, m.Contract, m.TokenID.String()); err != nil {
			return fmt.Errorf("store: insert token_sets_tokens member for %s: %w", ts.ID, err)
		}
	}
	return nil
}

// GetTokenSet fetches a token set by canonical id. Returns nil, nil if
// not found.
func (s *Store) GetTokenSet(ctx context.Context, id string) (*domain.TokenSet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, kind, contract, token_id, range_lo, range_hi, merkle_root, label, label_hash
		FROM token_sets WHERE id = $1
	`, id)
	var ts domain.TokenSet
	var kind, tokenID, rangeLo, rangeHi string
	err := row.Scan(&ts.ID, &kind, &ts.Contract, &tokenID, &rangeLo, &rangeHi, &ts.MerkleRoot, &ts.Label, &ts.LabelHash)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get token_set %s: %w", id, err)
	}
	ts.Kind = domain.TokenSetKind(kind)
	ts.TokenID = parseOptionalBig(tokenID)
	ts.RangeLo = parseOptionalBig(rangeLo)
	ts.RangeHi = parseOptionalBig(rangeHi)
	return &ts, nil
}

func optionalBig(b *big.Int) string {
	if b == nil {
		return ""
	}
	return b.String()
}

func parseOptionalBig(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, _ := new(big.Int).SetString(s, 10)
	return v
}
