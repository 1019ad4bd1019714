package store

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nftindexer/indexer/internal/domain"
)

// BestBuy returns the highest-value fillable buy order for a token set,
// nil if none.
func (s *Store) BestBuy(ctx context.Context, tokenSetID string) (*domain.BestPrice, error) {
	return s.bestPrice(ctx, tokenSetID, domain.Buy, "DESC")
}

// BestSell returns the lowest-value fillable sell order for a token set,
// nil if none.
func (s *Store) BestSell(ctx context.Context, tokenSetID string) (*domain.BestPrice, error) {
	return s.bestPrice(ctx, tokenSetID, domain.Sell, "ASC")
}

func (s *Store) bestPrice(ctx context.Context, tokenSetID string, side domain.Side, order string) (*domain.BestPrice, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT hash, value FROM orders
		WHERE token_set_id = $1 AND side = $2 AND fillability_status = 'fillable' AND approval_status = 'approved'
		ORDER BY value::numeric %s
		LIMIT 1
	`, order), tokenSetID, string(side))
	var hash, value string
	if err := row.Scan(&hash, &value); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: best price for %s: %w", tokenSetID, err)
	}
	v, _ := new(big.Int).SetString(value, 10)
	return &domain.BestPrice{TokenSetID: tokenSetID, Side: side, Value: v, OrderHash: hash}, nil
}

// OrdersByMaker lists every non-terminal order for a maker, used by the
// query API.
func (s *Store) OrdersByMaker(ctx context.Context, maker string) ([]*domain.Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT hash, kind, side, maker, price, value, token_set_id, valid_from, valid_until,
		       nonce, fee_bps, taker_fee_bps, source_id, source_bps, conduit, quantity_remaining,
		       fillability_status, approval_status, created_at, updated_at, expiration
		FROM orders WHERE maker = $1 AND fillability_status NOT IN ('cancelled', 'filled')
	`, maker)
	if err != nil {
		return nil, fmt.Errorf("store: orders by maker: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// RegisterContract marks a contract as indexed, consulted by the intake
// filter.
func (s *Store) RegisterContract(ctx context.Context, address string, kind domain.ContractKind) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO contracts (address, kind) VALUES ($1, $2)
		ON CONFLICT (address) DO NOTHING
	`, address, string(kind))
	if err != nil {
		return fmt.Errorf("store: register contract: %w", err)
	}
	return nil
}

// IsIndexedContract reports whether address is a registered contract.
func (s *Store) IsIndexedContract(ctx context.Context, address string) (bool, error) {
	row := s.db.QueryRow(ctx, `SELECT 1 FROM contracts WHERE address = $1`, address)
	var one int
	if err := row.Scan(&one); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: is indexed contract: %w", err)
	}
	return true, nil
}
