package store

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nftindexer/indexer/internal/domain"
)

// scanner is satisfied by both pgx.Row and pgx.Rows, so a single scan
// routine serves GetOrder (QueryRow) and OrdersByMaker (Query).
type scanner interface {
	Scan(dest ...any) error
}

// UpsertOrder inserts or idempotently replays an order save: INSERT ...
// ON CONFLICT (hash) DO UPDATE, so replays are idempotent.
func (s *Store) UpsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO orders (
			hash, kind, side, maker, price, value, token_set_id, valid_from, valid_until,
			nonce, is_v23, fee_bps, taker_fee_bps, source_id, source_bps, conduit, quantity_remaining,
			raw_data, fillability_status, approval_status, created_at, updated_at, expiration
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21, $22
		)
		ON CONFLICT (hash) DO UPDATE SET
			price = EXCLUDED.price,
			value = EXCLUDED.value,
			token_set_id = EXCLUDED.token_set_id,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			nonce = EXCLUDED.nonce,
			fee_bps = EXCLUDED.fee_bps,
			taker_fee_bps = EXCLUDED.taker_fee_bps,
			source_id = EXCLUDED.source_id,
			source_bps = EXCLUDED.source_bps,
			conduit = EXCLUDED.conduit,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
	`,
		o.Hash, string(o.Kind), string(o.Side), o.Maker, o.Price.String(), o.Value.String(),
		o.TokenSetID, o.ValidFrom, o.ValidUntil, nonceString(o.Nonce), o.Kind.IsV23(), o.FeeBPS, o.TakerFeeBPS,
		o.SourceID, o.SourceBPS, o.Conduit, o.QuantityRemaining.String(), o.RawData,
		string(o.FillabilityStatus), string(o.ApprovalStatus), time.Now(), o.Expiration,
	)
	if err != nil {
		return fmt.Errorf("store: upsert order %s: %w", o.Hash, err)
	}
	return nil
}

func nonceString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// GetOrder fetches a single order by hash. Returns nil, nil if not found.
func (s *Store) GetOrder(ctx context.Context, hash string) (*domain.Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT hash, kind, side, maker, price, value, token_set_id, valid_from, valid_until,
		       nonce, fee_bps, taker_fee_bps, source_id, source_bps, conduit, quantity_remaining,
		       fillability_status, approval_status, created_at, updated_at, expiration
		FROM orders WHERE hash = $1
	`, hash)
	return scanOrder(row)
}

func scanOrder(row scanner) (*domain.Order, error) {
	o, err := scanOrderRows(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

// scanOrderRows scans a single order row, used both for GetOrder (single
// row) and for iterating OrdersByMaker's result set.
func scanOrderRows(row scanner) (*domain.Order, error) {
	var o domain.Order
	var price, value, nonce, qtyRemaining string
	var kind, side, fillability, approval string
	err := row.Scan(
		&o.Hash, &kind, &side, &o.Maker, &price, &value, &o.TokenSetID, &o.ValidFrom, &o.ValidUntil,
		&nonce, &o.FeeBPS, &o.TakerFeeBPS, &o.SourceID, &o.SourceBPS, &o.Conduit, &qtyRemaining,
		&fillability, &approval, &o.CreatedAt, &o.UpdatedAt, &o.Expiration,
	)
	if err != nil {
		return nil, fmt.Errorf("store: scan order: %w", err)
	}
	o.Kind = domain.OrderKind(kind)
	o.Side = domain.Side(side)
	o.FillabilityStatus = domain.FillabilityStatus(fillability)
	o.ApprovalStatus = domain.ApprovalStatus(approval)
	o.Price, _ = new(big.Int).SetString(price, 10)
	o.Value, _ = new(big.Int).SetString(value, 10)
	o.Nonce, _ = new(big.Int).SetString(nonce, 10)
	o.QuantityRemaining, _ = new(big.Int).SetString(qtyRemaining, 10)
	return &o, nil
}

// SetDerivedFields writes the authoritative single-order recomputation
// performed by the hash-update worker. Skips the write
// when nothing changed, preserving the "UPDATE ... WHERE new != old"
// discipline that keeps replays and re-triggers from generating noise.
func (s *Store) SetDerivedFields(ctx context.Context, hash string, fillability domain.FillabilityStatus, approval domain.ApprovalStatus, value *big.Int, expiration time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders SET
			fillability_status = $2,
			approval_status = $3,
			value = $4,
			expiration = $5,
			updated_at = now()
		WHERE hash = $1
		  AND (fillability_status != $2 OR approval_status != $3 OR value != $4 OR expiration != $5)
	`, hash, string(fillability), string(approval), value.String(), expiration)
	if err != nil {
		return fmt.Errorf("store: set derived fields for %s: %w", hash, err)
	}
	return nil
}

// RecheckSellBalance re-derives fillability for every sell order by maker
// whose token set contains (contract, tokenId). A sell order stays
// fillable only while the maker's balance covers its own remaining
// quantity (relevant for ERC1155 orders listing more than one unit).
// Escrowed kinds (foundation, cryptopunks) are skipped because the
// listed token is already held by the exchange. Returns the hashes of
// every order actually touched, so the caller can chase the write with
// a hash-update job.
func (s *Store) RecheckSellBalance(ctx context.Context, maker, contract string, tokenID *big.Int, balance *big.Int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		WITH candidates AS (
			SELECT o.hash, o.fillability_status, o.valid_until, o.quantity_remaining
			FROM orders o
			JOIN token_sets_tokens tst ON tst.token_set_id = o.token_set_id
			WHERE o.maker = $1 AND o.side = 'sell'
			  AND tst.contract = $2 AND tst.token_id = $3
			  AND o.fillability_status IN ('fillable', 'no-balance')
			  AND o.kind NOT IN ('foundation-single-token', 'cryptopunks-single-token')
		),
		computed AS (
			SELECT hash,
			       CASE WHEN $4::numeric >= quantity_remaining::numeric THEN 'fillable' ELSE 'no-balance' END AS new_status
			FROM candidates
		),
		updated AS (
			UPDATE orders o
			SET fillability_status = computed.new_status,
			    expiration = CASE WHEN computed.new_status = 'fillable' THEN o.valid_until ELSE now() END,
			    updated_at = now()
			FROM computed
			WHERE o.hash = computed.hash AND o.fillability_status != computed.new_status
			RETURNING o.hash
		)
		SELECT hash FROM updated
	`, maker, contract, tokenID.String(), balance.String())
	if err != nil {
		return nil, fmt.Errorf("store: recheck sell balance: %w", err)
	}
	return scanHashes(rows)
}

// RecheckSellApproval re-derives approval_status for every sell order by
// maker on contract whose conduit matches operator.
func (s *Store) RecheckSellApproval(ctx context.Context, maker, contract, operator string, approved bool) ([]string, error) {
	newStatus := domain.NoApproval
	if approved {
		newStatus = domain.Approved
	}
	rows, err := s.db.Query(ctx, `
		WITH candidates AS (
			SELECT o.hash
			FROM orders o
			JOIN token_sets_tokens tst ON tst.token_set_id = o.token_set_id
			WHERE o.maker = $1 AND o.side = 'sell' AND tst.contract = $2 AND o.conduit = $3
			  AND o.fillability_status IN ('fillable', 'no-balance')
		),
		updated AS (
			UPDATE orders o
			SET approval_status = $4, updated_at = now()
			FROM candidates c
			WHERE o.hash = c.hash AND o.approval_status != $4
			RETURNING o.hash
		)
		SELECT hash FROM updated
	`, maker, contract, operator, string(newStatus))
	if err != nil {
		return nil, fmt.Errorf("store: recheck sell approval: %w", err)
	}
	return scanHashes(rows)
}

// RecheckBuyBalance re-derives fillability for every live buy order by
// maker against balance. The contract argument is not used in the query,
// so buy orders are not narrowed to those paying in that ERC20 contract.
func (s *Store) RecheckBuyBalance(ctx context.Context, maker, contract string, balance *big.Int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		WITH updated AS (
			UPDATE orders o
			SET fillability_status = CASE WHEN $2::numeric >= o.price::numeric THEN 'fillable' ELSE 'no-balance' END,
			    expiration = CASE WHEN $2::numeric >= o.price::numeric THEN o.valid_until ELSE now() END,
			    updated_at = now()
			WHERE o.maker = $1 AND o.side = 'buy'
			  AND o.fillability_status IN ('fillable', 'no-balance')
			  AND (
			    ($2::numeric >= o.price::numeric AND o.fillability_status = 'no-balance') OR
			    ($2::numeric < o.price::numeric AND o.fillability_status = 'fillable')
			  )
			RETURNING o.hash
		)
		SELECT hash FROM updated
	`, maker, balance.String())
	if err != nil {
		return nil, fmt.Errorf("store: recheck buy balance: %w", err)
	}
	return scanHashes(rows)
}

// RecheckBuyApproval re-derives approval_status for every buy order by
// maker whose conduit matches operator.
func (s *Store) RecheckBuyApproval(ctx context.Context, maker, contract, operator string, allowance *big.Int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		WITH updated AS (
			UPDATE orders o
			SET approval_status = CASE
			      WHEN $3::numeric >= (o.price::numeric * o.fee_bps / 10000) THEN 'approved'
			      ELSE 'no-approval'
			    END,
			    updated_at = now()
			WHERE o.maker = $1 AND o.side = 'buy' AND o.conduit = $2
			  AND o.fillability_status IN ('fillable', 'no-balance')
			RETURNING o.hash
		)
		SELECT hash FROM updated
	`, maker, operator, allowance.String())
	if err != nil {
		return nil, fmt.Errorf("store: recheck buy approval: %w", err)
	}
	return scanHashes(rows)
}

// ConduitsForMakerKind returns the distinct conduits used by a maker's
// orders of a given kind, used to fan out one buy-approval job per
// conduit when a transfer-induced recheck doesn't name one directly.
func (s *Store) ConduitsForMakerKind(ctx context.Context, maker string, kind domain.OrderKind) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT conduit FROM orders WHERE maker = $1 AND kind = $2 AND conduit != ''
	`, maker, string(kind))
	if err != nil {
		return nil, fmt.Errorf("store: conduits for maker kind: %w", err)
	}
	defer rows.Close()
	var conduits []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("store: scan conduit: %w", err)
		}
		conduits = append(conduits, c)
	}
	return conduits, rows.Err()
}

// ApplyFill subtracts fillAmount from quantity_remaining; if the
// remainder is zero the order is marked filled, otherwise the caller
// should follow up with a hash-update to re-evaluate fillability.
func (s *Store) ApplyFill(ctx context.Context, hash string, fillAmount *big.Int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders SET
			quantity_remaining = GREATEST(quantity_remaining - $2::numeric, 0),
			fillability_status = CASE
			  WHEN quantity_remaining - $2::numeric <= 0 THEN 'filled'
			  ELSE fillability_status
			END,
			updated_at = now()
		WHERE hash = $1
	`, hash, fillAmount.String())
	if err != nil {
		return fmt.Errorf("store: apply fill to %s: %w", hash, err)
	}
	return nil
}

// MarkCancelled is used by the hash-update worker when it finds the
// order's hash present in the cancel-event log.
func (s *Store) MarkCancelled(ctx context.Context, hash string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE orders SET fillability_status = 'cancelled', updated_at = now()
		WHERE hash = $1 AND fillability_status NOT IN ('cancelled', 'filled')
	`, hash)
	if err != nil {
		return fmt.Errorf("store: mark cancelled %s: %w", hash, err)
	}
	return nil
}

func scanHashes(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("store: scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
