package store

import (
	"context"
	"fmt"

	"github.com/nftindexer/indexer/internal/domain"
)

// InsertOrderCancelled appends an OrderCancelled row. Re-delivery of the
// same (blockHash, txHash, logIndex) is a no-op.
// Returns true if a new row was actually inserted, so callers can decide
// whether to enqueue a downstream trigger.
func (s *Store) InsertOrderCancelled(ctx context.Context, e domain.OrderCancelledEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO order_cancelled_events (block_hash, tx_hash, log_index, block, order_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.OrderHash)
	if err != nil {
		return false, fmt.Errorf("store: insert order_cancelled_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsOrderCancelled reports whether hash has a row in order_cancelled_events,
// the authoritative cancel-event log the hash-update worker consults before
// deriving fillability from balances.
func (s *Store) IsOrderCancelled(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_cancelled_events WHERE order_hash = $1)
	`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: is order cancelled %s: %w", hash, err)
	}
	return exists, nil
}

// InsertOrdersMatched appends an OrdersMatched row.
func (s *Store) InsertOrdersMatched(ctx context.Context, e domain.OrdersMatchedEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO orders_matched_events (block_hash, tx_hash, log_index, block, buy_hash, sell_hash, maker, taker, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.BuyHash, e.SellHash, e.Maker, e.Taker, e.Price.String())
	if err != nil {
		return false, fmt.Errorf("store: insert orders_matched_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertNFTTransfer appends an NFT Transfer/TransferSingle row.
func (s *Store) InsertNFTTransfer(ctx context.Context, e domain.NFTTransferEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO nft_transfer_events (block_hash, tx_hash, log_index, block, contract, "from", "to", token_id, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.Contract, e.From, e.To, e.TokenID.String(), e.Amount.String())
	if err != nil {
		return false, fmt.Errorf("store: insert nft_transfer_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertNFTApproval appends an ApprovalForAll row and projects it onto the
// current-state nft_approvals table in the same statement via a CTE, so the
// "latest-per-(owner,operator)" projection is always derivable without a
// second round trip.
func (s *Store) InsertNFTApproval(ctx context.Context, e domain.NFTApprovalEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		WITH inserted AS (
			INSERT INTO nft_approval_events (block_hash, tx_hash, log_index, block, contract, owner, operator, approved)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
			RETURNING contract, owner, operator, approved
		)
		INSERT INTO nft_approvals (contract, owner, operator, approved)
		SELECT contract, owner, operator, approved FROM inserted
		ON CONFLICT (contract, owner, operator) DO UPDATE
		SET approved = EXCLUDED.approved
		WHERE nft_approvals.approved != EXCLUDED.approved
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.Contract, e.Owner, e.Operator, e.Approved)
	if err != nil {
		return false, fmt.Errorf("store: insert nft_approval_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertFTTransfer appends an ERC20 Transfer row.
func (s *Store) InsertFTTransfer(ctx context.Context, e domain.FTTransferEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO ft_transfer_events (block_hash, tx_hash, log_index, block, contract, "from", "to", amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.Contract, e.From, e.To, e.Amount.String())
	if err != nil {
		return false, fmt.Errorf("store: insert ft_transfer_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertFTApproval appends an ERC20 Approval row and projects current
// allowance the same way InsertNFTApproval projects current approval.
func (s *Store) InsertFTApproval(ctx context.Context, e domain.FTApprovalEvent) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		WITH inserted AS (
			INSERT INTO ft_approval_events (block_hash, tx_hash, log_index, block, contract, owner, spender, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
			RETURNING contract, owner, spender, amount
		)
		INSERT INTO ft_allowances (contract, owner, spender, amount)
		SELECT contract, owner, spender, amount FROM inserted
		ON CONFLICT (contract, owner, spender) DO UPDATE
		SET amount = EXCLUDED.amount
		WHERE ft_allowances.amount != EXCLUDED.amount
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.Contract, e.Owner, e.Spender, e.Amount.String())
	if err != nil {
		return false, fmt.Errorf("store: insert ft_approval_event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertFill appends a fills-history row.
func (s *Store) InsertFill(ctx context.Context, f domain.FillRecord) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO fills (block_hash, tx_hash, log_index, block, buy_hash, sell_hash, maker, taker, price, fill_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
	`, f.BlockHash, f.TxHash, f.LogIndex, f.Block, f.BuyHash, f.SellHash, f.Maker, f.Taker, f.Price.String(), f.FillAmount.String())
	if err != nil {
		return false, fmt.Errorf("store: insert fill: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// NonceIncrementedResult carries the hashes of every order the bulk-cancel
// touched, so the caller can enqueue one hash-update job per hash.
type NonceIncrementedResult struct {
	Inserted bool
	Hashes   []string
}

// InsertNonceIncremented appends a NonceIncremented row and, in the same
// statement, cancels every v2.3 order of that maker with nonce below the
// new value.
func (s *Store) InsertNonceIncremented(ctx context.Context, e domain.NonceIncrementedEvent) (*NonceIncrementedResult, error) {
	rows, err := s.db.Query(ctx, `
		WITH inserted AS (
			INSERT INTO nonce_incremented_events (block_hash, tx_hash, log_index, block, maker, new_nonce)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (block_hash, tx_hash, log_index) DO NOTHING
			RETURNING maker, new_nonce
		),
		cancelled AS (
			UPDATE orders o
			SET fillability_status = 'cancelled', updated_at = now()
			FROM inserted i
			WHERE o.maker = i.maker
			  AND o.is_v23
			  AND o.nonce < i.new_nonce
			  AND o.fillability_status NOT IN ('cancelled', 'filled')
			RETURNING o.hash
		)
		SELECT hash FROM cancelled
	`, e.BlockHash, e.TxHash, e.LogIndex, e.Block, e.Maker, e.NewNonce.String())
	if err != nil {
		return nil, fmt.Errorf("store: insert nonce_incremented_event: %w", err)
	}
	defer rows.Close()

	result := &NonceIncrementedResult{}
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("store: scan cancelled hash: %w", err)
		}
		result.Hashes = append(result.Hashes, hash)
		result.Inserted = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate cancelled hashes: %w", err)
	}
	return result, nil
}

// OrderHashesForBlockHash returns every order hash referenced by an
// OrderCancelled or OrdersMatched event row tagged with blockHash, used by
// the reorg handler to discover affected orders before deleting the
// events. Orders cancelled through a NonceIncremented row are not
// included.
func (s *Store) OrderHashesForBlockHash(ctx context.Context, blockHash string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT order_hash FROM order_cancelled_events WHERE block_hash = $1
		UNION
		SELECT DISTINCT buy_hash FROM orders_matched_events WHERE block_hash = $1
		UNION
		SELECT DISTINCT sell_hash FROM orders_matched_events WHERE block_hash = $1
	`, blockHash)
	if err != nil {
		return nil, fmt.Errorf("store: order hashes for block hash: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("store: scan order hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// DeleteEventsForBlockHash deletes every event row tagged with blockHash
// across all event tables and the fills table, one DELETE statement per
// table. The statements do not share a transaction: a failure part-way
// leaves the tables before it already cleared. It deletes only the rows
// with that blockHash, never cross-block state.
func (s *Store) DeleteEventsForBlockHash(ctx context.Context, blockHash string) error {
	tables := []string{
		"order_cancelled_events", "orders_matched_events", "nonce_incremented_events",
		"nft_transfer_events", "nft_approval_events", "ft_transfer_events",
		"ft_approval_events", "fills",
	}
	for _, table := range tables {
		if _, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE block_hash = $1`, table), blockHash); err != nil {
			return fmt.Errorf("store: delete %s for block hash: %w", table, err)
		}
	}
	return nil
}
