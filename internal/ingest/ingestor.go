// Package ingest implements the event ingestor: it pulls batches of
// chain logs from an event source, decodes each one, appends it to the
// matching append-only event table, and schedules whatever downstream
// worker the event kind calls for. Event delivery is idempotent — the
// store's ON CONFLICT DO NOTHING on (blockHash, txHash, logIndex) makes
// redelivery of the same log a no-op.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/nftindexer/indexer/internal/chainlog"
	"github.com/nftindexer/indexer/internal/config"
	"github.com/nftindexer/indexer/internal/domain"
	"github.com/nftindexer/indexer/internal/queue"
	"github.com/nftindexer/indexer/internal/store"
)

// Source abstracts the chain's event feed: blockchain RPC transport is
// assumed as an external interface. An adapter around go-ethereum's
// ethclient.FilterLogs lives outside this package.
type Source interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLog, error)
	// Reorgs reports block hashes the source has determined are no longer
	// canonical, delivered via a callback the source invokes on fix signals.
	Reorgs() <-chan string
}

// Store is the subset of *store.Store the ingestor writes through.
type Store interface {
	InsertOrderCancelled(ctx context.Context, e domain.OrderCancelledEvent) (bool, error)
	InsertOrdersMatched(ctx context.Context, e domain.OrdersMatchedEvent) (bool, error)
	InsertNonceIncremented(ctx context.Context, e domain.NonceIncrementedEvent) (*store.NonceIncrementedResult, error)
	InsertNFTTransfer(ctx context.Context, e domain.NFTTransferEvent) (bool, error)
	InsertNFTApproval(ctx context.Context, e domain.NFTApprovalEvent) (bool, error)
	InsertFTTransfer(ctx context.Context, e domain.FTTransferEvent) (bool, error)
	InsertFTApproval(ctx context.Context, e domain.FTApprovalEvent) (bool, error)
	GetOrder(ctx context.Context, hash string) (*domain.Order, error)
}

// Enqueuer is the subset of *queue.Queue the ingestor schedules jobs on.
type Enqueuer interface {
	EnqueueHashUpdate(ctx context.Context, orderHash string) error
	EnqueueMakerUpdate(ctx context.Context, t queue.MakerUpdateTrigger) error
	EnqueueFillApplied(ctx context.Context, blockHash, txHash string, logIndex int, payload []byte) error
	EnqueueReorg(ctx context.Context, blockHash string) error
}

// Ingestor drives the decode-append-trigger loop.
type Ingestor struct {
	source  Source
	decoder *chainlog.Decoder
	store   Store
	queue   Enqueuer
	cfg     config.IngestConfig
	logger  *slog.Logger
}

// New constructs an event ingestor.
func New(source Source, decoder *chainlog.Decoder, store Store, q Enqueuer, cfg config.IngestConfig, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		source:  source,
		decoder: decoder,
		store:   store,
		queue:   q,
		cfg:     cfg,
		logger:  logger.With("component", "ingestor"),
	}
}

// Run polls the source on cfg.PollInterval, processing newly confirmed
// blocks in batches of at most cfg.MaxBatchBlocks (the same bounded-batch
// shape a marketplace log scanner uses to avoid RPC "limit exceeded"
// errors). Blocks until ctx is cancelled.
func (ig *Ingestor) Run(ctx context.Context) error {
	last, err := ig.startingBlock(ctx)
	if err != nil {
		return fmt.Errorf("ingest: determine starting block: %w", err)
	}
	ig.logger.Info("ingestor starting", "from_block", last, "backfill", ig.cfg.Backfill)

	ticker := time.NewTicker(ig.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case blockHash := <-ig.source.Reorgs():
			if err := ig.queue.EnqueueReorg(ctx, blockHash); err != nil {
				ig.logger.Error("enqueue reorg failed", "block_hash", blockHash, "error", err)
			}
		case <-ticker.C:
			next, err := ig.poll(ctx, last)
			if err != nil {
				ig.logger.Error("poll failed", "error", err)
				continue
			}
			last = next
		}
	}
}

func (ig *Ingestor) startingBlock(ctx context.Context) (uint64, error) {
	if ig.cfg.Backfill {
		return 0, nil
	}
	return ig.source.LatestBlock(ctx)
}

// poll processes every block in (last, latest], in batches of at most
// MaxBatchBlocks, and returns the new high-water mark.
func (ig *Ingestor) poll(ctx context.Context, last uint64) (uint64, error) {
	latest, err := ig.source.LatestBlock(ctx)
	if err != nil {
		return last, fmt.Errorf("ingest: latest block: %w", err)
	}
	if latest <= last {
		return last, nil
	}

	batch := ig.cfg.MaxBatchBlocks
	if batch == 0 {
		batch = 1
	}

	from := last + 1
	for from <= latest {
		to := from + batch - 1
		if to > latest {
			to = latest
		}

		logs, err := ig.source.FilterLogs(ctx, from, to)
		if err != nil {
			return last, fmt.Errorf("ingest: filter logs %d-%d: %w", from, to, err)
		}
		for _, lg := range logs {
			if err := ig.handleLog(ctx, lg); err != nil {
				ig.logger.Error("handle log failed", "error", err,
					"block_hash", lg.BlockHash, "tx_hash", lg.TxHash, "log_index", lg.LogIndex)
			}
		}

		last = to
		from = to + 1
	}
	return last, nil
}

// handleLog decodes one log and routes it to its store append + trigger
// jobs. A decode failure is logged and skipped, never fatal.
func (ig *Ingestor) handleLog(ctx context.Context, lg domain.RawLog) error {
	decoded, err := ig.decoder.Decode(lg)
	if err != nil {
		ig.logger.Warn("decode failed, skipping log", "error", err,
			"tx_hash", lg.TxHash, "log_index", lg.LogIndex)
		return nil
	}
	if decoded == nil {
		return nil
	}

	switch {
	case decoded.OrderCancelled != nil:
		return ig.handleOrderCancelled(ctx, *decoded.OrderCancelled)
	case decoded.OrdersMatched != nil:
		return ig.handleOrdersMatched(ctx, *decoded.OrdersMatched)
	case decoded.NonceIncremented != nil:
		return ig.handleNonceIncremented(ctx, *decoded.NonceIncremented)
	case decoded.NFTTransfer != nil:
		return ig.handleNFTTransfer(ctx, *decoded.NFTTransfer)
	case decoded.NFTApproval != nil:
		return ig.handleNFTApproval(ctx, *decoded.NFTApproval)
	case decoded.FTTransfer != nil:
		return ig.handleFTTransfer(ctx, *decoded.FTTransfer)
	case decoded.FTApproval != nil:
		return ig.handleFTApproval(ctx, *decoded.FTApproval)
	}
	return nil
}

func (ig *Ingestor) handleOrderCancelled(ctx context.Context, e domain.OrderCancelledEvent) error {
	inserted, err := ig.store.InsertOrderCancelled(ctx, e)
	if err != nil {
		return fmt.Errorf("insert order_cancelled: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}
	return ig.queue.EnqueueHashUpdate(ctx, e.OrderHash)
}

func (ig *Ingestor) handleOrdersMatched(ctx context.Context, e domain.OrdersMatchedEvent) error {
	inserted, err := ig.store.InsertOrdersMatched(ctx, e)
	if err != nil {
		return fmt.Errorf("insert orders_matched: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}

	amount := ig.fillAmount(ctx, e)
	payload, err := json.Marshal(struct {
		Event      domain.OrdersMatchedEvent `json:"event"`
		FillAmount string                    `json:"fill_amount"`
	}{Event: e, FillAmount: amount.String()})
	if err != nil {
		return fmt.Errorf("marshal fill-handler payload: %w", err)
	}

	if err := ig.queue.EnqueueFillApplied(ctx, e.BlockHash, e.TxHash, e.LogIndex, payload); err != nil {
		return fmt.Errorf("enqueue fill-handler: %w", err)
	}
	if err := ig.queue.EnqueueHashUpdate(ctx, e.BuyHash); err != nil {
		return fmt.Errorf("enqueue hash-update for buy leg: %w", err)
	}
	return ig.queue.EnqueueHashUpdate(ctx, e.SellHash)
}

// fillAmount determines how much of each leg's remaining quantity this
// match consumes. Wyvern-style orders are matched atomically against
// whatever is left on each side, so the amount filled is the smaller of
// the two remaining quantities at match time; unmatched 1/1 orders (the
// common case) always yield 1.
func (ig *Ingestor) fillAmount(ctx context.Context, e domain.OrdersMatchedEvent) *big.Int {
	amount := big.NewInt(1)
	buy, err := ig.store.GetOrder(ctx, e.BuyHash)
	if err == nil && buy != nil && buy.QuantityRemaining != nil {
		amount = new(big.Int).Set(buy.QuantityRemaining)
	}
	sell, err := ig.store.GetOrder(ctx, e.SellHash)
	if err == nil && sell != nil && sell.QuantityRemaining != nil {
		if sell.QuantityRemaining.Cmp(amount) < 0 {
			amount = new(big.Int).Set(sell.QuantityRemaining)
		}
	}
	return amount
}

func (ig *Ingestor) handleNonceIncremented(ctx context.Context, e domain.NonceIncrementedEvent) error {
	result, err := ig.store.InsertNonceIncremented(ctx, e)
	if err != nil {
		return fmt.Errorf("insert nonce_incremented: %w", err)
	}
	if ig.cfg.Backfill {
		return nil
	}
	for _, hash := range result.Hashes {
		if err := ig.queue.EnqueueHashUpdate(ctx, hash); err != nil {
			return fmt.Errorf("enqueue hash-update for bulk-cancelled order %s: %w", hash, err)
		}
	}
	return nil
}

// handleNFTTransfer triggers a sell-balance recheck for both sides of
// the transfer: the sender may have dropped below what their sell
// orders need, the receiver may have newly acquired enough to fill
// theirs.
func (ig *Ingestor) handleNFTTransfer(ctx context.Context, e domain.NFTTransferEvent) error {
	inserted, err := ig.store.InsertNFTTransfer(ctx, e)
	if err != nil {
		return fmt.Errorf("insert nft_transfer: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}
	for _, maker := range distinctNonZero(e.From, e.To) {
		if err := ig.queue.EnqueueMakerUpdate(ctx, queue.MakerUpdateTrigger{
			Variant:  "sell-balance",
			Maker:    maker,
			Contract: e.Contract,
			TokenID:  e.TokenID.String(),
		}); err != nil {
			return fmt.Errorf("enqueue sell-balance trigger for %s: %w", maker, err)
		}
	}
	return nil
}

func (ig *Ingestor) handleNFTApproval(ctx context.Context, e domain.NFTApprovalEvent) error {
	inserted, err := ig.store.InsertNFTApproval(ctx, e)
	if err != nil {
		return fmt.Errorf("insert nft_approval: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}
	return ig.queue.EnqueueMakerUpdate(ctx, queue.MakerUpdateTrigger{
		Variant:  "sell-approval",
		Maker:    e.Owner,
		Contract: e.Contract,
		Operator: e.Operator,
	})
}

// handleFTTransfer triggers a buy-balance recheck for both legs, the
// same way an NFT transfer does for sell-balance.
func (ig *Ingestor) handleFTTransfer(ctx context.Context, e domain.FTTransferEvent) error {
	inserted, err := ig.store.InsertFTTransfer(ctx, e)
	if err != nil {
		return fmt.Errorf("insert ft_transfer: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}
	for _, maker := range distinctNonZero(e.From, e.To) {
		if err := ig.queue.EnqueueMakerUpdate(ctx, queue.MakerUpdateTrigger{
			Variant:  "buy-balance",
			Maker:    maker,
			Contract: e.Contract,
		}); err != nil {
			return fmt.Errorf("enqueue buy-balance trigger for %s: %w", maker, err)
		}
	}
	return nil
}

func (ig *Ingestor) handleFTApproval(ctx context.Context, e domain.FTApprovalEvent) error {
	inserted, err := ig.store.InsertFTApproval(ctx, e)
	if err != nil {
		return fmt.Errorf("insert ft_approval: %w", err)
	}
	if !inserted || ig.cfg.Backfill {
		return nil
	}
	return ig.queue.EnqueueMakerUpdate(ctx, queue.MakerUpdateTrigger{
		Variant:  "buy-approval",
		Maker:    e.Owner,
		Contract: e.Contract,
		Operator: e.Spender,
	})
}

func distinctNonZero(addrs ...string) []string {
	seen := make(map[string]bool, len(addrs))
	var out []string
	for _, a := range addrs {
		if a == "" || strings.EqualFold(a, domain.ZeroAddress) || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
