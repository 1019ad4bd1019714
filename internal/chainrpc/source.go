// Package chainrpc is the concrete adapter binding the event ingestor's
// Source interface to a real chain connection via go-ethereum's
// ethclient. treats RPC transport, log polling, and
// block-finality tracking as an external interface the core does not
// implement; this package is the thin integration seam a deployment
// wires in, not a reimplementation of that transport logic.
package chainrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nftindexer/indexer/internal/domain"
)

// Source adapts an ethclient connection to internal/ingest.Source.
// Reorgs never fires on its own — block-finality tracking is the
// out-of-scope concern names; a deployment that needs live
// reorg recovery wires a finality tracker that calls Notify.
type Source struct {
	client    *ethclient.Client
	addresses []common.Address
	reorgCh   chan string
}

// New dials an Ethereum JSON-RPC endpoint and watches the given
// contract addresses for logs.
func New(ctx context.Context, rpcURL string, addresses []string) (*Source, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainrpc: dial %s: %w", rpcURL, err)
	}
	addrs := make([]common.Address, len(addresses))
	for i, a := range addresses {
		addrs[i] = common.HexToAddress(a)
	}
	return &Source{client: client, addresses: addrs, reorgCh: make(chan string, 16)}, nil
}

// LatestBlock returns the chain's current head block number.
func (s *Source) LatestBlock(ctx context.Context) (uint64, error) {
	return s.client.BlockNumber(ctx)
}

// FilterLogs pulls every log emitted by the watched addresses in
// [fromBlock, toBlock], tagging each with its block metadata.
func (s *Source) FilterLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLog, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: s.addresses,
	}
	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chainrpc: filter logs [%d,%d]: %w", fromBlock, toBlock, err)
	}

	out := make([]domain.RawLog, len(logs))
	for i, l := range logs {
		topics := make([]string, len(l.Topics))
		for j, t := range l.Topics {
			topics[j] = t.Hex()
		}
		out[i] = domain.RawLog{
			Address: l.Address.Hex(),
			Topics:  topics,
			Data:    l.Data,
			EventKey: domain.EventKey{
				BlockHash: l.BlockHash.Hex(),
				TxHash:    l.TxHash.Hex(),
				LogIndex:  int(l.Index),
				Block:     l.BlockNumber,
			},
		}
	}
	return out, nil
}

// Reorgs returns the channel a finality tracker would publish displaced
// block hashes on. Nothing in this package writes to it.
func (s *Source) Reorgs() <-chan string {
	return s.reorgCh
}

// Notify lets an externally-wired finality tracker report a displaced
// block hash, satisfying fixCallback.
func (s *Source) Notify(blockHash string) {
	select {
	case s.reorgCh <- blockHash:
	default:
	}
}
