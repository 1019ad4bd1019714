// NFT order indexer — maintains a queryable database of currently
// fillable Wyvern-style marketplace orders by ingesting on-chain log
// events and off-chain signed order submissions.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the orchestrator, waits for SIGINT/SIGTERM
//	orchestrator/orchestrator.go — wires store → queue → ingestor → workers → query API, manages lifecycle
//	ingest/ingestor.go         — polls the chain event source, decodes logs, appends events, schedules workers
//	intake/filter.go, save.go  — validates and persists off-chain signed order submissions
//	worker/hashupdate          — recomputes one order's fillability/approval status
//	worker/makerupdate         — bulk rechecks every order of a maker after a balance/approval change
//	worker/fillhandler         — applies a matched fill to both legs of a trade
//	worker/reorg               — reverses a displaced block's effect on the projection
//	store/store.go             — Postgres projection store and append-only event log
//	relay/client.go, arweave.go — posts accepted orders to OpenSea's legacy relay and archives to Arweave
//	api/server.go              — thin read-only query API (best bid/ask, order status)
//	chainrpc/source.go         — go-ethereum-backed adapter for the ingestor's event-source interface
//	sdkadapter/signer.go       — ECDSA signature verification adapter for the intake filter's trusted Signer
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nftindexer/indexer/internal/chainrpc"
	"github.com/nftindexer/indexer/internal/config"
	"github.com/nftindexer/indexer/internal/orchestrator"
	"github.com/nftindexer/indexer/internal/sdkadapter"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("INDEXER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	rpcURL := os.Getenv("INDEXER_RPC_URL")
	if rpcURL == "" {
		logger.Error("INDEXER_RPC_URL is required")
		os.Exit(1)
	}
	addresses := strings.Split(os.Getenv("INDEXER_WATCH_ADDRESSES"), ",")

	ctx := context.Background()
	source, err := chainrpc.New(ctx, rpcURL, addresses)
	if err != nil {
		logger.Error("failed to dial chain rpc", "error", err)
		os.Exit(1)
	}

	deps := orchestrator.Dependencies{
		Source:      source,
		Signer:      sdkadapter.NewECDSASigner(),
		Memberships: sdkadapter.NewUnindexedMemberships(),
	}

	orch, err := orchestrator.New(*cfg, deps, logger)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	if err := orch.Start(); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	logger.Info("indexer started", "chain_id", cfg.ChainID, "accept_orders", cfg.AcceptOrders)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	orch.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
