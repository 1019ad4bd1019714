// Package orchestrator is the central wiring point of the indexer,
// following a New → Start → [runs until signalled] → Stop lifecycle.
// It starts one goroutine per pipeline stage: the event ingestor, the
// asynq consumer running the four workers, and the optional query API.
// The optional relay live-tail broadcaster is constructed when enabled
// and exposed through LiveTail(); no HTTP server for it is started here.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nftindexer/indexer/internal/api"
	"github.com/nftindexer/indexer/internal/chainlog"
	"github.com/nftindexer/indexer/internal/config"
	"github.com/nftindexer/indexer/internal/ingest"
	"github.com/nftindexer/indexer/internal/intake"
	"github.com/nftindexer/indexer/internal/queue"
	"github.com/nftindexer/indexer/internal/relay"
	"github.com/nftindexer/indexer/internal/store"
	"github.com/nftindexer/indexer/internal/tokenset"
	"github.com/nftindexer/indexer/internal/worker/fillhandler"
	"github.com/nftindexer/indexer/internal/worker/hashupdate"
	"github.com/nftindexer/indexer/internal/worker/makerupdate"
	"github.com/nftindexer/indexer/internal/worker/reorg"
)

// Dependencies are the trusted external interfaces this repository does
// not implement itself: blockchain RPC transport, order signature
// verification, and attribute/token-list membership lookup. main wires
// in whatever concrete adapters a deployment needs; the orchestrator
// only ever depends on these interfaces.
type Dependencies struct {
	Source      ingest.Source
	Signer      intake.Signer
	Memberships tokenset.MembershipSource
}

// Orchestrator owns every long-running subsystem's lifecycle.
type Orchestrator struct {
	cfg    config.Config
	logger *slog.Logger

	store    *store.Store
	q        *queue.Queue
	consumer *queue.Consumer
	ingestor *ingest.Ingestor
	filter   *intake.Filter
	saver    *intake.Saver
	apiSrv   *api.Server
	liveTail *relay.LiveTail
	relayCli *relay.Client
	arweave  *relay.ArweaveSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component: store, queue, ingestor, workers, consumer,
// intake, relay, and the optional query API.
func New(cfg config.Config, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	ctx, cancel := context.WithCancel(context.Background())

	st, err := store.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("orchestrator: open store: %w", err)
	}

	q := queue.New(cfg.Queue, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	decoder, err := chainlog.NewDecoder()
	if err != nil {
		cancel()
		st.Close()
		return nil, fmt.Errorf("orchestrator: build log decoder: %w", err)
	}

	ingestor := ingest.New(deps.Source, decoder, st, q, cfg.Ingest, logger)

	resolver := tokenset.NewResolver(deps.Memberships)
	filter := intake.NewFilter(deps.Signer, st, cfg.MaxFeeBPS, cfg.AcceptOrders)
	saver := intake.NewSaver(resolver, st, q)

	hashWorker := hashupdate.New(st)
	makerWorker := makerupdate.New(st, q)
	fillWorker := fillhandler.New(st, q)
	reorgWorker := reorg.New(st, q)

	consumer := queue.NewConsumer(cfg.Queue, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, queue.Handlers{
		HashUpdate:  hashWorker,
		MakerUpdate: makerWorker,
		FillHandler: fillWorker,
		Reorg:       reorgWorker,
	})

	var apiSrv *api.Server
	if cfg.API.Enabled {
		apiSrv = api.NewServer(cfg.API, st, logger)
	}

	var liveTail *relay.LiveTail
	if cfg.Relay.LiveTailEnabled {
		liveTail = relay.NewLiveTail(logger)
	}

	rl := relay.NewRateLimiter()
	relayCli := relay.NewClient(cfg.Relay.OpenSeaAPIKey, cfg.Relay.OpenSeaTestnet, rl.OpenSea, logger)
	arweave := relay.NewArweaveSink(cfg.Relay.ArweaveEndpoint, rl.Arweave, logger)

	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
		store:    st,
		q:        q,
		consumer: consumer,
		ingestor: ingestor,
		filter:   filter,
		saver:    saver,
		apiSrv:   apiSrv,
		liveTail: liveTail,
		relayCli: relayCli,
		arweave:  arweave,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Filter exposes the intake filter so the off-chain order submission
// entrypoint (outside this package's scope) can call it.
func (o *Orchestrator) Filter() *intake.Filter { return o.filter }

// Saver exposes the intake saver for the same reason.
func (o *Orchestrator) Saver() *intake.Saver { return o.saver }

// RelayClient exposes the OpenSea relay client for the intake save path
// to post newly-accepted orders to, outside this package's own loop.
func (o *Orchestrator) RelayClient() *relay.Client { return o.relayCli }

// ArweaveSink exposes the archival sink for the same reason.
func (o *Orchestrator) ArweaveSink() *relay.ArweaveSink { return o.arweave }

// Start launches every background goroutine: the event ingestor, the
// asynq consumer, and the query API when it is enabled.
func (o *Orchestrator) Start() error {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.ingestor.Run(o.ctx); err != nil && o.ctx.Err() == nil {
			o.logger.Error("ingestor stopped with error", "error", err)
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.consumer.Run(); err != nil {
			o.logger.Error("queue consumer stopped with error", "error", err)
		}
	}()

	if o.apiSrv != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.apiSrv.Start(); err != nil {
				o.logger.Error("query api stopped with error", "error", err)
			}
		}()
	}

	o.logger.Info("orchestrator started")
	return nil
}

// Stop cancels the ingestor, gracefully drains the queue consumer, and
// shuts down any optional servers, waiting for all goroutines to exit.
func (o *Orchestrator) Stop() {
	o.logger.Info("orchestrator stopping")

	o.cancel()
	o.consumer.Stop()

	if o.apiSrv != nil {
		if err := o.apiSrv.Stop(); err != nil {
			o.logger.Error("query api shutdown error", "error", err)
		}
	}

	o.wg.Wait()

	if err := o.q.Close(); err != nil {
		o.logger.Error("queue client close error", "error", err)
	}
	o.store.Close()

	o.logger.Info("orchestrator stopped")
}

// LiveTail exposes the optional live-tail broadcaster so the ingestor's
// derived-status updates (wired outside this package, in the hash-update
// worker's caller) can feed it.
func (o *Orchestrator) LiveTail() *relay.LiveTail { return o.liveTail }
