package queue

import (
	"github.com/hibiken/asynq"

	"github.com/nftindexer/indexer/internal/config"
)

// Handlers bundles the four worker kinds, so the orchestrator only has
// to pass one value to NewConsumer.
type Handlers struct {
	HashUpdate  asynq.Handler
	MakerUpdate asynq.Handler
	FillHandler asynq.Handler
	Reorg       asynq.Handler
}

// Consumer runs the asynq server side: one process pulling jobs off the
// critical/default/bulk queues by priority weight (critical 6, default
// and bulk their configured concurrency values), dispatching each to its
// worker. The queues share one worker pool; none has a cap of its own.
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewConsumer builds the asynq consumer server against the given Redis
// address and registers the worker handlers on their task types.
func NewConsumer(cfg config.QueueConfig, redisAddr, redisPassword string, redisDB int, h Handlers) *Consumer {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB},
		asynq.Config{
			Concurrency: cfg.MakerUpdateConcurrency + cfg.DefaultConcurrency + 2,
			Queues: map[string]int{
				queueCritical: 6,
				queueDefault:  cfg.DefaultConcurrency,
				queueBulk:     cfg.MakerUpdateConcurrency,
			},
			RetryDelayFunc: RetryDelay(cfg),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(TaskHashUpdate, h.HashUpdate)
	mux.Handle(TaskMakerUpdate, h.MakerUpdate)
	mux.Handle(TaskFillHandler, h.FillHandler)
	mux.Handle(TaskReorg, h.Reorg)

	return &Consumer{server: server, mux: mux}
}

// Run starts processing jobs; it blocks until Stop is called.
func (c *Consumer) Run() error {
	return c.server.Run(c.mux)
}

// Stop gracefully stops the consumer, waiting for in-flight jobs.
func (c *Consumer) Stop() {
	c.server.Shutdown()
}
