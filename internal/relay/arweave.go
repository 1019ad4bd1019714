package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nftindexer/indexer/internal/domain"
)

// ArweaveSink archives saved orders to Arweave as an at-least-once,
// fire-and-forget sink. A failed archive write is logged and dropped;
// duplication on retry is the consumer's problem to dedupe, not this
// indexer's.
type ArweaveSink struct {
	http     *resty.Client
	rl       *TokenBucket
	endpoint string
	logger   *slog.Logger
}

// NewArweaveSink creates an Arweave archival sink.
func NewArweaveSink(endpoint string, rl *TokenBucket, logger *slog.Logger) *ArweaveSink {
	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(15 * time.Second).
		SetRetryCount(1).
		SetHeader("Content-Type", "application/json")

	return &ArweaveSink{http: httpClient, rl: rl, endpoint: endpoint, logger: logger.With("component", "relay.arweave")}
}

// arweaveEnvelope is the archival record written for one order.
type arweaveEnvelope struct {
	Hash      string          `json:"hash"`
	Order     json.RawMessage `json:"order"`
	Signature string          `json:"signature"`
	Timestamp int64           `json:"timestamp"`
}

// Archive fires one order + its signature off to the archival endpoint.
// It never returns an error to block the caller's critical path on a
// slow or unavailable third party; failures are logged only.
func (s *ArweaveSink) Archive(ctx context.Context, o *domain.Order, signature []byte, timestamp int64) {
	if s.endpoint == "" {
		return
	}
	if err := s.rl.Wait(ctx); err != nil {
		return
	}

	orderJSON, err := json.Marshal(o)
	if err != nil {
		s.logger.Error("arweave: marshal order failed", "hash", o.Hash, "error", err)
		return
	}

	body := arweaveEnvelope{
		Hash:      o.Hash,
		Order:     orderJSON,
		Signature: fmt.Sprintf("0x%x", signature),
		Timestamp: timestamp,
	}

	resp, err := s.http.R().SetContext(ctx).SetBody(body).Post("/tx")
	if err != nil {
		s.logger.Warn("arweave: archive request failed", "hash", o.Hash, "error", err)
		return
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		s.logger.Warn("arweave: archive rejected", "hash", o.Hash, "status", resp.StatusCode())
		return
	}
	s.logger.Debug("arweave: order archived", "hash", o.Hash)
}
