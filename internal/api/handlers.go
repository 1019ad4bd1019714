package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nftindexer/indexer/internal/domain"
)

// Store is the narrow read surface the query API needs. Implemented by
// *store.Store; kept as an interface so handlers can be tested against a
// fake rather than a database.
type Store interface {
	GetOrder(ctx context.Context, hash string) (*domain.Order, error)
	OrdersByMaker(ctx context.Context, maker string) ([]*domain.Order, error)
	BestBuy(ctx context.Context, tokenSetID string) (*domain.BestPrice, error)
	BestSell(ctx context.Context, tokenSetID string) (*domain.BestPrice, error)
}

// Handlers holds the HTTP handler dependencies for the query API.
type Handlers struct {
	store  Store
	logger *slog.Logger
}

// NewHandlers creates the query API's handler set.
func NewHandlers(store Store, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, logger: logger.With("component", "api.handlers")}
}

// HandleHealth reports liveness only; it never touches the store.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleOrderStatus returns one order's current fillability/approval
// status by hash.
func (h *Handlers) HandleOrderStatus(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	o, err := h.store.GetOrder(r.Context(), hash)
	if err != nil {
		h.logger.Error("get order failed", "hash", hash, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if o == nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toOrderStatusResponse(o))
}

// HandleOrdersByMaker lists every non-terminal order for a maker address.
func (h *Handlers) HandleOrdersByMaker(w http.ResponseWriter, r *http.Request) {
	maker := chi.URLParam(r, "maker")
	orders, err := h.store.OrdersByMaker(r.Context(), maker)
	if err != nil {
		h.logger.Error("orders by maker failed", "maker", maker, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]OrderStatusResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderStatusResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleBestBid returns the highest-value fillable buy order for a token
// set, 404 if none exists.
func (h *Handlers) HandleBestBid(w http.ResponseWriter, r *http.Request) {
	h.handleBestPrice(w, r, h.store.BestBuy)
}

// HandleBestAsk returns the lowest-value fillable sell order for a token
// set, 404 if none exists.
func (h *Handlers) HandleBestAsk(w http.ResponseWriter, r *http.Request) {
	h.handleBestPrice(w, r, h.store.BestSell)
}

func (h *Handlers) handleBestPrice(w http.ResponseWriter, r *http.Request, lookup func(context.Context, string) (*domain.BestPrice, error)) {
	tokenSetID := chi.URLParam(r, "tokenSetID")
	best, err := lookup(r.Context(), tokenSetID)
	if err != nil {
		h.logger.Error("best price lookup failed", "token_set_id", tokenSetID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if best == nil {
		http.Error(w, "no fillable order", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toBestPriceResponse(best))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
