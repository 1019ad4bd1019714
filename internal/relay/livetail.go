// livetail.go implements an optional WebSocket broadcast endpoint that
// tails newly-fillable or newly-expired orders in real time, using
// gorilla/websocket with a ping loop and bounded per-client buffers,
// running as a server broadcasting to many subscribers instead of a
// client dialing one upstream feed.
package relay

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveTailPingInterval = 50 * time.Second
	liveTailWriteTimeout = 10 * time.Second
	clientBufferSize     = 128
)

// OrderUpdate is one event the live-tail endpoint broadcasts.
type OrderUpdate struct {
	Hash              string `json:"hash"`
	FillabilityStatus string `json:"fillability_status"`
	ApprovalStatus    string `json:"approval_status"`
}

// LiveTail broadcasts OrderUpdate events to every connected WebSocket
// client. Feed(update) is safe to call from any goroutine; a slow or
// disconnected client never blocks the broadcaster, it just misses
// updates sent while its buffer was full.
type LiveTail struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[chan OrderUpdate]struct{}
}

// NewLiveTail creates a live-tail broadcaster.
func NewLiveTail(logger *slog.Logger) *LiveTail {
	return &LiveTail{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger.With("component", "relay.livetail"),
		clients: make(map[chan OrderUpdate]struct{}),
	}
}

// Feed broadcasts one update to every connected client.
func (lt *LiveTail) Feed(update OrderUpdate) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	for ch := range lt.clients {
		select {
		case ch <- update:
		default:
			lt.logger.Warn("live-tail client buffer full, dropping update", "hash", update.Hash)
		}
	}
}

// ServeHTTP upgrades the connection and streams updates until the
// client disconnects or the server shuts down.
func (lt *LiveTail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := lt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lt.logger.Error("live-tail upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := make(chan OrderUpdate, clientBufferSize)
	lt.register(ch)
	defer lt.unregister(ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go lt.discardClientReads(conn, cancel)

	ticker := time.NewTicker(liveTailPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-ch:
			conn.SetWriteDeadline(time.Now().Add(liveTailWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(liveTailWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// discardClientReads drains and ignores inbound frames so pongs and
// close frames are processed by the gorilla library's control-frame
// handlers; cancels ctx once the client goes away.
func (lt *LiveTail) discardClientReads(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (lt *LiveTail) register(ch chan OrderUpdate) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.clients[ch] = struct{}{}
}

func (lt *LiveTail) unregister(ch chan OrderUpdate) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	delete(lt.clients, ch)
}
