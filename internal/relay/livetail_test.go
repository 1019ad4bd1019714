package relay

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiveTail_FeedDeliversToRegisteredClient(t *testing.T) {
	lt := NewLiveTail(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ch := make(chan OrderUpdate, 1)
	lt.register(ch)
	defer lt.unregister(ch)

	lt.Feed(OrderUpdate{Hash: "0xabc", FillabilityStatus: "fillable"})

	select {
	case got := <-ch:
		assert.Equal(t, "0xabc", got.Hash)
	default:
		t.Fatal("expected update to be delivered to registered client")
	}
}

func TestLiveTail_FeedSkipsUnregisteredClient(t *testing.T) {
	lt := NewLiveTail(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ch := make(chan OrderUpdate, 1)
	lt.register(ch)
	lt.unregister(ch)

	lt.Feed(OrderUpdate{Hash: "0xabc"})

	select {
	case <-ch:
		t.Fatal("unregistered client should not receive updates")
	default:
	}
}

func TestLiveTail_FeedDoesNotBlockOnFullClientBuffer(t *testing.T) {
	lt := NewLiveTail(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ch := make(chan OrderUpdate, 1)
	lt.register(ch)
	defer lt.unregister(ch)

	lt.Feed(OrderUpdate{Hash: "0x1"})
	done := make(chan struct{})
	go func() {
		lt.Feed(OrderUpdate{Hash: "0x2"}) // buffer full, must not block
		close(done)
	}()
	<-done
}
