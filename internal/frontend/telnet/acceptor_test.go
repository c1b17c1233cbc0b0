package telnet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/testutil"
)

type echoHandler struct {
	sessionCount atomic.Int32
	mu           sync.Mutex
	ids          []string
}

func (h *echoHandler) HandleSession(_ context.Context, conn *Conn) error {
	h.sessionCount.Add(1)
	h.mu.Lock()
	h.ids = append(h.ids, conn.ID())
	h.mu.Unlock()
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if line == "quit" {
			_ = conn.WriteLine("bye")
			return nil
		}
		_ = conn.WriteLine("echo: " + line)
	}
}

func startAcceptor(t *testing.T, h SessionHandler) *Acceptor {
	t.Helper()
	cfg := config.TelnetConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	acc := NewAcceptor(cfg, h, zaptest.NewLogger(t))
	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	require.Eventually(t, func() bool {
		return acc.IsRunning() && acc.Addr() != ""
	}, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		acc.Stop()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("acceptor did not stop in time")
		}
	})
	return acc
}

func TestAcceptorEcho(t *testing.T) {
	h := &echoHandler{}
	acc := startAcceptor(t, h)

	client := testutil.NewTelnetClient(t, acc.Addr())
	client.Send("hello")
	client.ReadUntil("echo: hello", 2*time.Second)
	client.Send("quit")
	client.ReadUntil("bye", 2*time.Second)

	assert.Equal(t, int32(1), h.sessionCount.Load())
	require.Eventually(t, func() bool { return acc.Sessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptorMultipleClientsGetDistinctIDs(t *testing.T) {
	h := &echoHandler{}
	acc := startAcceptor(t, h)

	const numClients = 3
	clients := make([]*testutil.TelnetClient, numClients)
	for i := range clients {
		clients[i] = testutil.NewTelnetClient(t, acc.Addr())
		clients[i].Send("ping")
		clients[i].ReadUntil("echo: ping", 2*time.Second)
	}
	assert.Equal(t, numClients, acc.Sessions())

	for _, c := range clients {
		c.Send("quit")
		c.ReadUntil("bye", 2*time.Second)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.ids, numClients)
	seen := map[string]bool{}
	for _, id := range h.ids {
		assert.Len(t, id, 36)
		seen[id] = true
	}
	assert.Len(t, seen, numClients)
}

func TestAcceptorStopClosesIdleSessions(t *testing.T) {
	h := &echoHandler{}
	acc := startAcceptor(t, h)

	client := testutil.NewTelnetClient(t, acc.Addr())
	client.Send("hi")
	client.ReadUntil("echo: hi", 2*time.Second)

	done := make(chan struct{})
	go func() {
		acc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop blocked on an idle session")
	}
	assert.False(t, acc.IsRunning())
	assert.Zero(t, acc.Sessions())
}
