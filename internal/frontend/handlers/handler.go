package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/frontend/telnet"
	"github.com/cory-johannsen/tenthousand/internal/observability"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

// GameHandler implements telnet.SessionHandler: every connection gets its
// own event loop and Session.
type GameHandler struct {
	deps   Deps
	logger *zap.Logger
}

// NewGameHandler creates a GameHandler.
//
// Precondition: logger must be non-nil.
// Postcondition: unset optional Deps are filled with their defaults.
func NewGameHandler(deps Deps, logger *zap.Logger) *GameHandler {
	return &GameHandler{deps: deps.WithDefaults(), logger: logger}
}

// HandleSession runs the read loop of one client until it quits or the
// connection drops.
//
// Postcondition: the session has left any online room; a client quit or EOF
// returns nil.
func (h *GameHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	logger := observability.SessionLogger(h.logger, conn.ID(), conn.RemoteAddr().String())
	loop := schedule.NewLoop()
	defer loop.Stop()

	var s *Session
	loop.Do(func() {
		s = NewSession(ctx, conn, loop, h.deps, logger)
		s.Greet()
	})
	defer loop.Do(s.Close)

	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		cont := true
		loop.Do(func() { cont = s.Execute(line) })
		if !cont {
			return nil
		}
	}
}

var _ telnet.SessionHandler = (*GameHandler)(nil)
