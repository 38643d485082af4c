package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/atutic/TicTacToe/internal/registry"
)

// Server accepts TCP connections and runs one connection actor per client.
type Server struct {
	logger          *slog.Logger
	registry        *registry.Registry
	defaultTimerSec int
	handlers        map[string]func(ctx context.Context, client *Client, parts []string) error
}

func New(logger *slog.Logger, reg *registry.Registry, defaultTimerSec int) *Server {
	server := &Server{
		logger:          logger.With("component", "tcp"),
		registry:        reg,
		defaultTimerSec: defaultTimerSec,
		handlers:        make(map[string]func(context.Context, *Client, []string) error),
	}

	server.registerHandlers()

	return server
}

// Start listens on the given port and serves until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts connections from an existing listener. Exposed separately so
// tests can bind to an ephemeral port.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	log := that.logger.With("method", "Serve")

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Error("failed to close listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		client := newClient(that, conn)
		go client.serve(ctx)
	}
}
