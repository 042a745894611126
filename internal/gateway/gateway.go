// ABOUTME: HTTP gateway lifecycle: server construction, startup, graceful shutdown
// ABOUTME: Exposes the registrar, relay, and history reader over JSON endpoints

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/store"
)

// Registrar registers identities. Implemented by relay.Registrar.
type Registrar interface {
	Register(ctx context.Context, displayName, contactAddress string) (*store.User, error)
}

// Relayer processes messages and serves history. Implemented by relay.Service.
type Relayer interface {
	Relay(ctx context.Context, userID, message string) (string, error)
	GetHistory(ctx context.Context, userID string) ([]*store.Exchange, error)
}

// Gateway is the HTTP front of the relay.
type Gateway struct {
	registrar Registrar
	relayer   Relayer
	logger    *slog.Logger

	httpServer *http.Server
}

// New creates a gateway listening on addr.
func New(addr string, registrar Registrar, relayer Relayer) *Gateway {
	g := &Gateway{
		registrar: registrar,
		relayer:   relayer,
		logger:    slog.Default().With("component", "gateway"),
	}

	g.httpServer = &http.Server{
		Addr:              addr,
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// Run starts the HTTP server and blocks until ctx is cancelled or the server
// fails. Shutdown drains in-flight requests for up to 10 seconds.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	g.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return nil
}
